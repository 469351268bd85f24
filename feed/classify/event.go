package classify

// Kind identifies the type of a classified log event.
type Kind int

const (
	KindUnknown Kind = iota

	// Admin stream (.ADM)
	KindConnect
	KindDisconnect
	KindSuicide
	KindExplosion
	KindBleedOut
	KindWolfKill
	KindBearKill
	KindFallDeath
	KindPvPKill
	KindGenericDeath
	KindPlayerListStart
	KindPlayerListEnd
	KindPositionSnapshot
	KindOnlineCount

	// Script stream (.RPT)
	KindSessionState
	KindDebugSave
	KindDebugExit
	KindScriptDisconnect
	KindDeviceRegistration
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindConnect:            "connect",
	KindDisconnect:         "disconnect",
	KindSuicide:            "suicide",
	KindExplosion:          "explosion",
	KindBleedOut:           "bleed_out",
	KindWolfKill:           "wolf_kill",
	KindBearKill:           "bear_kill",
	KindFallDeath:          "fall_death",
	KindPvPKill:            "pvp_kill",
	KindGenericDeath:       "death",
	KindPlayerListStart:    "player_list_start",
	KindPlayerListEnd:      "player_list_end",
	KindPositionSnapshot:   "position",
	KindOnlineCount:        "online_count",
	KindSessionState:       "session_state",
	KindDebugSave:          "debug_save",
	KindDebugExit:          "debug_exit",
	KindScriptDisconnect:   "script_disconnect",
	KindDeviceRegistration: "device_registration",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is one classified log line with whatever fields the line carried.
type Event struct {
	Kind      Kind
	Timestamp string // HH:MM:SS as written in the log

	// Players
	Player string // connect/disconnect/session events
	Victim string
	Killer string

	// PvP detail
	Weapon   string
	Distance float64
	BodyPart string

	// Explosion detail
	ExplosionType string

	// Position / presence
	X, Z   float64
	Online int

	// Identity (script stream)
	AccountID string // 40-char hex uid
	SessionID string // dpnid
	DeviceID  string
}
