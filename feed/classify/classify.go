package classify

import "strings"

// AdminClassifier classifies lines from the admin stream (.ADM). It is
// stateful only for the player-list section markers; everything else is
// a single ordered predicate chain, most specific first.
type AdminClassifier struct {
	inPlayerList bool
}

// NewAdmin creates an AdminClassifier.
func NewAdmin() *AdminClassifier {
	return &AdminClassifier{}
}

// Reset clears the player-list section state. Call between files.
func (c *AdminClassifier) Reset() {
	c.inPlayerList = false
}

// Classify returns the event for one admin log line, or nil if the line
// matches nothing. Exactly one kind is produced per line; the first
// matching predicate wins.
func (c *AdminClassifier) Classify(line string) *Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	// Player-list section markers bracket position snapshots.
	if strings.Contains(line, "##### PlayerList log:") {
		c.inPlayerList = true
		ev := &Event{Kind: KindPlayerListStart, Timestamp: extractTimestamp(line)}
		if n, ok := extractOnlineCount(line); ok {
			ev.Online = n
		}
		return ev
	}
	if reListEnd.MatchString(line) {
		c.inPlayerList = false
		return &Event{Kind: KindPlayerListEnd, Timestamp: extractTimestamp(line)}
	}
	if c.inPlayerList {
		if x, z, ok := extractCoords(line); ok {
			return &Event{
				Kind:      KindPositionSnapshot,
				Timestamp: extractTimestamp(line),
				Player:    extractPlayerName(line),
				X:         x,
				Z:         z,
			}
		}
	}

	// The script engine occasionally writes session lines into the
	// admin stream too; harvest them for identity correlation.
	if strings.Contains(line, "[StateMachine]:") && strings.Contains(line, "Player") {
		if ev := classifySessionState(line); ev != nil {
			return ev
		}
	}

	switch {
	case isConnect(line):
		ev := &Event{Kind: KindConnect, Timestamp: extractTimestamp(line), Player: extractPlayerName(line)}
		if uid := extractConnectUID(line); uid != "" {
			ev.AccountID = uid
		}
		return ev

	case strings.Contains(line, "has been disconnected"):
		return &Event{Kind: KindDisconnect, Timestamp: extractTimestamp(line), Player: extractPlayerName(line)}

	case strings.Contains(line, "committed suicide"):
		return &Event{Kind: KindSuicide, Timestamp: extractTimestamp(line), Victim: extractPlayerName(line)}

	case strings.Contains(line, "hit by explosion"):
		return &Event{
			Kind:          KindExplosion,
			Timestamp:     extractTimestamp(line),
			Victim:        extractPlayerName(line),
			ExplosionType: extractExplosionType(line),
		}

	case strings.Contains(line, "bled out"):
		return &Event{Kind: KindBleedOut, Timestamp: extractTimestamp(line), Victim: extractPlayerName(line)}

	case isWolfKill(line):
		return &Event{Kind: KindWolfKill, Timestamp: extractTimestamp(line), Victim: extractPlayerName(line)}

	case isBearKill(line):
		return &Event{Kind: KindBearKill, Timestamp: extractTimestamp(line), Victim: extractPlayerName(line)}

	case strings.Contains(line, "hit by FallDamage"):
		return &Event{Kind: KindFallDeath, Timestamp: extractTimestamp(line), Victim: extractPlayerName(line)}

	case strings.Contains(line, "killed by Player"):
		killer, victim := extractKillerVictim(line)
		ev := &Event{
			Kind:      KindPvPKill,
			Timestamp: extractTimestamp(line),
			Killer:    killer,
			Victim:    victim,
			Weapon:    extractWeapon(line),
			Distance:  extractDistance(line),
			BodyPart:  extractBodyPart(line),
		}
		// The first pos block on the line is the victim's.
		if x, z, ok := extractCoords(line); ok {
			ev.X, ev.Z = x, z
		}
		return ev

	case strings.Contains(line, "died"):
		return &Event{Kind: KindGenericDeath, Timestamp: extractTimestamp(line), Victim: extractPlayerName(line)}
	}

	if n, ok := extractOnlineCount(line); ok {
		return &Event{Kind: KindOnlineCount, Timestamp: extractTimestamp(line), Online: n}
	}
	return nil
}

func isConnect(line string) bool {
	return strings.Contains(line, "is connected") &&
		strings.Contains(line, "(id=") &&
		!strings.Contains(line, "has been disconnected")
}

func isWolfKill(line string) bool {
	return strings.Contains(line, "Animal_CanisLupus_Grey") ||
		strings.Contains(line, "Animal_CanisLupus_White")
}

func isBearKill(line string) bool {
	return strings.Contains(line, "Animal_UrsusArctos") ||
		strings.Contains(line, "Brown Bear")
}

func extractConnectUID(line string) string {
	if m := reConnectUID.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}

// ScriptClassifier classifies lines from the script stream (.RPT).
// It is stateless; a zero value is ready to use.
type ScriptClassifier struct{}

// NewScript creates a ScriptClassifier.
func NewScript() *ScriptClassifier {
	return &ScriptClassifier{}
}

// Classify returns the event for one script log line, or nil.
func (c *ScriptClassifier) Classify(line string) *Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.Contains(line, "[StateMachine]:") && strings.Contains(line, "Player") {
		return classifySessionState(line)
	}

	if strings.Contains(line, "CHAR_DEBUG") {
		m := reDpnid.FindStringSubmatch(line)
		if m == nil {
			return nil
		}
		dpnid := m[1]
		// The uid form is a 40-char hex string where the name would be;
		// check it first so hex-looking names cannot shadow it.
		if um := reDebugUID.FindStringSubmatch(line); um != nil {
			return &Event{Kind: KindDebugExit, AccountID: um[1], SessionID: dpnid}
		}
		if nm := reDebugName.FindStringSubmatch(line); nm != nil {
			return &Event{Kind: KindDebugSave, Player: nm[1], SessionID: dpnid}
		}
		return nil
	}

	if strings.Contains(line, "Finish script disconnect") {
		if m := reDisconnUID.FindStringSubmatch(line); m != nil {
			return &Event{Kind: KindScriptDisconnect, AccountID: m[1]}
		}
		return nil
	}

	if isDeviceEvent(line) {
		device, account := extractDeviceAndAccount(line)
		if device == "" || account == "" {
			return nil
		}
		return &Event{Kind: KindDeviceRegistration, DeviceID: device, AccountID: account}
	}
	return nil
}

// classifySessionState parses a StateMachine line. Both the name and
// the uid must be present for the mapping to be usable.
func classifySessionState(line string) *Event {
	m := reStateMachine.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	name, uid := strings.TrimSpace(m[1]), m[2]
	if name == "" || uid == "" {
		return nil
	}
	return &Event{Kind: KindSessionState, Player: name, AccountID: uid}
}

// isDeviceEvent matches the three device registration line shapes, all
// tagged [MAM] and carrying a device/account (or id1/id2) pair.
func isDeviceEvent(line string) bool {
	if !strings.Contains(line, "[MAM]") {
		return false
	}
	tagged := strings.Contains(line, "[NetworkServer::RegisterMAMData]") ||
		strings.Contains(line, "[NetworkServer::RegisterMAMDataHelper]") ||
		strings.Contains(line, "[NetworkServer::CheckMAMData]")
	if !tagged {
		return false
	}
	return (strings.Contains(line, "device:") && strings.Contains(line, "account:")) ||
		(strings.Contains(line, "id1:") && strings.Contains(line, "id2:"))
}

func extractDeviceAndAccount(line string) (device, account string) {
	dm := reDeviceID.FindStringSubmatch(line)
	am := reAccountID.FindStringSubmatch(line)
	if dm != nil && am != nil {
		return dm[1], am[1]
	}
	dm = reDeviceAlt.FindStringSubmatch(line)
	am = reAccountAlt.FindStringSubmatch(line)
	if dm != nil && am != nil {
		return dm[1], am[1]
	}
	return "", ""
}
