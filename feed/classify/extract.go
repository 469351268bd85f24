package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// Line grammars for the two DayZ log streams. The admin stream quotes
// player names; the script stream does not.
var (
	rePlayerName  = regexp.MustCompile(`Player\s+"([^"]+)"`)
	reVictim      = regexp.MustCompile(`Player\s+"([^"]+)"\s+(?:\(DEAD\))?\s*\(id=[^)]+\s+pos=<[^>]+>\)\s+killed by`)
	reKiller      = regexp.MustCompile(`killed by Player\s+"([^"]+)"`)
	reTimestamp   = regexp.MustCompile(`(\d+:\d+:\d+)`)
	reDistance    = regexp.MustCompile(`from ([0-9.]+) meters`)
	reWeaponFrom  = regexp.MustCompile(` with (.*) from`)
	reWeaponBare  = regexp.MustCompile(`with (.*)`)
	reBodyPart    = regexp.MustCompile(`into ([^(]+)`)
	reCoords      = regexp.MustCompile(`pos=<([\d.]+), [\d.]+, ([\d.]+)>`)
	reOnline      = regexp.MustCompile(`(\d+)\s*players`)
	reExplosion   = regexp.MustCompile(`\[HP: 0\] hit by explosion \((.*)\)`)
	reListEnd     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \| #####`)

	reConnectUID = regexp.MustCompile(`\(id=([A-F0-9]+)\)`)

	reStateMachine = regexp.MustCompile(`\[StateMachine\]: Player\s+(.+?)\s+\(dpnid\s+\d+\s+uid\s+([A-F0-9]*)\)`)
	reDpnid        = regexp.MustCompile(`dpnid\s*=\s*(\d+)`)
	reDebugUID     = regexp.MustCompile(`player\s+([A-F0-9]{40})\s+\(dpnid`)
	reDebugName    = regexp.MustCompile(`player\s+([^\s(]+)\s+\(dpnid`)
	reDisconnUID   = regexp.MustCompile(`\(([A-F0-9]{40})\)`)
	reDeviceID     = regexp.MustCompile(`device:\s*([^\s|]+)`)
	reAccountID    = regexp.MustCompile(`account:\s*([^\s|]+)`)
	reDeviceAlt    = regexp.MustCompile(`id1:\s*([^\s|]+)`)
	reAccountAlt   = regexp.MustCompile(`id2:\s*([^\s|]+)`)
)

func extractPlayerName(line string) string {
	if m := rePlayerName.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractKillerVictim pulls both names out of a PvP kill line. The
// victim appears before "killed by", possibly tagged (DEAD) and always
// carrying an id/pos block.
func extractKillerVictim(line string) (killer, victim string) {
	if m := reVictim.FindStringSubmatch(line); m != nil {
		victim = m[1]
	}
	if m := reKiller.FindStringSubmatch(line); m != nil {
		killer = m[1]
	}
	return killer, victim
}

func extractTimestamp(line string) string {
	if m := reTimestamp.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}

func extractDistance(line string) float64 {
	m := reDistance.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	d, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return d
}

// extractWeapon prefers the "with X from N meters" form, falls back to a
// bare "with X", then maps the raw class name through the weapon table.
func extractWeapon(line string) string {
	var weapon string
	if m := reWeaponFrom.FindStringSubmatch(line); m != nil {
		weapon = m[1]
	} else if m := reWeaponBare.FindStringSubmatch(line); m != nil {
		weapon = m[1]
	} else {
		return "Unknown"
	}
	if friendly, ok := weaponNames[weapon]; ok {
		return friendly
	}
	return weapon
}

func extractBodyPart(line string) string {
	if m := reBodyPart.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractCoords(line string) (x, z float64, ok bool) {
	m := reCoords.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	x, err1 := strconv.ParseFloat(m[1], 64)
	z, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return x, z, true
}

func extractExplosionType(line string) string {
	if m := reExplosion.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return "Unknown"
}

func extractOnlineCount(line string) (int, bool) {
	m := reOnline.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
