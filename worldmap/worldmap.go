package worldmap

import (
	"fmt"
	"math"
	"strings"
)

// Map names.
const (
	Chernarus = "chernarus"
	Livonia   = "livonia"
	Sahkal    = "sahkal"
)

var mapURLs = map[string]string{
	Chernarus: "https://dayz.ginfo.gg/chernarusplus/#location=",
	Livonia:   "https://dayz.ginfo.gg/livonia/#location=",
	Sahkal:    "https://dayz.ginfo.gg/sahkal/#location=",
}

// URL returns the base map URL for a map name, defaulting to chernarus.
func URL(mapName string) string {
	if u, ok := mapURLs[strings.ToLower(mapName)]; ok {
		return u
	}
	return mapURLs[Chernarus]
}

// PositionURL returns a map link pointing at the given coordinates.
func PositionURL(mapName string, x, z float64) string {
	return URL(mapName) + FormatCoords(x, z)
}

// FormatCoords renders coordinates for map URLs: integer parts joined
// by a semicolon.
func FormatCoords(x, z float64) string {
	return fmt.Sprintf("%d;%d", int(x), int(z))
}

// CanUseLocations reports whether named-location lookup is available
// for the map. Only chernarus carries location data.
func CanUseLocations(mapName string) bool {
	return strings.ToLower(mapName) == Chernarus
}

type location struct {
	name string
	x, z float64
}

// ClosestLocation returns the named location nearest to (x, z) and the
// distance to it in meters. Maps without location data return ok=false.
func ClosestLocation(mapName string, x, z float64) (name string, distance float64, ok bool) {
	if !CanUseLocations(mapName) {
		return "", 0, false
	}
	best := ""
	bestDist := math.MaxFloat64
	for _, loc := range chernarusLocations {
		d := math.Hypot(loc.x-x, loc.z-z)
		if d < bestDist {
			best = loc.name
			bestDist = d
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestDist, true
}
