package domain

import "strings"

// compassRose is the 16-point rose in clockwise order starting at north.
// Each point spans 22.5 degrees.
var compassRose = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// NormalizeCompass canonicalizes a wind direction to the 16-point rose.
// A recognized compass string (8- or 16-point, any case) wins; otherwise the
// degree value is bucketed to the nearest point. Returns "" when neither form
// is usable, which disables direction-dependent rules for the reading.
func NormalizeCompass(dir string, deg *float64) string {
	dir = strings.ToUpper(strings.TrimSpace(dir))
	for _, p := range compassRose {
		if dir == p {
			return p
		}
	}
	if deg == nil {
		return ""
	}
	return CompassFromDegrees(*deg)
}

// CompassFromDegrees buckets a bearing in degrees to the nearest 16-point
// compass direction. Input is normalized into [0,360).
func CompassFromDegrees(deg float64) string {
	deg = mod360(deg)
	idx := int((deg+11.25)/22.5) % len(compassRose)
	return compassRose[idx]
}

// OppositeCompass returns the reciprocal bearing, e.g. "NE" -> "SW".
// Returns "" for unrecognized input.
func OppositeCompass(dir string) string {
	for i, p := range compassRose {
		if dir == p {
			return compassRose[(i+8)%len(compassRose)]
		}
	}
	return ""
}

func mod360(deg float64) float64 {
	for deg < 0 {
		deg += 360
	}
	for deg >= 360 {
		deg -= 360
	}
	return deg
}
