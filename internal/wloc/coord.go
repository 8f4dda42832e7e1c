package wloc

import "math"

// UnknownCoordinate is the latitude the service returns for BSSIDs it has no
// position for (-180 degrees in fixed point).
const UnknownCoordinate int64 = -18_000_000_000

// coordScale converts between fixed-point wire values and degrees.
const coordScale = 1e-8

// ToDegrees converts a fixed-point wire coordinate to degrees.
func ToDegrees(fixed int64) float64 {
	return float64(fixed) * coordScale
}

// FromDegrees converts degrees to the fixed-point wire representation.
func FromDegrees(deg float64) int64 {
	return int64(math.Round(deg / coordScale))
}

// IsUnknownSentinel reports whether fixed is the "not in database" marker.
func IsUnknownSentinel(fixed int64) bool {
	return fixed == UnknownCoordinate
}
