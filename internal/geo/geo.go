package geo

import "math"

// EarthRadiusM is the mean Earth radius used for all great-circle math.
const EarthRadiusM = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether the point lies within [-90,90] x [-180,180].
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// DistanceMeters calculates the haversine great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h a hair outside [0,1] for antipodal points.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusM * c
}

// InitialBearingDegrees returns the initial great-circle bearing from a to b
// in [0,360), clockwise from true north.
//
// When a and b are the same point the bearing is undefined; 0 is returned.
func InitialBearingDegrees(a, b Point) float64 {
	if a == b {
		return 0
	}
	phi1 := toRad(a.Latitude)
	phi2 := toRad(b.Latitude)
	dLon := toRad(NormalizeSignedDegrees(b.Longitude - a.Longitude))

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)
	return NormalizeDegrees(toDeg(math.Atan2(y, x)))
}

// NormalizeDegrees wraps x into [0,360).
func NormalizeDegrees(x float64) float64 {
	r := math.Mod(x, 360)
	if r < 0 {
		r += 360
	}
	// -1e-15 + 360 rounds to 360.
	if r >= 360 {
		r -= 360
	}
	return r
}

// NormalizeSignedDegrees wraps x into (-180,180]. Both -180 and 180 map to 180.
func NormalizeSignedDegrees(x float64) float64 {
	r := NormalizeDegrees(x+180) - 180
	if r <= -180 {
		r += 360
	}
	return r
}
