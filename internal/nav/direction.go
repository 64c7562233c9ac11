package nav

import (
	"encoding/json"

	"github.com/shaunagostinho/field-compass/internal/geo"
)

// Direction is the spoken-style turn instruction derived from the angle
// between the device heading and the bearing to the target.
type Direction int

// Directions in clockwise sector order, starting straight ahead.
const (
	StraightAhead Direction = iota
	SlightRight
	Right
	SharpRight
	Behind
	SharpLeft
	Left
	SlightLeft
)

var directionNames = [...]string{
	StraightAhead: "Straight ahead",
	SlightRight:   "Slight right",
	Right:         "Right",
	SharpRight:    "Sharp right",
	Behind:        "Behind you",
	SharpLeft:     "Sharp left",
	Left:          "Left",
	SlightLeft:    "Slight left",
}

// String returns the display label, e.g. "Slight right".
func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return "Unknown"
	}
	return directionNames[d]
}

// MarshalJSON encodes the direction as its display label.
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Classify maps a relative angle in (-180,180] onto one of eight sectors.
// Boundary values belong to the sector closer to straight ahead.
func Classify(r float64) Direction {
	switch {
	case r >= -10 && r <= 10:
		return StraightAhead
	case r > 10 && r <= 45:
		return SlightRight
	case r > 45 && r <= 90:
		return Right
	case r > 90 && r <= 135:
		return SharpRight
	case r > 135 || r < -135:
		return Behind
	case r < -90:
		return SharpLeft
	case r < -45:
		return Left
	default:
		return SlightLeft
	}
}

// RelativeAngle returns how far to turn from heading to face bearing:
// positive is clockwise, result in (-180,180].
func RelativeAngle(bearing, heading float64) float64 {
	return geo.NormalizeSignedDegrees(bearing - heading)
}
