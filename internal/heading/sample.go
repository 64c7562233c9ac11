package heading

import (
	"math"

	"github.com/shaunagostinho/field-compass/internal/geo"
)

// Kind tags which platform convention a Sample was reported in.
type Kind int

const (
	// Unknown samples carry no usable heading and are always rejected.
	Unknown Kind = iota
	// Absolute samples report a compass heading referenced to magnetic
	// north (iOS webkitCompassHeading, NMEA HDG/HDT).
	Absolute
	// AlphaRotation samples report a device-frame alpha angle that still
	// has to be corrected for screen rotation and flipped to clockwise.
	AlphaRotation
)

func (k Kind) String() string {
	switch k {
	case Absolute:
		return "absolute"
	case AlphaRotation:
		return "alpha+rotation"
	default:
		return "unknown"
	}
}

// Sample is one raw orientation reading.
type Sample struct {
	Kind           Kind
	Heading        float64 // Absolute: degrees clockwise from north
	Alpha          float64 // AlphaRotation: device-frame alpha, degrees
	ScreenRotation float64 // AlphaRotation: 0/90/180/270
}

// NewAbsolute builds a sample from a native compass heading.
func NewAbsolute(headingDeg float64) Sample {
	return Sample{Kind: Absolute, Heading: headingDeg}
}

// NewAlpha builds a sample from a device-frame alpha and screen rotation.
func NewAlpha(alpha, screenRotation float64) Sample {
	return Sample{Kind: AlphaRotation, Alpha: alpha, ScreenRotation: screenRotation}
}

// Normalize converts the sample to a heading in [0,360).
// ok is false for Unknown samples and for NaN or infinite inputs.
func (s Sample) Normalize() (deg float64, ok bool) {
	switch s.Kind {
	case Absolute:
		deg = s.Heading
	case AlphaRotation:
		rot := geo.NormalizeDegrees(s.ScreenRotation)
		deg = 360 - geo.NormalizeDegrees(s.Alpha+rot)
	default:
		return 0, false
	}
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0, false
	}
	return geo.NormalizeDegrees(deg), true
}

// Event is the deviceorientation payload sent by the browser UI. Fields the
// platform does not provide are omitted (nil).
type Event struct {
	WebkitCompassHeading *float64 `json:"webkitCompassHeading,omitempty"`
	Alpha                *float64 `json:"alpha,omitempty"`
	ScreenAngle          *float64 `json:"screenAngle,omitempty"`
}

// FromEvent maps a browser event onto a Sample. A native compass heading
// wins over alpha; an event with neither yields an Unknown sample.
func FromEvent(e Event) Sample {
	switch {
	case e.WebkitCompassHeading != nil:
		return NewAbsolute(*e.WebkitCompassHeading)
	case e.Alpha != nil:
		rot := 0.0
		if e.ScreenAngle != nil {
			rot = *e.ScreenAngle
		}
		return NewAlpha(*e.Alpha, rot)
	default:
		return Sample{}
	}
}
