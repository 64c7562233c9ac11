package gps

import (
	"errors"
	"time"

	"github.com/shaunagostinho/field-compass/internal/geo"
	"github.com/shaunagostinho/field-compass/internal/nav"
)

var (
	// ErrNotConnected is returned by Read before Connect succeeded.
	ErrNotConnected = errors.New("gps: not connected")
	// ErrNoData is returned by Read when the receiver sent nothing in time.
	ErrNoData = errors.New("gps: no sentences from receiver")
)

// Provider is the interface for GPS data sources.
type Provider interface {
	Name() string
	Connect() error
	Close() error
	// Read returns the latest GPS fix. May block briefly.
	Read() (*Data, error)
}

// Data holds a single GPS fix.
type Data struct {
	Valid      bool      `json:"valid"`      // Fix is valid
	Latitude   float64   `json:"latitude"`   // Decimal degrees
	Longitude  float64   `json:"longitude"`  // Decimal degrees
	Accuracy   float64   `json:"accuracy"`   // Estimated horizontal error, meters
	Speed      float64   `json:"speed"`      // km/h
	Course     float64   `json:"course"`     // Degrees true, course over ground
	Altitude   float64   `json:"altitude"`   // Meters
	Satellites int       `json:"satellites"` // Sats in use
	FixQuality int       `json:"fixQuality"` // 0=none, 1=GPS, 2=DGPS
	HDOP       float64   `json:"hdop"`       // Horizontal dilution
	Time       time.Time `json:"time"`       // UTC
}

// Fix converts the reading into the position fix consumed by the engine.
// ok is false when the receiver reports no valid fix.
func (d *Data) Fix() (nav.PositionFix, bool) {
	if d == nil || !d.Valid {
		return nav.PositionFix{}, false
	}
	p := geo.Point{Latitude: d.Latitude, Longitude: d.Longitude}
	if !p.Valid() {
		return nav.PositionFix{}, false
	}
	ts := d.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return nav.PositionFix{Point: p, AccuracyMeters: d.Accuracy, Time: ts}, true
}
