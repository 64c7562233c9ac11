// Package compass provides orientation sources that feed the heading filter
// when no phone sensor is available: an NMEA electronic compass on a serial
// line and a simulated one.
package compass

import (
	"errors"

	"github.com/shaunagostinho/field-compass/internal/heading"
)

var (
	// ErrNotConnected is returned by Read before Connect succeeded.
	ErrNotConnected = errors.New("compass: not connected")
	// ErrNoSample is returned by Read when nothing usable arrived in time.
	ErrNoSample = errors.New("compass: no heading sentence")
)

// Provider is the interface that all orientation backends implement.
type Provider interface {
	// Name returns the human-readable name of this provider.
	Name() string
	// Connect opens the device.
	Connect() error
	// Close shuts the device down.
	Close() error
	// Read returns the next raw orientation sample. May block briefly.
	Read() (heading.Sample, error)
}
