package heading

import (
	"math"

	"github.com/shaunagostinho/field-compass/internal/geo"
)

// DefaultWindow is the number of samples averaged by a Filter.
const DefaultWindow = 6

// Config holds filter settings.
type Config struct {
	Window         int     `yaml:"window_size" json:"windowSize"`
	DeclinationDeg float64 `yaml:"declination_deg" json:"declinationDeg"`
}

// Filter smooths a stream of orientation samples with a circular mean over
// a fixed-size FIFO window. It is not safe for concurrent use.
type Filter struct {
	size        int
	declination float64
	window      []float64
	smoothed    float64
}

// NewFilter creates an empty Filter.
func NewFilter(cfg Config) *Filter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Filter{
		size:        cfg.Window,
		declination: cfg.DeclinationDeg,
		window:      make([]float64, 0, cfg.Window),
	}
}

// Reset empties the window. Heading reports ok=false until the next sample.
func (f *Filter) Reset() {
	f.window = f.window[:0]
	f.smoothed = 0
}

// Tracking reports whether at least one sample is in the window.
func (f *Filter) Tracking() bool { return len(f.window) > 0 }

// Len returns the number of samples currently windowed.
func (f *Filter) Len() int { return len(f.window) }

// Heading returns the current smoothed heading in [0,360).
func (f *Filter) Heading() (float64, bool) {
	if len(f.window) == 0 {
		return 0, false
	}
	return f.smoothed, true
}

// Ingest normalizes s, pushes it into the window and returns the new
// smoothed heading. Unusable samples are dropped and leave the filter as it
// was; ok is false in that case.
func (f *Filter) Ingest(s Sample) (float64, bool) {
	deg, ok := s.Normalize()
	if !ok {
		return 0, false
	}
	deg = geo.NormalizeDegrees(deg + f.declination)

	if len(f.window) == f.size {
		copy(f.window, f.window[1:])
		f.window = f.window[:f.size-1]
	}
	f.window = append(f.window, deg)
	f.smoothed = circularMean(f.window)
	return f.smoothed, true
}

// circularMean averages angles as unit vectors so that 350° and 10° give 0°
// rather than 180°.
func circularMean(degs []float64) float64 {
	if len(degs) == 1 {
		return degs[0]
	}
	var x, y float64
	for _, d := range degs {
		r := d * math.Pi / 180
		x += math.Cos(r)
		y += math.Sin(r)
	}
	return geo.NormalizeDegrees(math.Atan2(y, x) * 180 / math.Pi)
}
