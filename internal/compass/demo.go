package compass

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shaunagostinho/field-compass/internal/heading"
)

// Demo generates a slowly swinging heading with sensor jitter. Every other
// sample is reported in the alpha+rotation form, as an Android browser
// would, so both normalization paths are exercised.
type Demo struct {
	mu  sync.Mutex
	t   float64
	n   int
	rnd *rand.Rand
}

// NewDemo creates a simulated compass seeded from the clock.
func NewDemo() *Demo {
	return &Demo{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (d *Demo) Name() string   { return "Demo compass (Simulated)" }
func (d *Demo) Connect() error { return nil }
func (d *Demo) Close() error   { return nil }

// Read advances the simulation by one step.
func (d *Demo) Read() (heading.Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.t += 0.05
	d.n++

	h := 40*math.Sin(d.t*0.2) + d.rnd.NormFloat64()*4
	if d.n%2 == 0 {
		return heading.NewAbsolute(h), nil
	}
	// alpha grows counter-clockwise; screen held in portrait.
	return heading.NewAlpha(360-h, 0), nil
}
