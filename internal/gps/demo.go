package gps

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shaunagostinho/field-compass/internal/geo"
)

// DemoConfig places the simulated walk.
type DemoConfig struct {
	Latitude  float64 `yaml:"lat" json:"lat"`
	Longitude float64 `yaml:"lon" json:"lon"`
	RadiusM   float64 `yaml:"radius_m" json:"radiusM"`
}

// DemoGPS simulates someone pacing back and forth through a point, so that a
// target placed there is approached, reached and left again.
type DemoGPS struct {
	mu     sync.Mutex
	t      float64
	center geo.Point
	radius float64
	rnd    *rand.Rand
}

// NewDemoGPS creates a simulated receiver pacing through cfg's center point.
func NewDemoGPS(cfg DemoConfig) *DemoGPS {
	if cfg.Latitude == 0 && cfg.Longitude == 0 {
		cfg.Latitude = 43.6532 // Toronto
		cfg.Longitude = -79.3832
	}
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = 30
	}
	return &DemoGPS{
		center: geo.Point{Latitude: cfg.Latitude, Longitude: cfg.Longitude},
		radius: cfg.RadiusM,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *DemoGPS) Name() string   { return "Demo GPS (Simulated)" }
func (d *DemoGPS) Connect() error { return nil }
func (d *DemoGPS) Close() error   { return nil }

// Read advances the simulated walk by one step.
func (d *DemoGPS) Read() (*Data, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.t += 0.1

	// Walk a north-south line through the center at roughly walking pace,
	// with ~1 m of receiver noise.
	north := d.radius*math.Sin(d.t*0.05) + d.rnd.NormFloat64()
	east := d.rnd.NormFloat64()

	mPerDegLat := geo.EarthRadiusM * math.Pi / 180
	mPerDegLon := mPerDegLat * math.Cos(d.center.Latitude*math.Pi/180)

	return &Data{
		Valid:      true,
		Latitude:   d.center.Latitude + north/mPerDegLat,
		Longitude:  d.center.Longitude + east/mPerDegLon,
		Accuracy:   3 + d.rnd.Float64()*2,
		Speed:      4 * math.Abs(math.Cos(d.t*0.05)),
		Altitude:   76,
		Satellites: 12,
		FixQuality: 1,
		HDOP:       0.8,
		Time:       time.Now().UTC(),
	}, nil
}
