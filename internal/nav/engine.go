package nav

import (
	"time"

	"github.com/shaunagostinho/field-compass/internal/geo"
	"github.com/shaunagostinho/field-compass/internal/heading"
)

const (
	// DefaultArriveM is the arrival radius used when Config.ArriveM is unset.
	DefaultArriveM = 4.0
	// DefaultRearmM is the distance at which the arrival latch re-arms.
	DefaultRearmM = 5.0
)

// Config holds engine settings.
type Config struct {
	Heading heading.Config `yaml:",inline" json:"heading"`
	ArriveM float64        `yaml:"arrive_m" json:"arriveM"` // arrival fires below this distance
	RearmM  float64        `yaml:"rearm_m" json:"rearmM"`   // arrival re-arms at or above this distance
}

// Target is a recorded find the user navigates back to. The engine never
// modifies it.
type Target struct {
	ID    string    `json:"id"`
	Point geo.Point `json:"point"`
	Label string    `json:"label"`
}

// PositionFix is one reading from a position source.
type PositionFix struct {
	Point          geo.Point `json:"point"`
	AccuracyMeters float64   `json:"accuracy"`
	Time           time.Time `json:"time"`
}

// Readout is the full navigation solution for one recomputation.
type Readout struct {
	TargetID       string    `json:"targetId"`
	DistanceMeters float64   `json:"distance"`
	BearingDegrees float64   `json:"bearing"`
	RelativeAngle  float64   `json:"relative"`
	Direction      Direction `json:"direction"`
	HeadingDegrees float64   `json:"heading"`
	HeadingKnown   bool      `json:"headingKnown"`
	AccuracyMeters float64   `json:"accuracy"`
	// Arrived is true from the arrival until the user walks back out past
	// the re-arm distance.
	Arrived bool `json:"arrived"`
}

// Arrival is emitted once per approach when the user gets within range.
type Arrival struct {
	Target         Target    `json:"target"`
	DistanceMeters float64   `json:"distance"`
	Time           time.Time `json:"time"`
}

// Engine recomputes the navigation readout from the latest position fix,
// the smoothed heading and the selected target.
//
// Engine is single-threaded: every method must be called from the same
// goroutine (see server.Server's event loop).
type Engine struct {
	filter   *heading.Filter
	prox     proximity
	target   *Target
	position *PositionFix
	readout  *Readout
	onArrive []func(Arrival)
	now      func() time.Time
}

// NewEngine creates an Engine with no target and no position.
func NewEngine(cfg Config) *Engine {
	if cfg.ArriveM <= 0 {
		cfg.ArriveM = DefaultArriveM
	}
	if cfg.RearmM < cfg.ArriveM {
		cfg.RearmM = cfg.ArriveM + (DefaultRearmM - DefaultArriveM)
	}
	return &Engine{
		filter: heading.NewFilter(cfg.Heading),
		prox:   proximity{arriveM: cfg.ArriveM, rearmM: cfg.RearmM},
		now:    time.Now,
	}
}

// OnArrived registers a callback for arrival events. Callbacks run
// synchronously on the engine's goroutine.
func (e *Engine) OnArrived(fn func(Arrival)) {
	e.onArrive = append(e.onArrive, fn)
}

// SetTarget selects the target to navigate to; nil clears the selection.
// Any change resets heading smoothing and re-arms the arrival latch.
// Selecting a new target drops the readout computed for the previous one;
// clearing the selection keeps the last readout, like Update does when
// there is nothing to compute.
func (e *Engine) SetTarget(t *Target) {
	if t != nil {
		cp := *t
		t = &cp
		e.readout = nil
	}
	e.target = t
	e.filter.Reset()
	e.prox.rearm()
	e.Update()
}

// Target returns the selected target.
func (e *Engine) Target() (Target, bool) {
	if e.target == nil {
		return Target{}, false
	}
	return *e.target, true
}

// Deactivate is called when the navigation view goes away.
func (e *Engine) Deactivate() {
	e.filter.Reset()
	e.prox.rearm()
}

// OnPositionUpdate records fix as the latest position and recomputes.
func (e *Engine) OnPositionUpdate(fix PositionFix) {
	if !fix.Point.Valid() {
		return
	}
	if fix.AccuracyMeters < 0 {
		fix.AccuracyMeters = 0
	}
	e.position = &fix
	e.Update()
}

// OnOrientationSample feeds a raw orientation sample through the heading
// filter and recomputes. It reports whether the sample was accepted.
func (e *Engine) OnOrientationSample(s heading.Sample) bool {
	if _, ok := e.filter.Ingest(s); !ok {
		return false
	}
	e.Update()
	return true
}

// Tick is the periodic refresh; it recomputes from the last known state.
func (e *Engine) Tick() { e.Update() }

// Position returns the latest fix.
func (e *Engine) Position() (PositionFix, bool) {
	if e.position == nil {
		return PositionFix{}, false
	}
	return *e.position, true
}

// Heading returns the smoothed heading, if any samples are windowed.
func (e *Engine) Heading() (float64, bool) { return e.filter.Heading() }

// CurrentReadout returns the last computed readout.
func (e *Engine) CurrentReadout() (Readout, bool) {
	if e.readout == nil {
		return Readout{}, false
	}
	return *e.readout, true
}

// Update recomputes the readout. Without a target or a position it does
// nothing and the previous readout is kept.
func (e *Engine) Update() {
	if e.target == nil || e.position == nil {
		return
	}
	here := e.position.Point
	dist := geo.DistanceMeters(here, e.target.Point)
	brg := geo.InitialBearingDegrees(here, e.target.Point)
	hdg, known := e.filter.Heading()
	rel := RelativeAngle(brg, hdg)

	e.readout = &Readout{
		TargetID:       e.target.ID,
		DistanceMeters: dist,
		BearingDegrees: brg,
		RelativeAngle:  rel,
		Direction:      Classify(rel),
		HeadingDegrees: hdg,
		HeadingKnown:   known,
		AccuracyMeters: e.position.AccuracyMeters,
	}

	fire := e.prox.observe(dist)
	e.readout.Arrived = e.prox.fired
	if fire {
		a := Arrival{Target: *e.target, DistanceMeters: dist, Time: e.now()}
		for _, fn := range e.onArrive {
			fn(a)
		}
	}
}
