// Package metrics exposes Prometheus instrumentation for the navigation
// service.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaunagostinho/field-compass/internal/nav"
)

// Collector bundles the service's metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	OrientationSamples *prometheus.CounterVec // by source and result
	PositionFixes      *prometheus.CounterVec // by source
	Arrivals           prometheus.Counter
	WSClients          prometheus.Gauge
	DistanceMeters     prometheus.Gauge
	RelativeDegrees    prometheus.Gauge
	FixAccuracyMeters  prometheus.Histogram
}

// New registers the collectors against reg, defaulting to the global
// Prometheus registry when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	samples, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_orientation_samples_total",
		Help: "Orientation samples received, labeled by source and whether the heading filter accepted them.",
	}, []string{"source", "result"}), "compass_orientation_samples_total")
	if err != nil {
		return nil, err
	}
	fixes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_position_fixes_total",
		Help: "Position fixes fed to the navigation engine, labeled by source.",
	}, []string{"source"}), "compass_position_fixes_total")
	if err != nil {
		return nil, err
	}
	arrivals, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compass_arrivals_total",
		Help: "Arrival events emitted by the proximity latch.",
	}), "compass_arrivals_total")
	if err != nil {
		return nil, err
	}
	clients, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compass_ws_clients",
		Help: "Connected websocket clients.",
	}), "compass_ws_clients")
	if err != nil {
		return nil, err
	}
	distance, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compass_target_distance_meters",
		Help: "Distance to the selected target from the latest readout.",
	}), "compass_target_distance_meters")
	if err != nil {
		return nil, err
	}
	relative, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compass_relative_angle_degrees",
		Help: "Turn needed to face the target from the latest readout, clockwise positive.",
	}), "compass_relative_angle_degrees")
	if err != nil {
		return nil, err
	}
	accuracy, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compass_fix_accuracy_meters",
		Help:    "Reported horizontal accuracy of position fixes.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 20, 50, 100},
	}), "compass_fix_accuracy_meters")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		OrientationSamples: samples,
		PositionFixes:      fixes,
		Arrivals:           arrivals,
		WSClients:          clients,
		DistanceMeters:     distance,
		RelativeDegrees:    relative,
		FixAccuracyMeters:  accuracy,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveSample counts one orientation sample by source and outcome.
func (c *Collector) ObserveSample(source string, accepted bool) {
	if c == nil {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	c.OrientationSamples.WithLabelValues(source, result).Inc()
}

// ObserveFix records a position fix and its accuracy.
func (c *Collector) ObserveFix(source string, fix nav.PositionFix) {
	if c == nil {
		return
	}
	c.PositionFixes.WithLabelValues(source).Inc()
	c.FixAccuracyMeters.Observe(fix.AccuracyMeters)
}

// ObserveReadout updates the distance and relative-angle gauges.
func (c *Collector) ObserveReadout(r nav.Readout) {
	if c == nil {
		return
	}
	c.DistanceMeters.Set(r.DistanceMeters)
	c.RelativeDegrees.Set(r.RelativeAngle)
}

// ObserveArrival counts one arrival.
func (c *Collector) ObserveArrival() {
	if c == nil {
		return
	}
	c.Arrivals.Inc()
}

// SetClients sets the connected WebSocket client gauge.
func (c *Collector) SetClients(n int) {
	if c == nil {
		return
	}
	c.WSClients.Set(float64(n))
}

// register adds col to reg, reusing an already registered collector of the
// same type.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
