package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/field-compass/internal/nav"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveSample("ws", true)
	c.ObserveSample("ws", true)
	c.ObserveSample("ws", false)
	c.ObserveFix("gps", nav.PositionFix{AccuracyMeters: 4})
	c.ObserveReadout(nav.Readout{DistanceMeters: 12.5, RelativeAngle: -30})
	c.ObserveArrival()
	c.SetClients(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.OrientationSamples.WithLabelValues("ws", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.OrientationSamples.WithLabelValues("ws", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PositionFixes.WithLabelValues("gps")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Arrivals))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.WSClients))
	assert.Equal(t, 12.5, testutil.ToFloat64(c.DistanceMeters))
	assert.Equal(t, -30.0, testutil.ToFloat64(c.RelativeDegrees))
}

func TestCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	a.ObserveArrival()
	assert.Equal(t, 1.0, testutil.ToFloat64(b.Arrivals))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveSample("ws", true)
		c.ObserveFix("gps", nav.PositionFix{})
		c.ObserveReadout(nav.Readout{})
		c.ObserveArrival()
		c.SetClients(1)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)
	c.ObserveArrival()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "compass_arrivals_total 1")
}
