package heading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/field-compass/internal/geo"
)

func angularGap(a, b float64) float64 {
	return math.Abs(geo.NormalizeSignedDegrees(a - b))
}

func ptr(v float64) *float64 { return &v }

func TestSampleNormalize(t *testing.T) {
	tests := []struct {
		name   string
		sample Sample
		want   float64
		ok     bool
	}{
		{"absolute passes through", NewAbsolute(123.5), 123.5, true},
		{"absolute wraps 360", NewAbsolute(360), 0, true},
		{"absolute wraps negative", NewAbsolute(-30), 330, true},
		{"alpha zero portrait", NewAlpha(0, 0), 0, true},
		{"alpha 90 portrait is west", NewAlpha(90, 0), 270, true},
		{"alpha 270 portrait is east", NewAlpha(270, 0), 90, true},
		{"alpha with landscape rotation", NewAlpha(30, 90), 240, true},
		{"alpha with upside down rotation", NewAlpha(200, 180), 340, true},
		{"alpha with negative rotation", NewAlpha(10, -90), 80, true},
		{"alpha wraps past 360", NewAlpha(350, 270), 100, true},
		{"unknown rejected", Sample{}, 0, false},
		{"NaN heading rejected", NewAbsolute(math.NaN()), 0, false},
		{"NaN alpha rejected", NewAlpha(math.NaN(), 0), 0, false},
		{"infinite heading rejected", NewAbsolute(math.Inf(1)), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.sample.Normalize()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
				assert.GreaterOrEqual(t, got, 0.0)
				assert.Less(t, got, 360.0)
			}
		})
	}
}

func TestFromEvent(t *testing.T) {
	t.Run("compass heading wins over alpha", func(t *testing.T) {
		s := FromEvent(Event{WebkitCompassHeading: ptr(42), Alpha: ptr(100)})
		assert.Equal(t, Absolute, s.Kind)
		assert.Equal(t, 42.0, s.Heading)
	})

	t.Run("alpha with screen angle", func(t *testing.T) {
		s := FromEvent(Event{Alpha: ptr(100), ScreenAngle: ptr(90)})
		assert.Equal(t, AlphaRotation, s.Kind)
		assert.Equal(t, 100.0, s.Alpha)
		assert.Equal(t, 90.0, s.ScreenRotation)
	})

	t.Run("alpha without screen angle", func(t *testing.T) {
		s := FromEvent(Event{Alpha: ptr(100)})
		assert.Equal(t, AlphaRotation, s.Kind)
		assert.Equal(t, 0.0, s.ScreenRotation)
	})

	t.Run("empty event is unknown", func(t *testing.T) {
		s := FromEvent(Event{ScreenAngle: ptr(90)})
		assert.Equal(t, Unknown, s.Kind)
		_, ok := s.Normalize()
		assert.False(t, ok)
	})
}

func TestFilterCircularMean(t *testing.T) {
	f := NewFilter(Config{})
	_, ok := f.Ingest(NewAbsolute(350))
	require.True(t, ok)
	h, ok := f.Ingest(NewAbsolute(10))
	require.True(t, ok)

	assert.Less(t, angularGap(h, 0), 1e-9, "got %v", h)
	assert.GreaterOrEqual(t, h, 0.0)
	assert.Less(t, h, 360.0)
}

func TestFilterStates(t *testing.T) {
	f := NewFilter(Config{})
	assert.False(t, f.Tracking())
	_, ok := f.Heading()
	assert.False(t, ok)

	f.Ingest(NewAbsolute(90))
	assert.True(t, f.Tracking())
	h, ok := f.Heading()
	assert.True(t, ok)
	assert.Equal(t, 90.0, h)

	f.Reset()
	assert.False(t, f.Tracking())
	assert.Equal(t, 0, f.Len())
}

func TestFilterRejectsBadSamples(t *testing.T) {
	f := NewFilter(Config{})
	f.Ingest(NewAbsolute(45))
	before, _ := f.Heading()

	_, ok := f.Ingest(Sample{})
	assert.False(t, ok)
	_, ok = f.Ingest(NewAlpha(math.NaN(), 0))
	assert.False(t, ok)

	after, tracking := f.Heading()
	assert.True(t, tracking)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, f.Len())

	empty := NewFilter(Config{})
	_, ok = empty.Ingest(NewAbsolute(math.NaN()))
	assert.False(t, ok)
	assert.False(t, empty.Tracking())
}

func TestFilterEviction(t *testing.T) {
	f := NewFilter(Config{})
	// The first sample points the opposite way; once evicted it must not
	// pull the mean.
	f.Ingest(NewAbsolute(180))
	for i := 0; i < 5; i++ {
		f.Ingest(NewAbsolute(20))
	}
	h, _ := f.Heading()
	assert.Greater(t, angularGap(h, 20), 1.0, "180 should still be windowed")

	h, _ = f.Ingest(NewAbsolute(20))
	assert.Equal(t, DefaultWindow, f.Len())
	assert.Less(t, angularGap(h, 20), 1e-9, "oldest sample should be evicted, got %v", h)
}

func TestFilterSingleSampleIsExact(t *testing.T) {
	for _, deg := range []float64{0, 0.1, 33.3333, 90, 179.99, 270.5, 359.9} {
		f := NewFilter(Config{})
		h, ok := f.Ingest(NewAbsolute(deg))
		require.True(t, ok)
		assert.Equal(t, deg, h)
	}
}

func TestFilterDeclination(t *testing.T) {
	f := NewFilter(Config{DeclinationDeg: 15})
	h, _ := f.Ingest(NewAbsolute(350))
	assert.InDelta(t, 5, h, 1e-9)

	f = NewFilter(Config{DeclinationDeg: -10})
	h, _ = f.Ingest(NewAlpha(355, 0))
	assert.InDelta(t, 355, h, 1e-9)
}

func TestFilterCustomWindow(t *testing.T) {
	f := NewFilter(Config{Window: 2})
	f.Ingest(NewAbsolute(100))
	f.Ingest(NewAbsolute(200))
	h, _ := f.Ingest(NewAbsolute(200))
	assert.Equal(t, 2, f.Len())
	assert.InDelta(t, 200, h, 1e-9)
}
