package nav

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		r    float64
		want Direction
	}{
		{0, StraightAhead},
		{10, StraightAhead},
		{-10, StraightAhead},
		{10.0001, SlightRight},
		{45, SlightRight},
		{45.5, Right},
		{90, Right},
		{90.5, SharpRight},
		{135, SharpRight},
		{135.5, Behind},
		{180, Behind},
		{-180, Behind},
		{-135.5, Behind},
		{-135, SharpLeft},
		{-90.5, SharpLeft},
		{-90, Left},
		{-45.5, Left},
		{-45, SlightLeft},
		{-10.0001, SlightLeft},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.r), "r=%v", tt.r)
	}
}

func TestRelativeAngleTieBreak(t *testing.T) {
	r := RelativeAngle(100, 90)
	assert.Equal(t, 10.0, r)
	assert.Equal(t, StraightAhead, Classify(r))

	r = RelativeAngle(101, 90)
	assert.Equal(t, 11.0, r)
	assert.Equal(t, SlightRight, Classify(r))
}

func TestRelativeAngleRange(t *testing.T) {
	assert.Equal(t, 180.0, RelativeAngle(180, 0))
	assert.Equal(t, 180.0, RelativeAngle(0, 180))
	assert.InDelta(t, -20, RelativeAngle(350, 10), 1e-9)
	assert.InDelta(t, 20, RelativeAngle(10, 350), 1e-9)
	for b := 0.0; b < 360; b += 7.5 {
		for h := 0.0; h < 360; h += 11.25 {
			r := RelativeAngle(b, h)
			assert.Greater(t, r, -180.0)
			assert.LessOrEqual(t, r, 180.0)
		}
	}
}

func TestSectorPartition(t *testing.T) {
	// Independent restatement of the sector table.
	sectors := []struct {
		dir Direction
		in  func(r float64) bool
	}{
		{StraightAhead, func(r float64) bool { return r >= -10 && r <= 10 }},
		{SlightRight, func(r float64) bool { return r > 10 && r <= 45 }},
		{Right, func(r float64) bool { return r > 45 && r <= 90 }},
		{SharpRight, func(r float64) bool { return r > 90 && r <= 135 }},
		{Behind, func(r float64) bool { return r > 135 || r < -135 }},
		{SharpLeft, func(r float64) bool { return r >= -135 && r < -90 }},
		{Left, func(r float64) bool { return r >= -90 && r < -45 }},
		{SlightLeft, func(r float64) bool { return r >= -45 && r < -10 }},
	}

	for i := -180; i <= 180; i++ {
		r := float64(i)
		matches := 0
		var matched Direction
		for _, s := range sectors {
			if s.in(r) {
				matches++
				matched = s.dir
			}
		}
		if assert.Equal(t, 1, matches, "r=%d", i) {
			assert.Equal(t, matched, Classify(r), "r=%d", i)
		}
	}
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "Straight ahead", StraightAhead.String())
	assert.Equal(t, "Behind you", Behind.String())
	assert.Equal(t, "Slight left", SlightLeft.String())
	assert.Equal(t, "Unknown", Direction(42).String())

	data, err := json.Marshal(struct {
		D Direction `json:"d"`
	}{SharpRight})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"d":"Sharp right"}`, string(data))
}
