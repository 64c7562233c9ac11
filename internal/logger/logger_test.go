package logger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/field-compass/internal/geo"
	"github.com/shaunagostinho/field-compass/internal/nav"
)

var (
	testTarget = nav.Target{ID: "t_1", Label: "Coin", Point: geo.Point{Latitude: 51.5007, Longitude: -0.1}}
	testFix    = nav.PositionFix{Point: geo.Point{Latitude: 51.5, Longitude: -0.1}, AccuracyMeters: 4.2}
	testRead   = nav.Readout{
		TargetID:       "t_1",
		DistanceMeters: 77.84,
		BearingDegrees: 0,
		RelativeAngle:  -12.5,
		Direction:      nav.SlightLeft,
		HeadingDegrees: 12.5,
		HeadingKnown:   true,
	}
)

func readRows(t *testing.T, dir string) [][]string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "track_*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRecordWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: true, Path: dir, IntervalMs: 1000})
	clock := time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	l.Record(testTarget, testFix, testRead, false)
	clock = clock.Add(200 * time.Millisecond)
	l.Record(testTarget, testFix, testRead, false) // throttled
	clock = clock.Add(100 * time.Millisecond)
	l.Record(testTarget, testFix, testRead, true) // arrivals bypass the throttle
	clock = clock.Add(2 * time.Second)
	l.Record(testTarget, testFix, testRead, false)
	l.Close()

	rows := readRows(t, dir)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])

	first := rows[1]
	assert.Equal(t, "2025-10-19T12:00:00Z", first[0])
	assert.Equal(t, "t_1", first[1])
	assert.Equal(t, "Coin", first[2])
	assert.Equal(t, "51.5000000", first[3])
	assert.Equal(t, "-0.1000000", first[4])
	assert.Equal(t, "4.2", first[5])
	assert.Equal(t, "1", first[7])
	assert.Equal(t, "77.84", first[8])
	assert.Equal(t, "-12.5", first[10])
	assert.Equal(t, "Slight left", first[11])
	assert.Equal(t, "0", first[12])

	assert.Equal(t, "1", rows[2][12])
}

func TestRecordDisabled(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: false, Path: dir})
	assert.False(t, l.IsEnabled())
	l.Record(testTarget, testFix, testRead, true)

	files, _ := filepath.Glob(filepath.Join(dir, "*.csv"))
	assert.Empty(t, files)

	l.SetEnabled(true)
	assert.True(t, l.IsEnabled())
	l.Record(testTarget, testFix, testRead, false)
	l.SetEnabled(false)
	assert.Len(t, readRows(t, dir), 2)
}

func TestNewDefaults(t *testing.T) {
	l := New(Config{})
	assert.Equal(t, "/var/log/field-compass", l.dir)
	assert.Equal(t, 500*time.Millisecond, l.interval)
}
