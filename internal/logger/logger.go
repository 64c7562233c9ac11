package logger

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/shaunagostinho/field-compass/internal/nav"
)

// Logger records the navigation track (fix, heading and readout) to CSV
// files with automatic rotation.
type Logger struct {
	mu       sync.Mutex
	dir      string
	interval time.Duration
	enabled  bool

	file   *os.File
	writer *csv.Writer
	lastTs time.Time
	rows   int
	now    func() time.Time
}

// Config holds logger configuration.
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs"`
}

const (
	maxRowsPerFile = 100_000 // Rotate after 100k rows (~14 hrs at 2 Hz)
)

var csvHeader = []string{
	"timestamp", "target_id", "target_label",
	"lat", "lon", "accuracy_m",
	"heading_deg", "heading_known",
	"distance_m", "bearing_deg", "relative_deg", "direction",
	"arrived",
}

// New creates a new Logger.
func New(cfg Config) *Logger {
	if cfg.Path == "" {
		cfg.Path = "/var/log/field-compass"
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval < 100*time.Millisecond {
		interval = 500 * time.Millisecond // Default 2 Hz
	}
	return &Logger{
		dir:      cfg.Path,
		interval: interval,
		enabled:  cfg.Enabled,
		now:      time.Now,
	}
}

// SetEnabled allows toggling logging at runtime.
func (l *Logger) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
	if !on && l.file != nil {
		l.closeFile()
	}
}

// IsEnabled returns whether logging is active.
func (l *Logger) IsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Record writes a readout row if the minimum interval has elapsed. Rows
// flagged as arrivals are always written.
func (l *Logger) Record(target nav.Target, fix nav.PositionFix, r nav.Readout, arrived bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	now := l.now()
	if !arrived && now.Sub(l.lastTs) < l.interval {
		return
	}
	l.lastTs = now

	// Open/rotate file if needed
	if l.writer == nil || l.rows >= maxRowsPerFile {
		if err := l.rotateFile(now); err != nil {
			log.Printf("[logger] rotate failed: %v", err)
			return
		}
	}

	row := buildRow(now, target, fix, r, arrived)
	if err := l.writer.Write(row); err != nil {
		log.Printf("[logger] write failed: %v", err)
		return
	}
	l.writer.Flush()
	l.rows++
}

// Close flushes and closes the current log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFile()
}

func (l *Logger) rotateFile(now time.Time) error {
	l.closeFile()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}

	filename := fmt.Sprintf("track_%s.csv", now.Format("2006-01-02_150405"))
	path := filepath.Join(l.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	l.file = f
	l.writer = csv.NewWriter(f)
	l.rows = 0

	// Write header
	if err := l.writer.Write(csvHeader); err != nil {
		return err
	}
	l.writer.Flush()

	log.Printf("[logger] opened %s", path)
	return nil
}

func (l *Logger) closeFile() {
	if l.writer != nil {
		l.writer.Flush()
		l.writer = nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func buildRow(ts time.Time, t nav.Target, fix nav.PositionFix, r nav.Readout, arrived bool) []string {
	row := make([]string, len(csvHeader))

	row[0] = ts.Format(time.RFC3339Nano)
	row[1] = t.ID
	row[2] = t.Label
	row[3] = strconv.FormatFloat(fix.Point.Latitude, 'f', 7, 64)
	row[4] = strconv.FormatFloat(fix.Point.Longitude, 'f', 7, 64)
	row[5] = fmt.Sprintf("%.1f", fix.AccuracyMeters)
	row[6] = fmt.Sprintf("%.1f", r.HeadingDegrees)
	row[7] = boolStr(r.HeadingKnown)
	row[8] = fmt.Sprintf("%.2f", r.DistanceMeters)
	row[9] = fmt.Sprintf("%.1f", r.BearingDegrees)
	row[10] = fmt.Sprintf("%.1f", r.RelativeAngle)
	row[11] = r.Direction.String()
	row[12] = boolStr(arrived)

	return row
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
