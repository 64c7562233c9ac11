// Package targets reads the survey export file written by the field app and
// serves its targets, read-only, to the navigation engine.
package targets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/shaunagostinho/field-compass/internal/geo"
	"github.com/shaunagostinho/field-compass/internal/nav"
)

var (
	ErrInvalidFormat = errors.New("targets: invalid data format, expected a surveys array")
	ErrNotFound      = errors.New("targets: target not found")
	ErrNoOpenSurvey  = errors.New("targets: no open survey")
)

// Target is one recorded find inside a survey.
type Target struct {
	ID          string  `json:"id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Notes       string  `json:"notes"`
	Description string  `json:"description,omitempty"`
	Found       bool    `json:"found"`
	CreatedAt   int64   `json:"createdAt,omitempty"` // Unix ms
}

// Survey groups targets recorded in one session.
type Survey struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Status   string   `json:"status"` // "Open" or "Closed"
	Archived bool     `json:"archived"`
	Targets  []Target `json:"targets"`
}

type exportFile struct {
	Surveys *[]Survey `json:"surveys"`
}

// Catalog is an immutable snapshot of an export file.
type Catalog struct {
	surveys []Survey
}

// Load reads a catalog from an export file on disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("targets: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	log.Printf("[targets] loaded %d surveys from %s", len(c.surveys), path)
	return c, nil
}

// Parse decodes export JSON. Targets with a missing id are given one so
// they can still be selected; targets with out-of-range coordinates are
// skipped.
func Parse(data []byte) (*Catalog, error) {
	var f exportFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}
	if f.Surveys == nil {
		return nil, ErrInvalidFormat
	}

	surveys := make([]Survey, 0, len(*f.Surveys))
	for _, s := range *f.Surveys {
		kept := s.Targets[:0:0]
		for _, t := range s.Targets {
			if !(geo.Point{Latitude: t.Lat, Longitude: t.Lng}).Valid() {
				log.Printf("[targets] skipping %q in survey %q: bad coordinates", t.ID, s.Name)
				continue
			}
			if t.ID == "" {
				t.ID = "t_" + uuid.NewString()
			}
			kept = append(kept, t)
		}
		s.Targets = kept
		surveys = append(surveys, s)
	}
	return &Catalog{surveys: surveys}, nil
}

// Empty returns a catalog with no surveys.
func Empty() *Catalog { return &Catalog{} }

// Surveys returns every survey in file order.
func (c *Catalog) Surveys() []Survey {
	out := make([]Survey, len(c.surveys))
	copy(out, c.surveys)
	return out
}

// OpenSurvey returns the first survey that is open and not archived.
func (c *Catalog) OpenSurvey() (Survey, error) {
	for _, s := range c.surveys {
		if s.Status == "Open" && !s.Archived {
			return s, nil
		}
	}
	return Survey{}, ErrNoOpenSurvey
}

// Find looks a target up by id across all surveys.
func (c *Catalog) Find(id string) (nav.Target, error) {
	for _, s := range c.surveys {
		for _, t := range s.Targets {
			if t.ID == id {
				return toNav(t), nil
			}
		}
	}
	return nav.Target{}, ErrNotFound
}

// Step moves through the open survey's targets relative to currentID:
// "first", "last", "next" and "prev" wrap the way the compass buttons do.
func (c *Catalog) Step(currentID, move string) (nav.Target, error) {
	s, err := c.OpenSurvey()
	if err != nil {
		return nav.Target{}, err
	}
	n := len(s.Targets)
	if n == 0 {
		return nav.Target{}, ErrNotFound
	}
	i := -1
	for j, t := range s.Targets {
		if t.ID == currentID {
			i = j
			break
		}
	}

	var idx int
	switch move {
	case "first":
		idx = 0
	case "last":
		idx = n - 1
	case "next":
		if i >= 0 && i < n-1 {
			idx = i + 1
		}
	case "prev":
		idx = n - 1
		if i > 0 {
			idx = i - 1
		}
	default:
		return nav.Target{}, fmt.Errorf("targets: unknown move %q", move)
	}
	return toNav(s.Targets[idx]), nil
}

func toNav(t Target) nav.Target {
	label := t.Notes
	if label == "" {
		label = "Target"
	}
	return nav.Target{
		ID:    t.ID,
		Point: geo.Point{Latitude: t.Lat, Longitude: t.Lng},
		Label: label,
	}
}
