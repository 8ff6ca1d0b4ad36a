// Package history keeps one time series of daily samples per tracked work.
//
// A series is created as a seed pair of identical samples so that the
// chapter-added comparison always has a predecessor. After that, each call to
// Record either overwrites the last sample (same day) or appends a new one.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/TobiSchelling/ficstats/internal/layout"
	"github.com/TobiSchelling/ficstats/internal/source"
	"github.com/TobiSchelling/ficstats/internal/storage"
)

const fileVersion = 1

// Sample is one recorded data point.
type Sample struct {
	DaysSincePublish int  `json:"days_since_publish"`
	Chapters         int  `json:"chapters"`
	Kudos            int  `json:"kudos"`
	Comments         int  `json:"comments"`
	Hits             int  `json:"hits"`
	Words            int  `json:"words"`
	ChapterAdded     bool `json:"chapter_added"`
}

// Series is the ordered sample sequence for one work.
type Series struct {
	Samples []Sample `json:"samples"`
}

// Latest returns the most recent sample.
func (s *Series) Latest() Sample {
	return s.Samples[len(s.Samples)-1]
}

type fileFormat struct {
	Version int      `json:"version"`
	Samples []Sample `json:"samples"`
}

// Store persists series under a layout's history directory.
type Store struct {
	layout layout.Layout
}

// NewStore creates a history store.
func NewStore(l layout.Layout) *Store {
	return &Store{layout: l}
}

// Path returns the history file for (displayName, workID).
func (s *Store) Path(displayName, workID string) string {
	return s.layout.HistoryPath(displayName, workID)
}

// DaysSince counts calendar days from publish to today. A publish date after
// today counts as day 0.
func DaysSince(publish, today time.Time) int {
	p := time.Date(publish.Year(), publish.Month(), publish.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	days := int(t.Sub(p).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Load returns the stored series and whether one exists. A missing file is
// not an error.
func (s *Store) Load(displayName, workID string) (*Series, bool, error) {
	path := s.Path(displayName, workID)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &storage.StorageError{Op: "read", Path: path, Err: err}
	}

	series, err := Decode(data)
	if err != nil {
		return nil, false, &storage.StorageError{Op: "decode", Path: path, Err: err}
	}
	return series, true, nil
}

// Record merges snap into the series for (displayName, workID) and persists it
// with a single atomic write. today must be the same for every record in a run.
func (s *Store) Record(displayName, workID string, snap source.Snapshot, today time.Time) (*Series, error) {
	series, exists, err := s.Load(displayName, workID)
	if err != nil {
		return nil, err
	}

	sample := Sample{
		DaysSincePublish: DaysSince(snap.Published, today),
		Chapters:         snap.Chapters,
		Kudos:            snap.Kudos,
		Comments:         snap.Comments,
		Hits:             snap.Hits,
		Words:            snap.Words,
	}

	if !exists {
		series = seed(sample)
	} else if err := merge(series, sample); err != nil {
		return nil, fmt.Errorf("recording %s (%s): %w", displayName, workID, err)
	}

	path := s.Path(displayName, workID)
	data, err := Encode(series)
	if err != nil {
		return nil, &storage.StorageError{Op: "encode", Path: path, Err: err}
	}
	if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
		return nil, err
	}
	return series, nil
}

func seed(sample Sample) *Series {
	first, second := sample, sample
	first.ChapterAdded = true
	second.ChapterAdded = false
	return &Series{Samples: []Sample{first, second}}
}

// merge coalesces a same-day sample into the last slot or appends a new day.
func merge(series *Series, sample Sample) error {
	n := len(series.Samples)
	last := series.Samples[n-1]

	switch {
	case sample.DaysSincePublish == last.DaysSincePublish:
		sample.ChapterAdded = sample.Chapters != series.Samples[n-2].Chapters
		series.Samples[n-1] = sample
	case sample.DaysSincePublish > last.DaysSincePublish:
		sample.ChapterAdded = sample.Chapters != last.Chapters
		series.Samples = append(series.Samples, sample)
	default:
		return fmt.Errorf("day %d precedes last recorded day %d", sample.DaysSincePublish, last.DaysSincePublish)
	}
	return nil
}

// Encode serializes a series.
func Encode(series *Series) ([]byte, error) {
	return json.MarshalIndent(fileFormat{Version: fileVersion, Samples: series.Samples}, "", "  ")
}

// Decode parses a serialized series. Anything with fewer than two samples is
// corrupt since every series starts as a seed pair.
func Decode(data []byte) (*Series, error) {
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Version != fileVersion {
		return nil, fmt.Errorf("unsupported history version %d", f.Version)
	}
	if len(f.Samples) < 2 {
		return nil, fmt.Errorf("history has %d samples, want at least 2", len(f.Samples))
	}
	return &Series{Samples: f.Samples}, nil
}
