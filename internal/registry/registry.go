// Package registry owns the durable, ordered list of tracked works.
//
// The registry never reads history content. It only derives artifact paths
// from a row's (displayName, id) so that edits can move those artifacts.
package registry

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/TobiSchelling/ficstats/internal/layout"
	"github.com/TobiSchelling/ficstats/internal/storage"
)

// Registry is the file-backed list of tracked works.
type Registry struct {
	path   string
	layout layout.Layout
	works  []TrackedWork
}

// Open loads the registry at path, creating an empty file if none exists.
// A file that cannot be parsed is a StorageError; nothing it contains can be
// trusted, so callers should stop.
func Open(path string, l layout.Layout) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &storage.StorageError{Op: "create directory", Path: filepath.Dir(path), Err: err}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := storage.WriteFileAtomic(path, nil, 0o644); err != nil {
			return nil, err
		}
		data = nil
	} else if err != nil {
		return nil, &storage.StorageError{Op: "read", Path: path, Err: err}
	}
	return decode(path, l, data)
}

// Load reads the registry at path without touching the filesystem. A missing
// file is an empty registry.
func Load(path string, l layout.Layout) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &storage.StorageError{Op: "read", Path: path, Err: err}
	}
	return decode(path, l, data)
}

func decode(path string, l layout.Layout, data []byte) (*Registry, error) {
	works, err := Decode(data)
	if err != nil {
		return nil, &storage.StorageError{Op: "decode", Path: path, Err: err}
	}
	for i := range works {
		works[i].key = uuid.NewString()
	}
	return &Registry{path: path, layout: l, works: works}, nil
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

// List returns a copy of all rows in registry order.
func (r *Registry) List() []TrackedWork {
	out := make([]TrackedWork, len(r.works))
	copy(out, r.works)
	return out
}

// Len returns the number of rows.
func (r *Registry) Len() int {
	return len(r.works)
}

// Get returns the row at index.
func (r *Registry) Get(index int) (TrackedWork, error) {
	if err := r.checkIndex(index); err != nil {
		return TrackedWork{}, err
	}
	return r.works[index], nil
}

// Add appends w after validating it and checking ID and name uniqueness.
func (r *Registry) Add(w TrackedWork) (TrackedWork, error) {
	w.DisplayName = NormalizeName(w.DisplayName)
	if err := w.Validate(); err != nil {
		return TrackedWork{}, err
	}
	if err := r.checkUnique(w, -1); err != nil {
		return TrackedWork{}, err
	}
	w.key = uuid.NewString()

	next := append(r.List(), w)
	if err := r.persist(next); err != nil {
		return TrackedWork{}, err
	}
	r.works = next
	log.Printf("Tracking %s (%s)", w.DisplayName, w.ID)
	return w, nil
}

// Edit replaces the row at index with w. When the derived chart or history
// paths change, existing artifacts are moved before the registry file is
// rewritten. A crash between the two leaves artifacts under the new name
// while the file still lists the old one.
func (r *Registry) Edit(index int, w TrackedWork) (TrackedWork, error) {
	if err := r.checkIndex(index); err != nil {
		return TrackedWork{}, err
	}
	w.DisplayName = NormalizeName(w.DisplayName)
	if err := w.Validate(); err != nil {
		return TrackedWork{}, err
	}
	if err := r.checkUnique(w, index); err != nil {
		return TrackedWork{}, err
	}

	old := r.works[index]
	w.key = old.key

	if err := r.migrate(old, w); err != nil {
		return TrackedWork{}, err
	}

	next := r.List()
	next[index] = w
	if err := r.persist(next); err != nil {
		return TrackedWork{}, fmt.Errorf("artifacts moved but registry not updated: %w", err)
	}
	r.works = next
	return w, nil
}

// Remove drops the row at index. History and chart files are left in place.
func (r *Registry) Remove(index int) (TrackedWork, error) {
	if err := r.checkIndex(index); err != nil {
		return TrackedWork{}, err
	}
	removed := r.works[index]

	next := make([]TrackedWork, 0, len(r.works)-1)
	next = append(next, r.works[:index]...)
	next = append(next, r.works[index+1:]...)
	if err := r.persist(next); err != nil {
		return TrackedWork{}, err
	}
	r.works = next
	log.Printf("Stopped tracking %s (%s); its data was kept", removed.DisplayName, removed.ID)
	return removed, nil
}

type artifactMove struct {
	kind     string
	src, dst string
}

// migrate moves the history and chart of old to the paths derived from w.
// Either every existing artifact is moved or, on error, none is: moves that
// already happened are reversed. An artifact is never moved onto an existing
// file, since that file may belong to a removed work whose data was kept.
func (r *Registry) migrate(old, w TrackedWork) error {
	candidates := []artifactMove{
		{"history", r.layout.HistoryPath(old.DisplayName, old.ID), r.layout.HistoryPath(w.DisplayName, w.ID)},
		{"chart", r.layout.ChartPath(old.OutputDir, old.DisplayName), r.layout.ChartPath(w.OutputDir, w.DisplayName)},
	}

	var moves []artifactMove
	for _, m := range candidates {
		if m.src == m.dst {
			continue
		}
		srcExists, err := storage.Exists(m.src)
		if err != nil {
			return err
		}
		if !srcExists {
			continue
		}
		dstExists, err := storage.Exists(m.dst)
		if err != nil {
			return err
		}
		if dstExists {
			return &ValidationError{
				Field:  "display name",
				Value:  w.DisplayName,
				Reason: fmt.Sprintf("%s already exists at %s", m.kind, m.dst),
			}
		}
		moves = append(moves, m)
	}

	for i, m := range moves {
		if err := storage.MoveFile(m.src, m.dst); err != nil {
			undoMoves(moves[:i])
			return err
		}
		log.Printf("Moved %s %s -> %s", m.kind, m.src, m.dst)
	}
	return nil
}

// undoMoves puts already-moved artifacts back, newest first.
func undoMoves(done []artifactMove) {
	for i := len(done) - 1; i >= 0; i-- {
		m := done[i]
		if err := storage.MoveFile(m.dst, m.src); err != nil {
			log.Printf("Warning: could not move %s back to %s: %v", m.kind, m.src, err)
			continue
		}
		log.Printf("Moved %s back to %s", m.kind, m.src)
	}
}

func (r *Registry) checkIndex(index int) error {
	if index < 0 || index >= len(r.works) {
		return &ValidationError{
			Field:  "index",
			Value:  strconv.Itoa(index),
			Reason: fmt.Sprintf("must be between 0 and %d", len(r.works)-1),
		}
	}
	return nil
}

// checkUnique rejects w if its ID or name is used by any row other than skip.
func (r *Registry) checkUnique(w TrackedWork, skip int) error {
	for i, existing := range r.works {
		if i == skip {
			continue
		}
		if existing.ID == w.ID {
			return &ValidationError{Field: "work ID", Value: w.ID, Reason: "is already tracked as " + existing.DisplayName}
		}
		if existing.DisplayName == w.DisplayName {
			return &ValidationError{Field: "display name", Value: w.DisplayName, Reason: "is already used by work " + existing.ID}
		}
	}
	return nil
}

func (r *Registry) persist(works []TrackedWork) error {
	return storage.WriteFileAtomic(r.path, Encode(works), 0o644)
}
