package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/ficstats/internal/chart"
	"github.com/TobiSchelling/ficstats/internal/database"
	"github.com/TobiSchelling/ficstats/internal/history"
	"github.com/TobiSchelling/ficstats/internal/layout"
	"github.com/TobiSchelling/ficstats/internal/registry"
	"github.com/TobiSchelling/ficstats/internal/source"
)

type fixture struct {
	hist  *history.Store
	works []registry.TrackedWork
	db    *database.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &fixture{
		hist: history.NewStore(layout.Layout{HistoryDir: filepath.Join(dir, "history")}),
		works: []registry.TrackedWork{
			{ID: "111", DisplayName: "Foo", OutputDir: dir},
			{ID: "222", DisplayName: "Bar", OutputDir: dir},
		},
		db: db,
	}
}

func (f *fixture) server(t *testing.T) *Server {
	t.Helper()
	renderer, err := chart.NewHTMLRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	srv, err := New(func() ([]registry.TrackedWork, error) { return f.works, nil }, f.hist, renderer, f.db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func (f *fixture) record(t *testing.T, name, id string, hits int) {
	t.Helper()
	snap := source.Snapshot{Chapters: 2, Kudos: 40, Comments: 3, Hits: hits, Words: 9000,
		Published: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := f.hist.Record(name, id, snap, time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	f := newFixture(t)
	f.record(t, "Foo", "111", 12345)
	reason := "connection refused"
	f.db.InsertRun(&database.Run{RunDate: "2026-02-06", StartedAt: "x", Aborted: true, AbortReason: &reason})

	rec := get(t, f.server(t), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Tracked works", `href="/work/1"`, "12,345", "no data yet", "aborted: connection refused"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
}

func TestIndexEmptyRegistry(t *testing.T) {
	f := newFixture(t)
	f.works = nil

	rec := get(t, f.server(t), "/")
	if !strings.Contains(rec.Body.String(), "No works tracked") {
		t.Error("expected empty-state message")
	}
}

func TestIndexRegistryError(t *testing.T) {
	f := newFixture(t)
	renderer, _ := chart.NewHTMLRenderer()
	srv, err := New(func() ([]registry.TrackedWork, error) { return nil, errors.New("boom") }, f.hist, renderer, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if rec := get(t, srv, "/"); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestWorkRoute(t *testing.T) {
	f := newFixture(t)
	f.record(t, "Foo", "111", 500)

	rec := get(t, f.server(t), "/work/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<svg") || !strings.Contains(body, "&#34;Foo&#34; Data") {
		t.Error("expected chart page for Foo")
	}
}

func TestWorkRouteWithoutHistory(t *testing.T) {
	f := newFixture(t)
	rec := get(t, f.server(t), "/work/2")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No history recorded for work 222") {
		t.Error("expected missing-history message")
	}
}

func TestWorkRouteBadIndex(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	if rec := get(t, srv, "/work/9"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for out-of-range index, got %d", rec.Code)
	}
	if rec := get(t, srv, "/work/abc"); rec.Code != http.StatusFound {
		t.Errorf("expected redirect for non-numeric index, got %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	if rec := get(t, f.server(t), "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	f := newFixture(t)
	rec := get(t, f.server(t), "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
