// Package server is a read-only web view over the tracked works and their
// charts.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/TobiSchelling/ficstats/internal/chart"
	"github.com/TobiSchelling/ficstats/internal/database"
	"github.com/TobiSchelling/ficstats/internal/history"
	"github.com/TobiSchelling/ficstats/internal/registry"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// WorksFunc returns the current registry rows. It is called per request so
// edits made by the CLI show up without a restart.
type WorksFunc func() ([]registry.TrackedWork, error)

// Server is the HTTP server for browsing stats.
type Server struct {
	works    WorksFunc
	hist     *history.Store
	renderer *chart.HTMLRenderer
	ledger   *database.DB
	pages    map[string]*template.Template
	mux      *http.ServeMux
}

type workRow struct {
	Index   int
	Work    registry.TrackedWork
	Latest  *history.Sample
	Samples int
	Err     string
}

// New creates a new Server. ledger may be nil.
func New(works WorksFunc, hist *history.Store, renderer *chart.HTMLRenderer, ledger *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html", "missing.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		works:    works,
		hist:     hist,
		renderer: renderer,
		ledger:   ledger,
		pages:    pages,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/work/", s.handleWork)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	works, err := s.works()
	if err != nil {
		log.Printf("Error loading registry: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rows := make([]workRow, len(works))
	for i, tw := range works {
		rows[i] = workRow{Index: i + 1, Work: tw}
		series, ok, err := s.hist.Load(tw.DisplayName, tw.ID)
		switch {
		case err != nil:
			rows[i].Err = err.Error()
		case ok:
			latest := series.Latest()
			rows[i].Latest = &latest
			rows[i].Samples = len(series.Samples)
		}
	}

	var lastRun *database.Run
	if s.ledger != nil {
		lastRun, err = s.ledger.GetLastRun()
		if err != nil {
			log.Printf("Error loading last run: %v", err)
		}
	}

	s.render(w, http.StatusOK, "index.html", map[string]any{
		"Works":   rows,
		"LastRun": lastRun,
	})
}

func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/work/"))
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	works, err := s.works()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if index < 1 || index > len(works) {
		http.NotFound(w, r)
		return
	}
	tw := works[index-1]

	series, ok, err := s.hist.Load(tw.DisplayName, tw.ID)
	if err != nil {
		log.Printf("Error loading history for %s: %v", tw.DisplayName, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !ok {
		s.render(w, http.StatusNotFound, "missing.html", map[string]any{"Work": tw})
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.WriteTo(&buf, series, fmt.Sprintf("%q Data", tw.DisplayName)); err != nil {
		log.Printf("Error rendering chart for %s: %v", tw.DisplayName, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// Serve starts the HTTP server on the given port.
func Serve(works WorksFunc, hist *history.Store, renderer *chart.HTMLRenderer, ledger *database.DB, port int) error {
	srv, err := New(works, hist, renderer, ledger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
