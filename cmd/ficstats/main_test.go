package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/TobiSchelling/ficstats/internal/config"
	"github.com/TobiSchelling/ficstats/internal/storage"
)

const workPageTemplate = `<html><body>
<h2 class="title heading">%s</h2>
<dl class="stats">
  <dd class="published">2026-01-01</dd>
  <dd class="words">12,000</dd>
  <dd class="chapters">%d/?</dd>
  <dd class="comments">4</dd>
  <dd class="kudos">50</dd>
  <dd class="hits">1,234</dd>
</dl>
</body></html>`

type cliEnv struct {
	dir      string
	outDir   string
	config   string
	chapters int
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{dir: t.TempDir(), chapters: 1}
	env.outDir = filepath.Join(env.dir, "charts")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/works/111":
			fmt.Fprintf(w, workPageTemplate, "Foo", env.chapters)
		case "/works/222":
			fmt.Fprintf(w, workPageTemplate, "Bad: Title?", env.chapters)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	env.config = filepath.Join(env.dir, "config.yaml")
	yaml := fmt.Sprintf(`paths:
  registry_path: %q
  history_dir: %q
  chart_dir: %q
  data_dir: %q
source:
  base_url: %q
  timeout_seconds: 5
`, filepath.Join(env.dir, "tracked_works.txt"), filepath.Join(env.dir, "history"), env.outDir, filepath.Join(env.dir, "data"), srv.URL)
	if err := os.WriteFile(env.config, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func (env *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", env.config}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (env *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := env.run(t, args...)
	if err != nil {
		t.Fatalf("ficstats %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestAddListEditRemove(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "add", "https://archiveofourown.org/works/111/chapters/9")
	if !strings.Contains(out, "Added [1] Foo (111)") {
		t.Errorf("unexpected add output: %s", out)
	}

	env.mustRun(t, "add", "333", "Offline", "--offline", "--dir", env.dir)

	out = env.mustRun(t, "list")
	for _, want := range []string{"Foo", "Offline", env.outDir} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in list output:\n%s", want, out)
		}
	}

	out = env.mustRun(t, "edit", "1", "--name", "Renamed")
	if !strings.Contains(out, "Renamed (111)") {
		t.Errorf("unexpected edit output: %s", out)
	}

	out = env.mustRun(t, "remove", "2")
	if !strings.Contains(out, "Removed Offline (333)") {
		t.Errorf("unexpected remove output: %s", out)
	}

	data, err := os.ReadFile(filepath.Join(env.dir, "tracked_works.txt"))
	if err != nil {
		t.Fatalf("read registry: %v", err)
	}
	want := "111;;Renamed;;" + env.outDir + "\n"
	if string(data) != want {
		t.Errorf("registry file = %q, want %q", data, want)
	}
}

func TestAddRejectsMissingWork(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "add", "999"); err == nil {
		t.Fatal("expected missing work to be rejected")
	}
}

func TestAddTitleNeedsExplicitName(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "add", "222"); err == nil {
		t.Fatal("expected unusable title to be rejected")
	}
	env.mustRun(t, "add", "222", "Good Name")
}

func TestEditRequiresAField(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "111")
	if _, err := env.run(t, "edit", "1"); err == nil {
		t.Fatal("expected error without any field")
	}
	if _, err := env.run(t, "edit", "5", "--name", "X"); err == nil {
		t.Fatal("expected out-of-range index error")
	}
}

func TestUpdateStatusHistory(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "111")

	out := env.mustRun(t, "update")
	if !strings.Contains(out, "1 updated, 0 failed, 0 skipped") {
		t.Errorf("unexpected update output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(env.outDir, "Foo - stats.html")); err != nil {
		t.Errorf("expected chart to be written: %v", err)
	}

	out = env.mustRun(t, "status")
	if !strings.Contains(out, "Updated today.") || !strings.Contains(out, "Runs: 1 (0 aborted)") {
		t.Errorf("unexpected status output:\n%s", out)
	}

	out = env.mustRun(t, "history", "1")
	if !strings.Contains(out, "1,234") || !strings.Contains(out, "yes") {
		t.Errorf("unexpected history output:\n%s", out)
	}
}

func TestUpdateFailsWhileLocked(t *testing.T) {
	env := newCLIEnv(t)
	lock, err := storage.AcquireLock(filepath.Join(env.dir, "data", "ficstats.lock"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lock.Release()

	_, err = env.run(t, "update")
	if err == nil || !strings.Contains(err.Error(), "another ficstats process is running") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		arg     string
		n       int
		want    int
		wantErr bool
	}{
		{"1", 3, 0, false},
		{"3", 3, 2, false},
		{"0", 3, 0, true},
		{"4", 3, 0, true},
		{"x", 3, 0, true},
		{"1", 0, 0, true},
	}
	for _, tt := range tests {
		got, err := parseIndex(tt.arg, tt.n)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseIndex(%q, %d) error = %v", tt.arg, tt.n, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseIndex(%q, %d) = %d, want %d", tt.arg, tt.n, got, tt.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "two"}}, []columnAlignment{alignRight})
	for _, want := range []string{"A", "B", "two"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("expected empty output without headers")
	}
}

func TestColorOutcomePlain(t *testing.T) {
	if got := colorOutcome("failed", false); got != "failed" {
		t.Errorf("expected plain text, got %q", got)
	}
	if shouldColorize(&bytes.Buffer{}) {
		t.Error("buffers are never terminals")
	}
}

const discoverFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Tag feed</title>
  <id>tag:example,2005:/tags/1/feed</id>
  <updated>2026-02-06T10:00:00Z</updated>
  <entry>
    <id>tag:example,2005:Work/111</id>
    <updated>2026-02-05T10:00:00Z</updated>
    <title>Foo</title>
    <content type="html">&lt;p&gt;Short summary.&lt;/p&gt;</content>
    <link rel="alternate" type="text/html" href="https://archiveofourown.org/works/111"/>
  </entry>
</feed>`

func TestDiscoverShowsSummary(t *testing.T) {
	env := newCLIEnv(t)
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(discoverFeed))
	}))
	t.Cleanup(feed.Close)

	out := env.mustRun(t, "discover", feed.URL)
	for _, want := range []string{"111", "Foo", "Short summary."} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in discover output:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged text, got %q", got)
	}
	got := truncate(strings.Repeat("x", 100), 20)
	if got != strings.Repeat("x", 17)+"..." {
		t.Errorf("unexpected truncation %q", got)
	}
}

func TestLoadWorksIsReadOnly(t *testing.T) {
	env := newCLIEnv(t)

	path, err := config.ResolveConfigPath(env.config)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg, err = config.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	works, err := loadWorks()
	if err != nil {
		t.Fatalf("loadWorks: %v", err)
	}
	if len(works) != 0 {
		t.Errorf("expected no works, got %d", len(works))
	}
	if _, err := os.Stat(filepath.Join(env.dir, "tracked_works.txt")); !os.IsNotExist(err) {
		t.Error("expected the registry file not to be created")
	}

	env.mustRun(t, "add", "111")
	if works, _ = loadWorks(); len(works) != 1 || works[0].DisplayName != "Foo" {
		t.Errorf("expected the added work, got %+v", works)
	}
}
