package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/news-archiver/internal/config"
	"github.com/samvad-hq/news-archiver/internal/harvest"
	"github.com/samvad-hq/news-archiver/pkg/sinks"
)

// newsServer serves two overlapping pages and then an empty one.
func newsServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu      sync.Mutex
		cursors []string
	)
	pages := []string{
		`{"data":[{"id":"a","publishDateTimestamp":1700000003000,"title":"First"},{"id":"b","publishDateTimestamp":1700000002000}]}`,
		`{"data":[{"id":"b","publishDateTimestamp":1700000002000},{"id":"c","publishDateTimestamp":1700000001000,"title":"Third"}]}`,
		`{"data":[]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cursors = append(cursors, r.URL.Query().Get("latestNewsTime"))
		n := len(cursors)
		mu.Unlock()
		if n > len(pages) {
			n = len(pages)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, pages[n-1])
	}))
	t.Cleanup(srv.Close)
	return srv, &cursors
}

func writeSinksFile(t *testing.T, hookURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sinks.yaml")
	raw := fmt.Sprintf(`
sinks:
  - id: db1
    type: sql
    sql:
      driver: mysql
      database: news
  - id: hook
    type: http
    http:
      url: %s
`, hookURL)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write sinks file: %v", err)
	}
	return path
}

func testConfig(endpoint, sinksFile string) *config.Config {
	return &config.Config{
		AppName:          "news-archiver-test",
		NewsEndpoint:     endpoint,
		PageLimit:        20,
		CursorFallbackMs: 1000000,
		TimeZone:         "Europe/Moscow",
		DefaultTitle:     "No title",
		HTTPTimeout:      2 * time.Second,
		SinksFile:        sinksFile,
		StorageType:      "memory",
	}
}

func TestArchiverRunEndToEnd(t *testing.T) {
	news, cursors := newsServer(t)

	var (
		mu       sync.Mutex
		received []sinks.Envelope
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env sinks.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		mu.Lock()
		received = append(received, env)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	archiver, err := NewArchiver(context.Background(), testConfig(news.URL, writeSinksFile(t, hook.URL)), nil)
	if err != nil {
		t.Fatalf("NewArchiver: %v", err)
	}
	archiver.now = func() time.Time { return time.UnixMilli(1700000009000) }

	out, err := archiver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != harvest.StatusCompleted {
		t.Fatalf("status = %s (%v)", out.Status, out.Err)
	}
	if out.Requests != 3 || out.Articles != 3 {
		t.Fatalf("unexpected outcome %#v", out)
	}
	// The SQL target has no host/credentials, so each of its saves fails
	// while the webhook keeps receiving batches.
	if out.SinkFailures != 2 {
		t.Fatalf("expected 2 sql failures, got %d", out.SinkFailures)
	}

	if len(received) != 2 {
		t.Fatalf("hook received %d batches, want 2", len(received))
	}
	if received[0].Count != 2 || received[1].Count != 1 || received[1].Articles[0].ID != "c" {
		t.Fatalf("unexpected batches %#v", received)
	}
	if received[0].Articles[1].Title != "No title" {
		t.Fatalf("default title not applied: %#v", received[0].Articles[1])
	}

	want := []string{"1700000009000", "1700000002000", "1700000001000"}
	for i, c := range want {
		if (*cursors)[i] != c {
			t.Fatalf("request %d cursor = %s, want %s", i, (*cursors)[i], c)
		}
	}
}

func TestArchiverRunReportsFetchFailure(t *testing.T) {
	news := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer news.Close()

	archiver, err := NewArchiver(context.Background(), testConfig(news.URL, writeSinksFile(t, "https://example.com/hook")), nil)
	if err != nil {
		t.Fatalf("NewArchiver: %v", err)
	}
	out, err := archiver.Run(context.Background())
	if err != nil {
		t.Fatalf("fetch failures must not surface as run errors: %v", err)
	}
	if out.Status != harvest.StatusFetchFailed || out.Requests != 1 {
		t.Fatalf("unexpected outcome %#v", out)
	}
}

func TestLoadSinkRegistryFromDatabases(t *testing.T) {
	cfg := testConfig("https://example.com", "")
	cfg.Databases = []config.Database{
		{ID: "db1", Driver: "mysql", Host: "h1", User: "u", Password: "p", Name: "n1"},
		{ID: "db2", Driver: "postgres", Name: "n2"},
	}
	reg, err := loadSinkRegistry(cfg)
	if err != nil {
		t.Fatalf("loadSinkRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "db1" || enabled[1].SQL.Driver != "postgres" {
		t.Fatalf("unexpected targets %#v", enabled)
	}
}

func TestNewArchiverRequiresSinks(t *testing.T) {
	if _, err := NewArchiver(context.Background(), testConfig("https://example.com", ""), nil); err == nil {
		t.Fatalf("expected error without any sinks")
	}
}
