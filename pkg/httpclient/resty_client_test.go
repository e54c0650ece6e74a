package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientSendsQueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("limit = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "UA" {
			t.Errorf("User-Agent = %q", got)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewRestyClient(2 * time.Second)
	resp, err := client.Get(context.Background(), Request{
		URL:     srv.URL,
		Query:   map[string]string{"limit": "20"},
		Headers: map[string]string{"User-Agent": "UA"},
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !resp.IsSuccess() || resp.StatusCode() != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode())
	}
	if string(resp.Body()) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", resp.Body())
	}
}

func TestRestyClientReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := NewRestyClient(time.Second).Get(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.IsSuccess() {
		t.Fatalf("expected non-success for status %d", resp.StatusCode())
	}
}
