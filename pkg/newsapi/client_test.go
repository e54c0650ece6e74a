package newsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/samvad-hq/news-archiver/pkg/httpclient"
)

const samplePage = `{
  "data": [
    {"id": "6512a3", "publishDateTimestamp": 1700000000000, "title": "Rates hold"},
    {"id": 42, "publishDateTimestamp": 1699999990000}
  ]
}`

type mockResponse struct {
	body       []byte
	statusCode int
}

func (r mockResponse) Body() []byte    { return r.body }
func (r mockResponse) StatusCode() int { return r.statusCode }
func (r mockResponse) IsSuccess() bool { return r.statusCode >= 200 && r.statusCode < 300 }

type mockHTTPClient struct {
	t      *testing.T
	want   map[string]string
	status int
	body   string
	err    error
}

func (m mockHTTPClient) Get(_ context.Context, req httpclient.Request) (httpclient.Response, error) {
	for key, want := range m.want {
		if got := req.Query[key]; got != want {
			m.t.Fatalf("expected query %s=%q, got %q", key, want, got)
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	status := m.status
	if status == 0 {
		status = 200
	}
	return mockResponse{body: []byte(m.body), statusCode: status}, nil
}

func TestFetchPageDecodesItems(t *testing.T) {
	client, err := NewClient(Options{Endpoint: "https://example.com/news"}, mockHTTPClient{
		t:    t,
		want: map[string]string{ParamLatestNewsTime: "1700000001000", ParamLimit: "20"},
		body: samplePage,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resp, err := client.FetchPage(context.Background(), 1700000001000, 20)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	items := resp.Page.Data
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "6512a3" || items[0].TitleOr("x") != "Rates hold" {
		t.Fatalf("unexpected first item %#v", items[0])
	}
	if items[1].ID != "42" {
		t.Fatalf("numeric id decoded as %q", items[1].ID)
	}
	if got := items[1].TitleOr("No title"); got != "No title" {
		t.Fatalf("expected fallback title, got %q", got)
	}
	if len(resp.Raw) == 0 {
		t.Fatalf("expected raw payload to be kept")
	}
}

func TestFetchPageEmptyData(t *testing.T) {
	for _, body := range []string{`{"data": []}`, `{}`, `{"data": null}`} {
		client, _ := NewClient(Options{Endpoint: "https://example.com"}, mockHTTPClient{t: t, body: body})
		resp, err := client.FetchPage(context.Background(), 1, 20)
		if err != nil {
			t.Fatalf("FetchPage(%s): %v", body, err)
		}
		if !resp.Page.Empty() {
			t.Fatalf("expected empty page for %s", body)
		}
	}
}

func TestFetchPageRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{"data": [{"publishDateTimestamp": 1}]}`,
		`{"data": [{"id": "a"}]}`,
		`{"data": [{"id": true, "publishDateTimestamp": 1}]}`,
		`not json`,
	}
	for _, body := range cases {
		client, _ := NewClient(Options{Endpoint: "https://example.com"}, mockHTTPClient{t: t, body: body})
		if _, err := client.FetchPage(context.Background(), 1, 20); err == nil {
			t.Fatalf("expected decode error for %s", body)
		}
	}
}

func TestFetchPageStatusError(t *testing.T) {
	client, _ := NewClient(Options{Endpoint: "https://example.com"}, mockHTTPClient{t: t, status: 502, body: "bad gateway"})
	_, err := client.FetchPage(context.Background(), 1, 20)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != 502 || statusErr.Body != "bad gateway" {
		t.Fatalf("unexpected status error %#v", statusErr)
	}
}

func TestFetchPageTransportError(t *testing.T) {
	client, _ := NewClient(Options{Endpoint: "https://example.com"}, mockHTTPClient{t: t, err: errors.New("dial tcp: refused")})
	if _, err := client.FetchPage(context.Background(), 1, 20); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Options{Endpoint: "  "}, nil); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}

func TestFetchPageAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(ParamLatestNewsTime) != "99" || r.URL.Query().Get(ParamLimit) != "20" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != "archiver-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	client, err := NewClient(Options{Endpoint: srv.URL, UserAgent: "archiver-test", Timeout: 2 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.FetchPage(context.Background(), 99, 20)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(resp.Page.Data) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Page.Data))
	}
}

func TestResponseSnippetKeepsCyrillicIntact(t *testing.T) {
	body := []byte("a" + strings.Repeat("ж", 300))

	got := responseSnippet(body)

	if !utf8.ValidString(got) {
		t.Fatalf("snippet is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") || len(got) > 512+len("...") {
		t.Fatalf("unexpected snippet length %d", len(got))
	}
}
