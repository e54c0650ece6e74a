package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samvad-hq/news-archiver/pkg/httpclient"
)

// Query parameter names understood by the listing endpoint.
const (
	ParamLatestNewsTime = "latestNewsTime"
	ParamLimit          = "limit"
)

// Options configures a Client.
type Options struct {
	Endpoint  string
	UserAgent string
	Accept    string
	Timeout   time.Duration
}

// Client pages through the news listing endpoint.
type Client struct {
	endpoint string
	headers  map[string]string
	http     httpclient.Client
}

// Response pairs a decoded page with the raw payload it came from.
type Response struct {
	Page Page
	Raw  []byte
}

// NewClient builds a Client. A nil http client falls back to resty.
func NewClient(opts Options, http httpclient.Client) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("news endpoint is empty")
	}
	if http == nil {
		http = httpclient.NewRestyClient(opts.Timeout)
	}
	return &Client{
		endpoint: endpoint,
		headers:  headers(opts),
		http:     http,
	}, nil
}

// Endpoint returns the listing URL the client calls.
func (c *Client) Endpoint() string { return c.endpoint }

// FetchPage requests items published before cursor (epoch ms).
func (c *Client) FetchPage(ctx context.Context, cursor int64, limit int) (Response, error) {
	resp, err := c.http.Get(ctx, httpclient.Request{
		URL:     c.endpoint,
		Query:   QueryParams(cursor, limit),
		Headers: c.headers,
	})
	if err != nil {
		return Response{}, fmt.Errorf("fetch news page: %w", err)
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		return Response{Raw: body}, &StatusError{Code: resp.StatusCode(), Body: responseSnippet(body)}
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return Response{Raw: body}, fmt.Errorf("decode news page: %w", err)
	}
	return Response{Page: page, Raw: body}, nil
}

// QueryParams renders the listing query for a cursor and page size.
func QueryParams(cursor int64, limit int) map[string]string {
	return map[string]string{
		ParamLatestNewsTime: strconv.FormatInt(cursor, 10),
		ParamLimit:          strconv.Itoa(limit),
	}
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("news endpoint returned status %d body: %s", e.Code, e.Body)
}

func headers(opts Options) map[string]string {
	h := make(map[string]string, 2)
	if v := strings.TrimSpace(opts.UserAgent); v != "" {
		h["User-Agent"] = v
	}
	accept := strings.TrimSpace(opts.Accept)
	if accept == "" {
		accept = "application/json"
	}
	h["Accept"] = accept
	return h
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
