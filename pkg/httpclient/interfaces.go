package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	IsSuccess() bool
}

// Request describes a single GET call.
type Request struct {
	URL     string
	Query   map[string]string
	Headers map[string]string
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, req Request) (Response, error)
}
