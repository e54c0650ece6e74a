package sinks

import (
	"context"

	"github.com/samvad-hq/news-archiver/internal/domain"
)

// Sink persists a batch of articles into one target.
type Sink interface {
	ID() string
	Type() string
	// Target names the destination for logs: a database name, URL or queue.
	Target() string
	Save(ctx context.Context, batch domain.Batch) error
}
