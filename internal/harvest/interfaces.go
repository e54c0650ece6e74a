package harvest

import (
	"context"

	"github.com/samvad-hq/news-archiver/internal/domain"
	"github.com/samvad-hq/news-archiver/pkg/newsapi"
	"github.com/samvad-hq/news-archiver/pkg/sinks"
)

// PageFetcher retrieves one page of the news listing older than cursor.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor int64, limit int) (newsapi.Response, error)
}

// Dispatcher saves a batch into every configured sink and reports per-sink results.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch domain.Batch) []sinks.Result
}
