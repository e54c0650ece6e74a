package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/news-archiver/internal/domain"
	"github.com/samvad-hq/news-archiver/internal/logger"
	"github.com/samvad-hq/news-archiver/pkg/newsapi"
	"github.com/samvad-hq/news-archiver/pkg/sinks"
)

// Status tells why a run stopped.
type Status string

const (
	// StatusCompleted means the listing returned an empty page.
	StatusCompleted Status = "completed"
	// StatusFetchFailed means a request or its response could not be processed.
	StatusFetchFailed Status = "fetch_failed"
	// StatusCancelled means the context was cancelled between pages.
	StatusCancelled Status = "cancelled"
)

// PageResult describes one loop iteration.
type PageResult struct {
	CursorBefore int64
	CursorAfter  int64
	Fetched      int
	New          int
	Duplicates   int
	Archived     int
	Empty        bool
	Dispatch     []sinks.Result
}

// Outcome summarizes a whole run.
type Outcome struct {
	Status       Status
	Requests     int
	Pages        int
	Articles     int
	Duplicates   int
	Archived     int
	SinkFailures int
	Cursor       int64
	Err          error
}

// PartialFailure reports whether any sink write was lost during the run.
func (o Outcome) PartialFailure() bool { return o.SinkFailures > 0 }

// Options tunes the loop.
type Options struct {
	Limit        int
	FallbackStep int64
}

// Service walks the listing backwards from the state's cursor.
type Service struct {
	fetcher    PageFetcher
	dispatcher Dispatcher
	conv       Converter
	opts       Options
	log        logger.Logger
}

// NewService wires the loop with its collaborators.
func NewService(fetcher PageFetcher, dispatcher Dispatcher, conv Converter, opts Options, log logger.Logger) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.FallbackStep <= 0 {
		opts.FallbackStep = DefaultFallbackStep
	}
	return &Service{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		conv:       conv,
		opts:       opts,
		log:        log,
	}
}

// Run fetches pages until the listing is exhausted, a fetch fails or ctx is
// cancelled. Sink failures never stop the run.
func (s *Service) Run(ctx context.Context, st State) Outcome {
	out := Outcome{Cursor: st.Cursor}
	if s == nil || s.fetcher == nil {
		out.Status = StatusFetchFailed
		out.Err = errors.New("harvest service is not initialized")
		return out
	}

	for {
		if err := ctx.Err(); err != nil {
			out.Status = StatusCancelled
			out.Err = err
			s.log.WarnObj("harvest cancelled", "harvest_outcome", out.logFields())
			return out
		}

		var (
			page PageResult
			err  error
		)
		st, page, err = s.Step(ctx, st)
		out.Requests++
		out.Cursor = st.Cursor
		if err != nil && ctx.Err() != nil {
			out.Status = StatusCancelled
			out.Err = err
			s.log.WarnObj("harvest cancelled", "harvest_outcome", out.logFields())
			return out
		}
		if err != nil {
			out.Status = StatusFetchFailed
			out.Err = err
			s.log.ErrorObj("harvest stopped on error", "harvest_outcome", out.logFields())
			return out
		}
		if page.Empty {
			out.Status = StatusCompleted
			s.log.InfoObj("no more data available", "harvest_outcome", out.logFields())
			return out
		}

		out.Pages++
		out.Articles += page.New
		out.Duplicates += page.Duplicates
		out.Archived += page.Archived
		for _, r := range page.Dispatch {
			if !r.OK() {
				out.SinkFailures++
			}
		}
	}
}

// Step performs one iteration: fetch, dedup, dispatch, advance. The returned
// state carries the next cursor; on error it is the input state unchanged.
func (s *Service) Step(ctx context.Context, st State) (State, PageResult, error) {
	res := PageResult{CursorBefore: st.Cursor, CursorAfter: st.Cursor}

	s.log.InfoObj("requesting news page", "request_params", newsapi.QueryParams(st.Cursor, s.opts.Limit))
	resp, err := s.fetcher.FetchPage(ctx, st.Cursor, s.opts.Limit)
	if err != nil {
		return st, res, fmt.Errorf("fetch page at cursor %d: %w", st.Cursor, err)
	}
	s.log.DebugObj("news page received", "response_data", string(resp.Raw))

	if resp.Page.Empty() {
		res.Empty = true
		return st, res, nil
	}
	res.Fetched = len(resp.Page.Data)

	batch, timestamps, archived, err := s.collect(st, resp.Page.Data)
	if err != nil {
		return st, res, fmt.Errorf("process page at cursor %d: %w", st.Cursor, err)
	}
	res.New = len(batch)
	res.Archived = archived
	res.Duplicates = res.Fetched - res.New - res.Archived

	if len(batch) > 0 && s.dispatcher != nil {
		res.Dispatch = s.dispatcher.Dispatch(ctx, batch)
		if err := s.archive(st, batch, res.Dispatch); err != nil {
			return st, res, fmt.Errorf("archive page at cursor %d: %w", st.Cursor, err)
		}
	}

	next := st
	next.Cursor = NextCursor(st.Cursor, timestamps, s.opts.FallbackStep)
	res.CursorAfter = next.Cursor

	s.log.InfoObj("news page processed", "page_result", map[string]any{
		"cursor_before": res.CursorBefore,
		"cursor_after":  res.CursorAfter,
		"fetched":       res.Fetched,
		"new":           res.New,
		"duplicates":    res.Duplicates,
		"archived":      res.Archived,
	})
	return next, res, nil
}

// collect converts items and drops IDs already met in this run. Every
// first-seen item contributes its timestamp to the next cursor; items the
// archive already holds are counted but left out of the batch.
func (s *Service) collect(st State, items []newsapi.Item) (domain.Batch, []int64, int, error) {
	batch := make(domain.Batch, 0, len(items))
	timestamps := make([]int64, 0, len(items))
	archived := 0

	for _, it := range items {
		article := s.conv.Article(it)

		seen, err := st.Seen.SeenArticle(article.ID)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("lookup article %s: %w", article.ID, err)
		}
		if seen {
			continue
		}
		if err := st.Seen.MarkArticle(article.ID); err != nil {
			return nil, nil, 0, fmt.Errorf("mark article %s: %w", article.ID, err)
		}
		timestamps = append(timestamps, it.PublishDateTimestamp)

		if st.Archive != nil {
			done, err := st.Archive.SeenArticle(article.ID)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("lookup archived article %s: %w", article.ID, err)
			}
			if done {
				archived++
				continue
			}
		}
		batch = append(batch, article)
	}
	return batch, timestamps, archived, nil
}

// archive records a batch as delivered once at least one sink accepted it.
func (s *Service) archive(st State, batch domain.Batch, results []sinks.Result) error {
	if st.Archive == nil {
		return nil
	}
	if !anyDelivered(results) {
		s.log.WarnObj("batch not archived, no sink accepted it", "batch_ids", batch.IDs())
		return nil
	}
	for _, id := range batch.IDs() {
		if err := st.Archive.MarkArticle(id); err != nil {
			return fmt.Errorf("mark article %s: %w", id, err)
		}
	}
	return nil
}

func anyDelivered(results []sinks.Result) bool {
	for _, r := range results {
		if r.OK() {
			return true
		}
	}
	return false
}

func (o Outcome) logFields() map[string]any {
	fields := map[string]any{
		"status":        string(o.Status),
		"requests":      o.Requests,
		"pages":         o.Pages,
		"articles":      o.Articles,
		"duplicates":    o.Duplicates,
		"archived":      o.Archived,
		"sink_failures": o.SinkFailures,
		"cursor":        o.Cursor,
	}
	if o.Err != nil {
		fields["error"] = o.Err.Error()
	}
	return fields
}
