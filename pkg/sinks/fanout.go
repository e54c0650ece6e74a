package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/news-archiver/internal/domain"
)

// Result is the outcome of saving one batch into one sink.
type Result struct {
	SinkID string
	Type   string
	Target string
	Rows   int
	Err    error
}

// OK reports whether the save succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Fanout saves batches into every configured sink, one after another.
type Fanout struct {
	sinks []Sink
	log   Logger
}

// NewFanout builds a dispatcher over sinks, skipping nil entries.
func NewFanout(sinks []Sink, log Logger) *Fanout {
	cp := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		cp = append(cp, s)
	}
	return &Fanout{sinks: cp, log: ensureLogger(log)}
}

// Dispatch saves batch into each sink in order. A failing sink is logged and
// does not stop the others; nothing is retried.
func (f *Fanout) Dispatch(ctx context.Context, batch domain.Batch) []Result {
	if f == nil || len(f.sinks) == 0 || len(batch) == 0 {
		return nil
	}

	results := make([]Result, 0, len(f.sinks))
	for _, s := range f.sinks {
		res := Result{SinkID: s.ID(), Type: s.Type(), Target: s.Target(), Rows: len(batch)}
		meta := map[string]any{
			"sink_id":  res.SinkID,
			"type":     res.Type,
			"database": res.Target,
			"rows":     res.Rows,
		}

		f.log.InfoObj("saving batch", "sink_save", meta)
		if err := s.Save(ctx, batch); err != nil {
			res.Err = fmt.Errorf("%s sink[%s]: %w", res.Type, res.SinkID, err)
			meta["error"] = err.Error()
			f.log.ErrorObj("batch save failed", "sink_save", meta)
		} else {
			f.log.InfoObj("batch saved", "sink_save", meta)
		}
		results = append(results, res)
	}
	return results
}

// Size returns the number of active sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// FailedResults joins the errors of failed results, nil when all succeeded.
func FailedResults(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
