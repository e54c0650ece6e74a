package sinks

import (
	"time"

	"github.com/samvad-hq/news-archiver/internal/domain"
)

// Envelope is the payload shipped to non-SQL sinks.
type Envelope struct {
	TargetID     string       `json:"target_id"`
	Count        int          `json:"count"`
	Articles     domain.Batch `json:"articles"`
	DispatchedAt time.Time    `json:"dispatched_at"`
}

// NewEnvelope wraps batch for the given target.
func NewEnvelope(targetID string, batch domain.Batch) Envelope {
	return Envelope{
		TargetID:     targetID,
		Count:        len(batch),
		Articles:     batch,
		DispatchedAt: time.Now().UTC(),
	}
}
