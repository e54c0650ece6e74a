package harvest

import (
	"time"

	"github.com/samvad-hq/news-archiver/internal/storage"
)

// DefaultFallbackStep is how far the cursor moves back after a page that
// held nothing new.
const DefaultFallbackStep int64 = 1_000_000

// State is threaded through every iteration of the loop.
type State struct {
	// Cursor is the latestNewsTime sent with the next request, epoch ms.
	Cursor int64
	// Seen holds IDs met in this run. Only it decides duplicates and the cursor.
	Seen storage.Store
	// Archive, when set, holds IDs delivered by earlier runs. Those are not
	// dispatched again but still move the cursor.
	Archive storage.Store
}

// NewState starts the cursor at now with an empty run-scoped seen-set.
func NewState(now time.Time, archive storage.Store) State {
	return State{Cursor: now.UnixMilli(), Seen: storage.NewMemoryStore(), Archive: archive}
}

// NextCursor returns the cursor for the following request. It never exceeds
// prev: the smallest new timestamp wins, and a page with no new timestamps
// steps back by fallback.
func NextCursor(prev int64, timestamps []int64, fallback int64) int64 {
	if len(timestamps) == 0 {
		return prev - fallback
	}
	next := timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts < next {
			next = ts
		}
	}
	if next > prev {
		return prev
	}
	return next
}
