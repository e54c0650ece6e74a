package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage backs the seen-set used to suppress duplicate articles.

// Store tracks article IDs already dispatched to the sinks.
type Store interface {
	Close() error
	SeenArticle(id string) (bool, error)
	MarkArticle(id string) error
}

// Options controls retention characteristics for persistent implementations.
type Options struct {
	ArticleTTL      time.Duration
	CleanupInterval time.Duration
}

const (
	TypeMemory = "memory"
	TypeBBolt  = "bbolt"

	defaultArticleTTL      = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured seen-set backend. The memory store lives for
// one run; bbolt keeps IDs across runs until they expire.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeMemory:
		return NewMemoryStore(), nil
	case TypeBBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.ArticleTTL <= 0 {
		opts.ArticleTTL = defaultArticleTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}
