package sinks

import (
	"context"
	"fmt"
	"strings"
)

// Builder creates a Sink from a config entry.
type Builder func(ctx context.Context, cfg TargetConfig, log Logger) (Sink, error)

// Registry maps sink types to builders.
type Registry interface {
	Register(typ string, builder Builder)
	SinkFor(ctx context.Context, cfg TargetConfig, log Logger) (Sink, error)
}

type registry struct {
	builders map[string]Builder
}

// NewRegistry returns a registry with optional pre-registered builders.
func NewRegistry(builders map[string]Builder) Registry {
	r := &registry{builders: make(map[string]Builder)}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// Register associates a builder with a sink type.
func (r *registry) Register(typ string, builder Builder) {
	if typ = strings.TrimSpace(strings.ToLower(typ)); typ == "" || builder == nil {
		return
	}
	r.builders[typ] = builder
}

// SinkFor returns the sink built for the provided config.
func (r *registry) SinkFor(ctx context.Context, cfg TargetConfig, log Logger) (Sink, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("sink %q has no type configured", cfg.ID)
	}
	builder := r.builders[strings.ToLower(cfg.Type)]
	if builder == nil {
		return nil, fmt.Errorf("no sink registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, log)
}

// DefaultRegistry wires up known sink types.
func DefaultRegistry() Registry {
	return NewRegistry(map[string]Builder{
		TypeSQL:  newSQLSink,
		TypeHTTP: newHTTPSink,
		TypeSQS:  newSQSSink,
	})
}

// BuildAll instantiates sinks for cfgs in order.
func BuildAll(ctx context.Context, reg Registry, cfgs []TargetConfig, log Logger) ([]Sink, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}

	out := make([]Sink, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := reg.SinkFor(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("build sink %q: %w", cfg.ID, err)
		}
		out = append(out, s)
	}
	return out, nil
}
