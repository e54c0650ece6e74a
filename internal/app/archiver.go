package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/news-archiver/internal/config"
	"github.com/samvad-hq/news-archiver/internal/harvest"
	"github.com/samvad-hq/news-archiver/internal/logger"
	"github.com/samvad-hq/news-archiver/internal/storage"
	"github.com/samvad-hq/news-archiver/pkg/newsapi"
	"github.com/samvad-hq/news-archiver/pkg/sinks"
)

// Archiver wires the news client, the harvest loop, the seen-set and the
// sinks for a single run.
type Archiver struct {
	cfg     *config.Config
	service *harvest.Service
	fanout  *sinks.Fanout
	store   storage.Store
	log     logger.Logger
	now     func() time.Time
}

// NewArchiver builds an archiver runtime from config.
func NewArchiver(ctx context.Context, cfg *config.Config, log logger.Logger) (*Archiver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sinkReg, err := loadSinkRegistry(cfg)
	if err != nil {
		return nil, err
	}
	enabled := sinkReg.Enabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no sinks configured")
	}

	built, err := sinks.BuildAll(ctx, sinks.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}
	fanout := sinks.NewFanout(built, log)
	sinkSummaries := make([]map[string]string, 0, len(built))
	for _, s := range built {
		sinkSummaries = append(sinkSummaries, map[string]string{
			"id":     s.ID(),
			"type":   s.Type(),
			"target": s.Target(),
		})
	}
	log.InfoObj("sinks loaded", "sinks_meta", map[string]any{
		"count": len(sinkSummaries),
		"sinks": sinkSummaries,
	})

	client, err := newsapi.NewClient(newsapi.Options{
		Endpoint:  cfg.NewsEndpoint,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.HTTPTimeout,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("init news client: %w", err)
	}

	conv, err := harvest.NewConverter(cfg.TimeZone, cfg.DefaultTitle)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		ArticleTTL:      cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("seen-set initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.BBoltPath,
	})

	service := harvest.NewService(client, fanout, conv, harvest.Options{
		Limit:        cfg.PageLimit,
		FallbackStep: cfg.CursorFallbackMs,
	}, log)

	return &Archiver{
		cfg:     cfg,
		service: service,
		fanout:  fanout,
		store:   store,
		log:     log,
		now:     time.Now,
	}, nil
}

// Run performs one harvest from the current time backwards and releases the
// seen-set afterwards. Fetch failures end the run but are not returned as
// errors; they are reported through the outcome.
func (a *Archiver) Run(ctx context.Context) (harvest.Outcome, error) {
	if a == nil || a.service == nil {
		return harvest.Outcome{}, fmt.Errorf("archiver is not initialized")
	}
	defer a.closeStore()

	start := a.now()
	a.log.InfoObj("harvest starting", "harvest_state", map[string]any{
		"endpoint":     a.cfg.NewsEndpoint,
		"sinks_count":  a.fanout.Size(),
		"page_limit":   a.cfg.PageLimit,
		"start_cursor": start.UnixMilli(),
	})

	out := a.service.Run(ctx, harvest.NewState(start, a.store))

	a.log.InfoObj("harvest finished", "harvest_summary", map[string]any{
		"status":          string(out.Status),
		"requests":        out.Requests,
		"articles":        out.Articles,
		"archived":        out.Archived,
		"sink_failures":   out.SinkFailures,
		"partial_failure": out.PartialFailure(),
		"elapsed_ms":      time.Since(start).Milliseconds(),
	})
	return out, nil
}

func (a *Archiver) closeStore() {
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.ErrorObj("storage close failed", "error", err)
	}
}

// loadSinkRegistry reads the sinks file when one is configured, otherwise
// builds one SQL target per DB<n>_* group.
func loadSinkRegistry(cfg *config.Config) (*sinks.ConfigRegistry, error) {
	if cfg.SinksFile != "" {
		reg, err := sinks.LoadRegistry(cfg.SinksFile)
		if err != nil {
			return nil, fmt.Errorf("load sinks registry: %w", err)
		}
		return reg, nil
	}

	targets := make([]sinks.TargetConfig, 0, len(cfg.Databases))
	for _, db := range cfg.Databases {
		targets = append(targets, sinks.TargetConfig{
			ID:   db.ID,
			Type: sinks.TypeSQL,
			SQL: &sinks.SQLTargetConfig{
				Driver:   db.Driver,
				Host:     db.Host,
				Port:     db.Port,
				User:     db.User,
				Password: db.Password,
				Database: db.Name,
			},
		})
	}
	reg, err := sinks.NewConfigRegistry(targets)
	if err != nil {
		return nil, fmt.Errorf("database targets: %w", err)
	}
	return reg, nil
}
