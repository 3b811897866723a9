package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"subsidyscan/internal/config"
	"subsidyscan/internal/domain"
	"subsidyscan/internal/infrastructure/llm"
	"subsidyscan/internal/infrastructure/registry"
	"subsidyscan/internal/infrastructure/scheduler"
	"subsidyscan/internal/infrastructure/storage"
	"subsidyscan/internal/ports"
	"subsidyscan/internal/usecase"
)

// Application wires configuration to adapters and the ingestion use case.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	pool      *pgxpool.Pool
}

// New builds a runnable application. With no database DSN the in-memory
// store is used, which keeps local runs and smoke tests credential-free.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	var (
		subsidies ports.SubsidyStore
		runs      ports.RunStore
	)
	if cfg.Database.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := storage.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		pg := storage.NewPostgres(pool)
		subsidies, runs = pg, pg
		app.pool = pool
	} else {
		logger.Warn("no database configured, state will not survive the process")
		mem := storage.NewMemory()
		subsidies, runs = mem, mem
	}

	source := registry.NewClient(cfg.Registry.BaseURL, nil)
	extractor := llm.NewExtractor(
		cfg.Extraction.Endpoint,
		cfg.Extraction.Model,
		cfg.Extraction.APIKey,
		logger.With("component", "extractor"),
	)
	if cfg.Extraction.APIKey == "" {
		logger.Info("extraction service unconfigured, enrichment uses fallback defaults")
	}

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:    source,
		Extractor: extractor,
		Subsidies: subsidies,
		Runs:      runs,
		Filter: ports.ListFilter{
			Keyword:        cfg.Registry.Keyword,
			Sort:           cfg.Registry.Sort,
			AcceptanceOnly: cfg.Registry.AcceptanceOnly,
		},
		BatchSize:  cfg.Pipeline.BatchSize,
		TimeBudget: cfg.Pipeline.TimeBudget(),
		Logger:     logger.With("component", "pipeline"),
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	app.scheduler = usecase.NewScheduler(driver, app.pipeline, logger.With("component", "scheduler"))

	return app, nil
}

// RunOnce executes a single pipeline invocation and returns its summary.
func (a *Application) RunOnce(ctx context.Context) (*domain.IngestionRun, error) {
	return a.pipeline.RunOnce(ctx)
}

// Serve runs the cron loop until the context is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression)

	<-ctx.Done()

	stopCtx := context.Background()
	return a.scheduler.Stop(stopCtx)
}

// Close releases held resources.
func (a *Application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
