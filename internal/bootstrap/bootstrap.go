package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/stitchworks/atelier/internal/config"
	"github.com/stitchworks/atelier/internal/core/domain"
	"github.com/stitchworks/atelier/internal/core/ports"
	"github.com/stitchworks/atelier/internal/core/usecase"
	"github.com/stitchworks/atelier/internal/infrastructure/export/xlsx"
	"github.com/stitchworks/atelier/internal/infrastructure/intake/pdftext"
	"github.com/stitchworks/atelier/internal/infrastructure/llm/gemini"
	"github.com/stitchworks/atelier/internal/infrastructure/queue/nats"
	"github.com/stitchworks/atelier/internal/infrastructure/repository/postgres"
	"github.com/stitchworks/atelier/internal/infrastructure/resilience"
)

type App struct {
	Config   config.Config
	Registry *domain.Registry

	Queue     ports.MessageQueue
	SubmitUC  *usecase.SubmitExtractionUseCase
	ProcessUC ports.JobProcessor
	Jobs      ports.JobReader
	Sessions  *usecase.SessionManager
	Notes     ports.NotesExtractor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	registry := domain.NewRegistry()
	if err := config.LoadSchemaOverrides(cfg.SchemaOverridesPath, registry); err != nil {
		return nil, fmt.Errorf("load schema overrides: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	jobRepo := postgres.NewJobRepository(db)
	if err := jobRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure job schema: %w", err)
	}
	recordRepo := postgres.NewRecordRepository(db)
	if err := recordRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure record schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultPolicy()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	generator := gemini.New(cfg.GeminiURL, cfg.GeminiModel, cfg.GeminiAPIKey, gemini.Options{
		Timeout:           time.Duration(cfg.GenerationTimeoutSeconds) * time.Second,
		RequestsPerMinute: cfg.GenerationRPM,
	})

	policy := usecase.RetryPolicy{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		Multiplier:     cfg.RetryBackoffMultiplier,
	}

	processUC := usecase.NewProcessJobUseCase(jobRepo, generator, registry, policy)
	submitUC := usecase.NewSubmitExtractionUseCase(jobRepo, queue)
	sessions := usecase.NewSessionManager(registry, generator, recordRepo, xlsx.New(registry), policy)

	return &App{
		Config:   cfg,
		Registry: registry,

		Queue:     queue,
		SubmitUC:  submitUC,
		ProcessUC: processUC,
		Jobs:      processUC,
		Sessions:  sessions,
		Notes:     pdftext.New(),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
