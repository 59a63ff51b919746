package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stitchworks/atelier/internal/core/domain"
	"github.com/stitchworks/atelier/internal/core/parse"
	"github.com/stitchworks/atelier/internal/core/ports"
	"github.com/stitchworks/atelier/internal/core/prompt"
)

// RetryPolicy bounds the caller-side retry loop around generation calls.
// Only rate-limit and timeout failures are re-issued; a malformed
// response from identical input would just recur.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// ProcessJobUseCase runs one queued extraction job through the pipeline:
// build prompt, call the generator, parse and validate, store the result.
type ProcessJobUseCase struct {
	repo      ports.JobRepository
	generator ports.TextGenerator
	registry  *domain.Registry
	policy    RetryPolicy
}

func NewProcessJobUseCase(
	repo ports.JobRepository,
	generator ports.TextGenerator,
	registry *domain.Registry,
	policy RetryPolicy,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		repo:      repo,
		generator: generator,
		registry:  registry,
		policy:    policy.normalize(),
	}
}

func (uc *ProcessJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.repo.UpdateJobStatus(ctx, jobID, domain.JobProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.runPipeline(ctx, jobID)
	if err != nil {
		if failErr := uc.repo.UpdateJobStatus(ctx, jobID, domain.JobFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveJobResult(ctx, jobID, result); err != nil {
		if failErr := uc.repo.UpdateJobStatus(ctx, jobID, domain.JobFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save job result: %w", err)
	}

	if err := uc.repo.UpdateJobStatus(ctx, jobID, domain.JobReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessJobUseCase) runPipeline(ctx context.Context, jobID string) (domain.ExtractionResult, error) {
	job, err := uc.repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("fetch job by id: %w", err)
	}

	req, err := prompt.Build(job.Kind, []byte(job.Input))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("build prompt: %w", err)
	}

	raw, err := uc.generateWithRetry(ctx, job, req)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	result, err := parse.Result(job.Kind, uc.registry, raw)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("parse response: %w", err)
	}
	return result, nil
}

func (uc *ProcessJobUseCase) generateWithRetry(ctx context.Context, job *domain.ExtractionJob, req prompt.Request) (string, error) {
	return generateWithRetry(ctx, uc.generator, req, uc.policy, "job_id", job.ID, "kind", string(job.Kind))
}

func generateWithRetry(
	ctx context.Context,
	generator ports.TextGenerator,
	req prompt.Request,
	policy RetryPolicy,
	logAttrs ...any,
) (string, error) {
	backoff := policy.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		raw, err := generator.Generate(ctx, req)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !domain.RetryableGeneration(err) || attempt == policy.MaxAttempts {
			return "", err
		}

		attrs := append([]any{
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"backoff_ms", float64(backoff.Microseconds()) / 1000.0,
			"error", err,
		}, logAttrs...)
		slog.Warn("generation_retry", attrs...)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", lastErr
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * policy.Multiplier)
	}

	return "", lastErr
}

// GetJob exposes job state for the read model.
func (uc *ProcessJobUseCase) GetJob(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	return uc.repo.GetJob(ctx, id)
}

// GetJobResult exposes the validated result for the read model.
func (uc *ProcessJobUseCase) GetJobResult(ctx context.Context, id string) (*domain.ExtractionResult, error) {
	return uc.repo.GetJobResult(ctx, id)
}
