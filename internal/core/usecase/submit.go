package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stitchworks/atelier/internal/core/domain"
	"github.com/stitchworks/atelier/internal/core/ports"
	"github.com/stitchworks/atelier/internal/core/prompt"
)

// SubmitExtractionUseCase queues a generation job: validate the params
// by building the prompt once, persist the job, publish it for a worker.
type SubmitExtractionUseCase struct {
	repo  ports.JobRepository
	queue ports.MessageQueue
}

func NewSubmitExtractionUseCase(repo ports.JobRepository, queue ports.MessageQueue) *SubmitExtractionUseCase {
	return &SubmitExtractionUseCase{repo: repo, queue: queue}
}

func (uc *SubmitExtractionUseCase) Submit(
	ctx context.Context,
	kind domain.RequestKind,
	params []byte,
	actorID string,
) (*domain.ExtractionJob, error) {
	// Building the prompt up front surfaces ErrInvalidRequest before
	// anything is queued.
	if _, err := prompt.Build(kind, params); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.ExtractionJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		Input:     string(params),
		Status:    domain.JobQueued,
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create extraction job: %w", err)
	}
	if err := uc.queue.PublishJobQueued(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish job event: %w", err)
	}
	return job, nil
}
