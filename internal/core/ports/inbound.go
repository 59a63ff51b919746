package ports

import (
	"context"

	"github.com/stitchworks/atelier/internal/core/domain"
)

// ExtractionSubmitter is the inbound contract for queuing extraction jobs.
type ExtractionSubmitter interface {
	Submit(ctx context.Context, kind domain.RequestKind, params []byte, actorID string) (*domain.ExtractionJob, error)
}

// JobProcessor is the inbound contract for asynchronous job processing.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// JobReader is the inbound read model for job state and results.
type JobReader interface {
	GetJob(ctx context.Context, id string) (*domain.ExtractionJob, error)
	GetJobResult(ctx context.Context, id string) (*domain.ExtractionResult, error)
}
