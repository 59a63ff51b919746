package ports

import (
	"context"
	"io"

	"github.com/stitchworks/atelier/internal/core/domain"
	"github.com/stitchworks/atelier/internal/core/prompt"
)

// TextGenerator sends one built request to the external text-generation
// service and returns its raw text. Implementations classify failures
// into the domain taxonomy (rate limited / timeout / failed) but do not
// retry; retrying is caller policy.
type TextGenerator interface {
	Generate(ctx context.Context, req prompt.Request) (string, error)
}

// JobRepository persists extraction jobs and their parsed results.
type JobRepository interface {
	CreateJob(ctx context.Context, job *domain.ExtractionJob) error
	GetJob(ctx context.Context, id string) (*domain.ExtractionJob, error)
	UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error
	SaveJobResult(ctx context.Context, id string, result domain.ExtractionResult) error
	GetJobResult(ctx context.Context, id string) (*domain.ExtractionResult, error)
}

// RecordStore is the persistence boundary for validated records. The
// storage engine behind it is not this service's concern; only the
// handed-off shape is.
type RecordStore interface {
	CreateOrderItem(ctx context.Context, record domain.OrderItemRecord) (string, error)
	GetOrderItem(ctx context.Context, id string) (domain.OrderItemRecord, error)
	DeleteOrderItem(ctx context.Context, id string) error

	CreateResearch(ctx context.Context, record domain.ResearchStorageRecord) (string, error)
	GetResearch(ctx context.Context, id string) (domain.ResearchStorageRecord, error)
	DeleteResearch(ctx context.Context, id string) error
}

// MessageQueue publishes/consumes extraction job events.
type MessageQueue interface {
	PublishJobQueued(ctx context.Context, jobID string) error
	SubscribeJobQueued(ctx context.Context, handler func(context.Context, string) error) error
}

// NotesExtractor pulls plain text out of an uploaded document so it can
// feed the item-extraction pipeline.
type NotesExtractor interface {
	ExtractText(ctx context.Context, r io.ReaderAt, size int64) (string, error)
}

// SheetExporter renders a session's items as a measurement-sheet
// workbook for manufacturing.
type SheetExporter interface {
	Export(items []domain.ParsedItem) ([]byte, error)
}
