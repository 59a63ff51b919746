package domain

import "time"

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobReady      JobStatus = "ready"
	JobFailed     JobStatus = "failed"
)

// RequestKind selects which extraction pipeline a job runs through.
type RequestKind string

const (
	KindItemExtraction RequestKind = "item_extraction"
	KindFabricResearch RequestKind = "fabric_research"
	KindCompatibility  RequestKind = "compatibility"
	KindSuggestion     RequestKind = "suggestion"
)

// ExtractionJob tracks one asynchronous generation request from intake
// to parsed result.
type ExtractionJob struct {
	ID        string      `json:"id"`
	Kind      RequestKind `json:"kind"`
	Input     string      `json:"input"`
	Status    JobStatus   `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedBy string      `json:"created_by,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ExtractionResult is the validated output of a finished job: the
// record(s) plus the review flags produced while validating them. An
// empty flag list means a clean extraction.
type ExtractionResult struct {
	Kind          RequestKind           `json:"kind"`
	Items         []ParsedItem          `json:"items,omitempty"`
	Research      *FabricResearchRecord `json:"research,omitempty"`
	Compatibility *CompatibilityResult  `json:"compatibility,omitempty"`
	Suggestion    *SuggestionResult     `json:"suggestion,omitempty"`
	ReviewFlags   []ReviewFlag          `json:"review_flags"`
}
