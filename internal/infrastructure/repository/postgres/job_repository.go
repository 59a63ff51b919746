package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/stitchworks/atelier/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	input JSONB NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_results (
	job_id TEXT PRIMARY KEY REFERENCES extraction_jobs(id) ON DELETE CASCADE,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extraction_jobs_status ON extraction_jobs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_created_at ON extraction_jobs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) CreateJob(ctx context.Context, job *domain.ExtractionJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extraction_jobs (id, kind, input, status, error_message, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		job.ID, string(job.Kind), job.Input, string(job.Status), job.Error, job.CreatedBy, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, kind, input, status, error_message, created_by, created_at, updated_at
FROM extraction_jobs
WHERE id = $1
`, id)

	var job domain.ExtractionJob
	var kind, status string
	var errMessage, createdBy sql.NullString

	err := row.Scan(&job.ID, &kind, &job.Input, &status, &errMessage, &createdBy, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan extraction job: %w", err)
	}

	job.Kind = domain.RequestKind(kind)
	job.Status = domain.JobStatus(status)
	job.Error = errMessage.String
	job.CreatedBy = createdBy.String
	return &job, nil
}

func (r *JobRepository) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "update job status", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *JobRepository) SaveJobResult(ctx context.Context, id string, extraction domain.ExtractionResult) error {
	payload, err := json.Marshal(extraction)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO extraction_results (job_id, payload, created_at)
VALUES ($1,$2,$3)
ON CONFLICT (job_id) DO UPDATE SET payload = EXCLUDED.payload
`, id, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert job result: %w", err)
	}
	return nil
}

func (r *JobRepository) GetJobResult(ctx context.Context, id string) (*domain.ExtractionResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payload
FROM extraction_results
WHERE job_id = $1
`, id)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job result", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan job result: %w", err)
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal job result: %w", err)
	}
	return &result, nil
}
