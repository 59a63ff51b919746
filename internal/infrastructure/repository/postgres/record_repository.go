package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stitchworks/atelier/internal/core/domain"
)

// RecordRepository is the storage side of the persistence boundary:
// validated records arrive already mapped to storage shape, it only
// assigns ids and stores the payloads.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083002)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS order_items (
	id TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	requires_review BOOLEAN NOT NULL DEFAULT FALSE,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS fabric_research (
	id TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_requires_review ON order_items(requires_review);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RecordRepository) CreateOrderItem(ctx context.Context, record domain.OrderItemRecord) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal order item: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO order_items (id, payload, requires_review, created_by, created_at)
VALUES ($1,$2,$3,$4,$5)
`, id, payload, record.RequiresReview, record.CreatedBy, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert order item: %w", err)
	}
	return id, nil
}

func (r *RecordRepository) GetOrderItem(ctx context.Context, id string) (domain.OrderItemRecord, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM order_items WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderItemRecord{}, domain.WrapError(domain.ErrRecordNotFound, "get order item", fmt.Errorf("id %s", id))
		}
		return domain.OrderItemRecord{}, fmt.Errorf("scan order item: %w", err)
	}

	var record domain.OrderItemRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.OrderItemRecord{}, fmt.Errorf("unmarshal order item: %w", err)
	}
	return record, nil
}

func (r *RecordRepository) DeleteOrderItem(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "delete order item", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *RecordRepository) CreateResearch(ctx context.Context, record domain.ResearchStorageRecord) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal research record: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO fabric_research (id, payload, created_by, created_at)
VALUES ($1,$2,$3,$4)
`, id, payload, record.CreatedBy, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert research record: %w", err)
	}
	return id, nil
}

func (r *RecordRepository) GetResearch(ctx context.Context, id string) (domain.ResearchStorageRecord, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM fabric_research WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ResearchStorageRecord{}, domain.WrapError(domain.ErrRecordNotFound, "get research record", fmt.Errorf("id %s", id))
		}
		return domain.ResearchStorageRecord{}, fmt.Errorf("scan research record: %w", err)
	}

	var record domain.ResearchStorageRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.ResearchStorageRecord{}, fmt.Errorf("unmarshal research record: %w", err)
	}
	return record, nil
}

func (r *RecordRepository) DeleteResearch(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM fabric_research WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete research record: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "delete research record", fmt.Errorf("id %s", id))
	}
	return nil
}
