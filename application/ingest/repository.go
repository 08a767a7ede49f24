package ingest

import (
	"context"
	"database/sql"
	"fmt"

	"bifurcate/common"

	"gorm.io/gorm"
)

// Repository handles persistence for ingested transfers.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a transfer record.
func (r *Repository) Create(ctx context.Context, t *common.Transfer) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

// Get loads one transfer by id. gorm.ErrRecordNotFound passes through so the
// handler can map it to 404.
func (r *Repository) Get(ctx context.Context, id string) (*common.Transfer, error) {
	var t common.Transfer
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// Count returns the number of stored transfers.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	sqlDB, err := r.db.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get database connection: %w", err)
	}

	var count int64
	err = sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM transfers").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", err)
	}

	return count, nil
}

// StreamSummaries opens a cursor over the listing columns, newest first.
// The caller owns the returned rows; stream.SQLFetcher closes them.
func (r *Repository) StreamSummaries(ctx context.Context) (*sql.Rows, error) {
	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	rows, err := sqlDB.QueryContext(ctx,
		"SELECT id, source, size_bytes, checksum, status, created_at FROM transfers ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	return rows, nil
}

// ScanSummary scans one StreamSummaries row.
func ScanSummary(rows *sql.Rows) (common.TransferSummary, error) {
	var s common.TransferSummary
	err := rows.Scan(&s.ID, &s.Source, &s.SizeBytes, &s.Checksum, &s.Status, &s.CreatedAt)
	return s, err
}
