package storage

import (
	"context"
	"fmt"

	"github.com/kleo-network/kleo-backend/internal/models"
)

// HistoryRepository is the history-collection gateway backed by ClickHouse.
// History is an append-only stream; the reward pipeline only ever inserts
// and counts.
type HistoryRepository struct {
	db *ClickHouseDB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *ClickHouseDB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// InsertBatch persists a batch of history records
func (r *HistoryRepository) InsertBatch(ctx context.Context, records []*models.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO history (
			address, create_timestamp, title, category, subcategory, url, domain, summary, visit_time
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, rec := range records {
		err = batch.Append(
			rec.Address,
			rec.CreateTimestamp,
			rec.Title,
			rec.Category,
			rec.Subcategory,
			rec.URL,
			rec.Domain,
			rec.Summary,
			rec.VisitTime,
		)
		if err != nil {
			return fmt.Errorf("failed to append history record: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// CountByAddressFold counts history records for an address, matching
// case-insensitively. Addresses are normalized on write, but older rows may
// carry mixed case.
func (r *HistoryRepository) CountByAddressFold(ctx context.Context, address string) (int64, error) {
	query := `SELECT COUNT(*) FROM history WHERE lower(address) = lower(?)`

	var count uint64
	row := r.db.Conn().QueryRow(ctx, query, address)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return int64(count), nil // #nosec G115 - row counts fit in int64
}
