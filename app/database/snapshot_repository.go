package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/rss-deck/app/store"
)

var _ store.Backend = (*SnapshotRepository)(nil)

// SnapshotRepository keeps one JSON document per store namespace.
type SnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Load(ctx context.Context, namespace string) ([]byte, error) {
	var data string
	err := r.db.builder.
		Select("data").
		From("snapshots").
		Where("namespace = ?", namespace).
		RunWith(r.db.DB).
		QueryRowContext(ctx).
		Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	return []byte(data), nil
}

func (r *SnapshotRepository) Save(ctx context.Context, namespace string, data []byte) error {
	_, err := r.db.builder.
		Insert("snapshots").
		Columns("namespace", "data", "updated_at").
		Values(namespace, string(data), time.Now().UTC()).
		Suffix("ON CONFLICT(namespace) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at").
		RunWith(r.db.DB).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// UpdatedAt returns when namespace was last written, or nil if never.
func (r *SnapshotRepository) UpdatedAt(ctx context.Context, namespace string) (*time.Time, error) {
	var updatedAt time.Time
	err := r.db.builder.
		Select("updated_at").
		From("snapshots").
		Where("namespace = ?", namespace).
		RunWith(r.db.DB).
		QueryRowContext(ctx).
		Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot timestamp: %w", err)
	}

	return &updatedAt, nil
}
