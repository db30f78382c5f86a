package database

import (
	"context"
	"fmt"
	"time"
)

// RefreshRun is the summary of one aggregation cycle.
type RefreshRun struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Feeds     int           `json:"feeds"`
	Failed    int           `json:"failed"`
	Items     int           `json:"items"`
}

type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Record(ctx context.Context, run RefreshRun) error {
	_, err := r.db.builder.
		Insert("refresh_runs").
		Columns("id", "started_at", "duration_ms", "feeds", "failed", "items").
		Values(run.ID, run.StartedAt.UTC(), run.Duration.Milliseconds(), run.Feeds, run.Failed, run.Items).
		RunWith(r.db.DB).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert refresh run: %w", err)
	}

	return nil
}

// Recent returns up to limit runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]RefreshRun, error) {
	rows, err := r.db.builder.
		Select("id", "started_at", "duration_ms", "feeds", "failed", "items").
		From("refresh_runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		RunWith(r.db.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh runs: %w", err)
	}
	defer rows.Close()

	runs := []RefreshRun{}
	for rows.Next() {
		var run RefreshRun
		var durationMs int64
		if err := rows.Scan(&run.ID, &run.StartedAt, &durationMs, &run.Feeds, &run.Failed, &run.Items); err != nil {
			return nil, fmt.Errorf("failed to scan refresh run: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refresh runs: %w", err)
	}

	return runs, nil
}
