package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"radioqueue/internal/models"
)

// Repository stores the outcome of ended tasks.
// @gtg mp-metrics
type Repository interface {
	SaveRecords(ctx context.Context, records ...models.TaskRecord) (err error)
	RecentRecords(ctx context.Context, limit int) (records []models.TaskRecord, err error)
	DeleteRecordsOlderThan(ctx context.Context, olderThan time.Time) (count int64, err error)
}

type repository struct {
	db *pgxpool.Pool
}

// SaveRecords inserts all records in one statement.
func (r *repository) SaveRecords(ctx context.Context, records ...models.TaskRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]map[string]interface{}, len(records))
	for i := range records {
		rec := &records[i]
		rows[i] = map[string]interface{}{
			"id":                rec.ID,
			"type":              rec.Type,
			"priority":          int(rec.Priority),
			"state":             rec.State.String(),
			"error":             rec.Error,
			"address":           rec.Address,
			"attempt":           rec.Attempt,
			"executing_seconds": rec.Executing.Seconds(),
			"created_at":        rec.CreatedAt,
			"ended_at":          rec.EndedAt,
		}
	}

	jsonData, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal records to JSON: %w", err)
	}

	query := `
        INSERT INTO radio.task_journal
        (id, type, priority, state, error, address, attempt, executing, created_at, ended_at)
        SELECT id, type, priority, state, NULLIF(error, ''), NULLIF(address, ''), attempt,
               make_interval(secs => executing_seconds), created_at, ended_at
        FROM jsonb_to_recordset($1::jsonb) AS x(
            id uuid, type text, priority int, state text, error text, address text, attempt int,
            executing_seconds double precision, created_at timestamptz, ended_at timestamptz
        )
        ON CONFLICT (id) DO NOTHING
    `
	if _, err = r.db.Exec(ctx, query, jsonData); err != nil {
		return fmt.Errorf("failed to insert task records: %w", err)
	}
	return nil
}

// RecentRecords returns the last limit records, newest first.
func (r *repository) RecentRecords(ctx context.Context, limit int) ([]models.TaskRecord, error) {
	query := `
        SELECT id, type, priority, state, COALESCE(error, ''), COALESCE(address, ''), attempt,
               EXTRACT(EPOCH FROM executing)::double precision, created_at, ended_at
        FROM radio.task_journal
        ORDER BY ended_at DESC
        LIMIT $1
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query task records: %w", err)
	}
	defer rows.Close()

	var records []models.TaskRecord
	for rows.Next() {
		var (
			rec       models.TaskRecord
			priority  int
			state     string
			executing float64
		)
		if scanErr := rows.Scan(&rec.ID, &rec.Type, &priority, &state, &rec.Error, &rec.Address, &rec.Attempt,
			&executing, &rec.CreatedAt, &rec.EndedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan task record: %w", scanErr)
		}
		rec.Priority = models.Priority(priority)
		if rec.State, err = models.ParseTaskState(state); err != nil {
			return nil, err
		}
		rec.Executing = time.Duration(executing * float64(time.Second))
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteRecordsOlderThan ...
func (r *repository) DeleteRecordsOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
        DELETE FROM radio.task_journal
        WHERE ended_at < $1
    `
	result, err := r.db.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old task records: %w", err)
	}
	return result.RowsAffected(), nil
}

// NewRepository creates a journal backed by db.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}
