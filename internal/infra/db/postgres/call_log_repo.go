package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/repository"
)

var _ repository.CallLogRepository = (*callLogRepo)(nil)

type callLogRepo struct{ pool *pgxpool.Pool }

func NewCallLogRepo(pool *pgxpool.Pool) *callLogRepo {
	return &callLogRepo{pool: pool}
}

func (r *callLogRepo) Save(ctx context.Context, c *model.CallLog) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	const q = `
INSERT INTO call_logs (
  id, call_id, caller_number, callee_number, caller_name, callee_name,
  direction, status, extension, trunk, start_time, duration, ring_duration,
  recording_file, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	_, err := r.pool.Exec(ctx, q,
		c.ID, c.CallID, c.CallerNumber, c.CalleeNumber, c.CallerName, c.CalleeName,
		c.Direction, c.Status, c.Extension, c.Trunk, c.StartTime, c.Duration, c.RingDuration,
		c.RecordingFile, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *callLogRepo) FindByCallID(ctx context.Context, callID string) (*model.CallLog, error) {
	const q = `
SELECT id, call_id, caller_number, callee_number, caller_name, callee_name,
  direction, status, extension, trunk, start_time, duration, ring_duration,
  recording_file, created_at
FROM call_logs WHERE call_id=$1;`

	c := &model.CallLog{}
	err := r.pool.QueryRow(ctx, q, callID).Scan(
		&c.ID, &c.CallID, &c.CallerNumber, &c.CalleeNumber, &c.CallerName, &c.CalleeName,
		&c.Direction, &c.Status, &c.Extension, &c.Trunk, &c.StartTime, &c.Duration, &c.RingDuration,
		&c.RecordingFile, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}
