package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/repository"
)

var _ repository.CallSummaryRepository = (*callSummaryRepo)(nil)

type callSummaryRepo struct{ pool *pgxpool.Pool }

func NewCallSummaryRepo(pool *pgxpool.Pool) *callSummaryRepo {
	return &callSummaryRepo{pool: pool}
}

const summaryColumns = `id, call_id, recording_file, language_detected, transcript_preview, full_transcript,
call_type, service_category, summary, staff_name, staff_extension, customer_name,
sentiment, resolution_status, topics_discussed, customer_requests, action_items, key_details,
processing_seconds, model_used, error_message, created_at, updated_at`

func (r *callSummaryRepo) Upsert(ctx context.Context, s *model.CallSummary) error {
	if s.ID == "" {
		s.ID = newULID()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	topics, err := marshalList(s.TopicsDiscussed)
	if err != nil {
		return err
	}
	requests, err := marshalList(s.CustomerRequests)
	if err != nil {
		return err
	}
	actions, err := marshalList(s.ActionItems)
	if err != nil {
		return err
	}
	details, err := marshalMap(s.KeyDetails)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO call_summaries (
  id, call_id, recording_file, language_detected, transcript_preview, full_transcript,
  call_type, service_category, summary, staff_name, staff_extension, customer_name,
  sentiment, resolution_status, topics_discussed, customer_requests, action_items, key_details,
  processing_seconds, model_used, error_message, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,'',$21,$22
) ON CONFLICT (call_id) DO UPDATE SET
  recording_file=$3, language_detected=$4, transcript_preview=$5, full_transcript=$6,
  call_type=$7, service_category=$8, summary=$9, staff_name=$10, staff_extension=$11, customer_name=$12,
  sentiment=$13, resolution_status=$14, topics_discussed=$15, customer_requests=$16, action_items=$17, key_details=$18,
  processing_seconds=$19, model_used=$20, error_message='', updated_at=$22;`

	_, err = r.pool.Exec(ctx, q,
		s.ID, s.CallID, s.RecordingFile, s.LanguageDetected, s.TranscriptPreview, s.FullTranscript,
		s.CallType, s.ServiceCategory, s.Summary, s.StaffName, s.StaffExtension, s.CustomerName,
		s.Sentiment, s.ResolutionStatus, topics, requests, actions, details,
		s.ProcessingSeconds, s.ModelUsed, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		// A concurrent insert on call_id loses the race; the winner's row
		// stands and the caller treats the call as processed either way.
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func (r *callSummaryRepo) SaveError(ctx context.Context, callID, recordingFile, errMsg string) error {
	now := time.Now()
	const q = `
INSERT INTO call_summaries (id, call_id, recording_file, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (call_id) DO UPDATE SET
  recording_file=$3, error_message=$4, updated_at=$5;`

	_, err := r.pool.Exec(ctx, q, newULID(), callID, recordingFile, errMsg, now)
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

func (r *callSummaryRepo) FindByCallID(ctx context.Context, callID string) (*model.CallSummary, error) {
	q := `SELECT ` + summaryColumns + ` FROM call_summaries WHERE call_id=$1;`
	row := r.pool.QueryRow(ctx, q, callID)
	s, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *callSummaryRepo) ExistsClean(ctx context.Context, callID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM call_summaries WHERE call_id=$1 AND error_message='');`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, callID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *callSummaryRepo) List(ctx context.Context, f repository.SummaryFilter) ([]*model.CallSummary, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var where []string
	var args []any
	if f.CallType != "" {
		args = append(args, f.CallType)
		where = append(where, "call_type=$"+strconv.Itoa(len(args)))
	}
	if f.Sentiment != "" {
		args = append(args, f.Sentiment)
		where = append(where, "sentiment=$"+strconv.Itoa(len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM call_summaries"+cond+";", args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	q := "SELECT " + summaryColumns + " FROM call_summaries" + cond +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args)) + ";"
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.CallSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row rowScanner) (*model.CallSummary, error) {
	s := &model.CallSummary{}
	var topics, requests, actions, details []byte
	err := row.Scan(
		&s.ID, &s.CallID, &s.RecordingFile, &s.LanguageDetected, &s.TranscriptPreview, &s.FullTranscript,
		&s.CallType, &s.ServiceCategory, &s.Summary, &s.StaffName, &s.StaffExtension, &s.CustomerName,
		&s.Sentiment, &s.ResolutionStatus, &topics, &requests, &actions, &details,
		&s.ProcessingSeconds, &s.ModelUsed, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(topics) > 0 {
		_ = json.Unmarshal(topics, &s.TopicsDiscussed)
	}
	if len(requests) > 0 {
		_ = json.Unmarshal(requests, &s.CustomerRequests)
	}
	if len(actions) > 0 {
		_ = json.Unmarshal(actions, &s.ActionItems)
	}
	if len(details) > 0 {
		_ = json.Unmarshal(details, &s.KeyDetails)
	}
	return s, nil
}

func marshalList(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}

func marshalMap(v map[string]any) ([]byte, error) {
	if v == nil {
		v = map[string]any{}
	}
	return json.Marshal(v)
}

func newULID() string {
	return ulid.Make().String()
}
