package repository

import (
	"context"

	"pbx-call-insights/internal/domain/model"
)

// CallSummaryRepository persists AI processing outcomes, one row per call ID.
type CallSummaryRepository interface {
	// Upsert inserts or replaces the summary for summary.CallID, clearing
	// any previously persisted error. A concurrent duplicate insert loses
	// silently; callers treat that as success.
	Upsert(ctx context.Context, summary *model.CallSummary) error
	// SaveError records a terminal error outcome for the call, creating a
	// stub row when none exists.
	SaveError(ctx context.Context, callID, recordingFile, errMsg string) error
	FindByCallID(ctx context.Context, callID string) (*model.CallSummary, error)
	// ExistsClean reports whether a non-error summary exists for the call.
	ExistsClean(ctx context.Context, callID string) (bool, error)
	List(ctx context.Context, filter SummaryFilter) ([]*model.CallSummary, int, error)
}

// SummaryFilter narrows List results; zero values mean "any".
type SummaryFilter struct {
	CallType  string
	Sentiment string
	Offset    int
	Limit     int
}
