package repository

import (
	"context"

	"pbx-call-insights/internal/domain/model"
)

// CallLogRepository stores CDR rows ingested from the PBX.
type CallLogRepository interface {
	// Save inserts the call log. Returns domain.ErrAlreadyExists when a row
	// for the same call ID is already present.
	Save(ctx context.Context, log *model.CallLog) error
	FindByCallID(ctx context.Context, callID string) (*model.CallLog, error)
}
