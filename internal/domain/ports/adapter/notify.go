package adapter

import "context"

// Notifier delivers best-effort operator alerts.
type Notifier interface {
	NotifyFailure(ctx context.Context, callID, errMsg string, attempts int) error
}
