package model

import "time"

type QueueItemStatus string

const (
	QueueItemPending    QueueItemStatus = "pending"
	QueueItemProcessing QueueItemStatus = "processing"
	QueueItemCompleted  QueueItemStatus = "completed"
	QueueItemFailed     QueueItemStatus = "failed"
	QueueItemRetrying   QueueItemStatus = "retrying"
)

// Stage labels reported by the processing pipeline while an item runs.
const (
	StageDownloading  = "downloading"
	StageTranscribing = "transcribing"
	StageAnalyzing    = "analyzing"
	StageSaving       = "saving"
)

// QueueItem tracks one call through the processing queue. Existence in the
// queue's active index is owned by Add/Clear; every other field is mutated
// only by the single worker goroutine.
type QueueItem struct {
	CallID        string          `json:"call_id"`
	RecordingFile string          `json:"recording_file,omitempty"`
	Force         bool            `json:"force"`
	Status        QueueItemStatus `json:"status"`
	Attempt       int             `json:"attempt"`
	MaxRetries    int             `json:"max_retries"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Stage         string          `json:"stage,omitempty"`
	AddedAt       time.Time       `json:"added_at"`
	StartedAt     time.Time       `json:"started_at,omitempty"`
	CompletedAt   time.Time       `json:"completed_at,omitempty"`
	NextRetryAt   time.Time       `json:"next_retry_at,omitempty"`
}

// Active reports whether the item still occupies its call ID in the queue.
func (i *QueueItem) Active() bool {
	switch i.Status {
	case QueueItemPending, QueueItemProcessing, QueueItemRetrying:
		return true
	}
	return false
}

// QueueSnapshot is the status view broadcast to observers and served over
// the queue status endpoint.
type QueueSnapshot struct {
	Pending         int         `json:"pending"`
	PendingItems    []QueueItem `json:"pending_items"`
	Processing      *QueueItem  `json:"processing"`
	CompletedCount  int         `json:"completed_count"`
	FailedCount     int         `json:"failed_count"`
	RecentCompleted []QueueItem `json:"recent_completed"`
	RecentFailed    []QueueItem `json:"recent_failed"`
	Running         bool        `json:"is_running"`
}
