package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// ProcessFunc runs the full recording pipeline for one call. Any returned
// error is treated as retryable; terminal business outcomes must be resolved
// inside the function and reported as nil.
type ProcessFunc func(ctx context.Context, callID, recordingFile string, force bool) error

// BroadcastFunc publishes a queue snapshot to observers. Best-effort: errors
// are logged and swallowed by the queue.
type BroadcastFunc func(snapshot model.QueueSnapshot)

// FailedFunc is invoked after an item exhausts its retries.
type FailedFunc func(item model.QueueItem)

const (
	defaultMaxRetries   = 3
	defaultBackoffBase  = 5 * time.Second
	defaultHistoryLimit = 50
	defaultCapacity     = 1024
	faultCooldown       = time.Second
)

// AddResult reports the outcome of a single enqueue.
type AddResult struct {
	Status   string          `json:"status"` // queued | already_queued
	Position int             `json:"position"`
	Item     model.QueueItem `json:"item"`
}

// BatchEntry is one requested enqueue within a batch.
type BatchEntry struct {
	CallID        string `json:"call_id"`
	RecordingFile string `json:"recording_file,omitempty"`
	Force         bool   `json:"force"`
}

// BatchResult reports the outcome of an AddBatch call.
type BatchResult struct {
	AddedCount   int      `json:"added_count"`
	SkippedCount int      `json:"skipped_count"`
	Added        []string `json:"added"`
	Skipped      []string `json:"skipped"`
}

// ClearResult reports which items a Clear call removed.
type ClearResult struct {
	Cleared int      `json:"cleared"`
	CallIDs []string `json:"call_ids"`
}

// Queue serializes recording processing so at most one item executes at a
// time, with automatic retry and bounded completed/failed histories. A single
// worker goroutine is the only executor of the process function; Add and
// Clear mutate the active index under the queue lock.
type Queue struct {
	mu        sync.Mutex
	ch        chan *model.QueueItem
	items     map[string]*model.QueueItem
	order     []string
	current   *model.QueueItem
	completed []model.QueueItem
	failed    []model.QueueItem
	running   bool

	process   ProcessFunc
	broadcast BroadcastFunc
	onFailed  FailedFunc

	maxRetries   int
	backoffBase  time.Duration
	historyLimit int

	wg  sync.WaitGroup
	log *zerolog.Logger
}

// Option tweaks queue construction; defaults follow the production values.
type Option func(*Queue)

// WithBackoffBase overrides the retry backoff base (base * 2^attempt).
func WithBackoffBase(d time.Duration) Option {
	return func(q *Queue) { q.backoffBase = d }
}

// WithMaxRetries overrides the per-item attempt cap.
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// WithFailedHook registers a callback for permanently failed items.
func WithFailedHook(fn FailedFunc) Option {
	return func(q *Queue) { q.onFailed = fn }
}

func NewQueue(process ProcessFunc, broadcast BroadcastFunc, logger *zerolog.Logger, opts ...Option) *Queue {
	qlog := logger.With().Str("component", "ProcessingQueue").Logger()
	q := &Queue{
		ch:           make(chan *model.QueueItem, defaultCapacity),
		items:        make(map[string]*model.QueueItem),
		process:      process,
		broadcast:    broadcast,
		maxRetries:   defaultMaxRetries,
		backoffBase:  defaultBackoffBase,
		historyLimit: defaultHistoryLimit,
		log:          &qlog,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the single worker goroutine. The worker stops when ctx is
// cancelled; Stop waits for it to drain its in-flight item.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.log.Info().Msg("processing queue worker started")
		for {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.running = false
				q.mu.Unlock()
				q.log.Info().Msg("processing queue worker stopped")
				return
			case item := <-q.ch:
				q.dispatch(ctx, item)
			}
		}
	}()
}

// Stop blocks until the worker goroutine has exited. The caller cancels the
// context passed to Start first; an in-flight item runs to completion.
func (q *Queue) Stop() {
	q.wg.Wait()
}

// Add enqueues a call for processing. A call already Pending, Processing or
// Retrying is not enqueued again; the existing item and its queue position
// are returned with status "already_queued".
func (q *Queue) Add(callID, recordingFile string, force bool) (AddResult, error) {
	q.mu.Lock()
	if existing, ok := q.items[callID]; ok && existing.Active() {
		res := AddResult{Status: "already_queued", Position: q.positionLocked(callID), Item: *existing}
		q.mu.Unlock()
		return res, nil
	}

	item := &model.QueueItem{
		CallID:        callID,
		RecordingFile: recordingFile,
		Force:         force,
		Status:        model.QueueItemPending,
		MaxRetries:    q.maxRetries,
		AddedAt:       time.Now(),
	}
	select {
	case q.ch <- item:
	default:
		q.mu.Unlock()
		return AddResult{}, fmt.Errorf("processing queue full (capacity %d)", cap(q.ch))
	}
	q.items[callID] = item
	q.order = append(q.order, callID)
	res := AddResult{Status: "queued", Position: q.positionLocked(callID), Item: *item}
	q.mu.Unlock()

	metrics.SetQueueDepth(q.pendingCount())
	q.broadcastStatus()
	return res, nil
}

// AddBatch applies Add to each entry. Duplicates within the batch are
// skipped like any other already-queued call.
func (q *Queue) AddBatch(entries []BatchEntry) BatchResult {
	res := BatchResult{Added: []string{}, Skipped: []string{}}
	for _, e := range entries {
		r, err := q.Add(e.CallID, e.RecordingFile, e.Force)
		if err != nil || r.Status != "queued" {
			res.Skipped = append(res.Skipped, e.CallID)
			continue
		}
		res.Added = append(res.Added, e.CallID)
	}
	res.AddedCount = len(res.Added)
	res.SkippedCount = len(res.Skipped)
	return res
}

// Clear removes every Pending or Retrying item from the queue and its index.
// The currently processing item is untouched and runs to completion.
func (q *Queue) Clear() ClearResult {
	q.mu.Lock()
	// Drain queued items so the worker never sees them.
	for {
		select {
		case <-q.ch:
			continue
		default:
		}
		break
	}
	removed := []string{}
	for id, item := range q.items {
		if item.Status == model.QueueItemPending || item.Status == model.QueueItemRetrying {
			removed = append(removed, id)
			delete(q.items, id)
		}
	}
	q.rebuildOrderLocked()
	q.mu.Unlock()

	metrics.SetQueueDepth(q.pendingCount())
	q.broadcastStatus()
	return ClearResult{Cleared: len(removed), CallIDs: removed}
}

// UpdateStage records the pipeline stage of the currently executing item and
// broadcasts. A stage report for any other call is ignored.
func (q *Queue) UpdateStage(callID, stage string) {
	q.mu.Lock()
	match := q.current != nil && q.current.CallID == callID
	if match {
		q.current.Stage = stage
	}
	q.mu.Unlock()
	if match {
		q.broadcastStatus()
	}
}

// Snapshot returns the full queue status view.
func (q *Queue) Snapshot() model.QueueSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := []model.QueueItem{}
	for _, id := range q.order {
		if item, ok := q.items[id]; ok {
			if item.Status == model.QueueItemPending || item.Status == model.QueueItemRetrying {
				pending = append(pending, *item)
			}
		}
	}
	var processing *model.QueueItem
	if q.current != nil {
		cp := *q.current
		processing = &cp
	}
	return model.QueueSnapshot{
		Pending:         len(pending),
		PendingItems:    pending,
		Processing:      processing,
		CompletedCount:  len(q.completed),
		FailedCount:     len(q.failed),
		RecentCompleted: append([]model.QueueItem{}, q.completed...),
		RecentFailed:    append([]model.QueueItem{}, q.failed...),
		Running:         q.running,
	}
}

// dispatch runs one dequeued item through the process function and applies
// the retry policy. A fault in the dispatch path itself never kills the
// worker loop; it is logged and followed by a short cooldown.
func (q *Queue) dispatch(ctx context.Context, item *model.QueueItem) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Str("call_id", item.CallID).Msg("queue dispatch fault")
			q.mu.Lock()
			q.current = nil
			q.mu.Unlock()
			select {
			case <-ctx.Done():
			case <-time.After(faultCooldown):
			}
		}
	}()

	// Skip items a concurrent Clear removed from the index.
	if !q.active(item.CallID) {
		return
	}

	// A retry may arrive before its scheduled time; wait it out.
	if wait := time.Until(item.NextRetryAt); wait > 0 {
		q.log.Info().Str("call_id", item.CallID).Dur("wait", wait).Msg("waiting for retry window")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if !q.active(item.CallID) {
			return
		}
	}

	q.mu.Lock()
	item.Status = model.QueueItemProcessing
	item.StartedAt = time.Now()
	item.Attempt++
	q.current = item
	q.mu.Unlock()
	q.broadcastStatus()

	err := q.process(ctx, item.CallID, item.RecordingFile, item.Force)

	var failedCopy *model.QueueItem
	q.mu.Lock()
	switch {
	case err == nil:
		item.Status = model.QueueItemCompleted
		item.CompletedAt = time.Now()
		q.completed = appendBounded(q.completed, *item, q.historyLimit)
		delete(q.items, item.CallID)
		metrics.IncQueueItem("completed")

	case item.Attempt < item.MaxRetries:
		item.ErrorMessage = err.Error()
		backoff := q.backoffBase * (1 << item.Attempt)
		item.Status = model.QueueItemRetrying
		item.NextRetryAt = time.Now().Add(backoff)
		item.Stage = ""
		q.moveToBackLocked(item.CallID)
		q.log.Warn().Err(err).Str("call_id", item.CallID).
			Int("attempt", item.Attempt).Dur("backoff", backoff).
			Msg("processing failed, retry scheduled")
		metrics.IncQueueItem("retried")

	default:
		item.ErrorMessage = err.Error()
		item.Status = model.QueueItemFailed
		item.CompletedAt = time.Now()
		q.failed = appendBounded(q.failed, *item, q.historyLimit)
		delete(q.items, item.CallID)
		q.log.Error().Err(err).Str("call_id", item.CallID).
			Int("attempt", item.Attempt).Msg("processing failed permanently")
		cp := *item
		failedCopy = &cp
		metrics.IncQueueItem("failed")
	}
	retry := item.Status == model.QueueItemRetrying
	q.current = nil
	q.rebuildOrderLocked()
	q.mu.Unlock()

	if retry {
		// Retried items re-enter at the back of the queue; fresh submissions
		// may overtake them while they wait out the backoff window.
		select {
		case q.ch <- item:
		case <-ctx.Done():
		}
	}
	if failedCopy != nil && q.onFailed != nil {
		q.onFailed(*failedCopy)
	}
	metrics.SetQueueDepth(q.pendingCount())
	q.broadcastStatus()
}

func (q *Queue) active(callID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.items[callID]
	return ok
}

func (q *Queue) pendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, item := range q.items {
		if item.Status == model.QueueItemPending || item.Status == model.QueueItemRetrying {
			n++
		}
	}
	return n
}

// positionLocked returns the 1-based position among pending/retrying items.
func (q *Queue) positionLocked(callID string) int {
	pos := 0
	for _, id := range q.order {
		item, ok := q.items[id]
		if !ok {
			continue
		}
		if item.Status == model.QueueItemPending || item.Status == model.QueueItemRetrying {
			pos++
			if id == callID {
				return pos
			}
		}
	}
	return 0
}

func (q *Queue) moveToBackLocked(callID string) {
	for i, id := range q.order {
		if id == callID {
			q.order = append(append(q.order[:i:i], q.order[i+1:]...), callID)
			return
		}
	}
	q.order = append(q.order, callID)
}

func (q *Queue) rebuildOrderLocked() {
	kept := q.order[:0]
	for _, id := range q.order {
		if _, ok := q.items[id]; ok {
			kept = append(kept, id)
		}
	}
	q.order = kept
}

func (q *Queue) broadcastStatus() {
	if q.broadcast == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Warn().Interface("panic", r).Msg("queue status broadcast failed")
		}
	}()
	q.broadcast(q.Snapshot())
}

func appendBounded(history []model.QueueItem, item model.QueueItem, limit int) []model.QueueItem {
	history = append(history, item)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}
