package worker

import "sync"

// Tracker guards against duplicate processing of the same call when
// independent triggers (API, webhook, poller, bulk sync) race to start it.
// It is a process-wide exclusion gate: a call ID is a member for at most the
// duration of one active processing attempt. Correctness depends on callers
// always pairing TryAcquire with a deferred Release.
type Tracker struct {
	mu         sync.Mutex
	processing map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{processing: make(map[string]struct{})}
}

// TryAcquire atomically checks and marks a call ID as processing. It returns
// true iff the caller is now the sole holder and may proceed.
func (t *Tracker) TryAcquire(callID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.processing[callID]; ok {
		return false
	}
	t.processing[callID] = struct{}{}
	return true
}

// Release marks a call ID as no longer processing. Releasing a call that is
// not held is a no-op.
func (t *Tracker) Release(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.processing, callID)
}

// IsProcessing is an advisory read; real exclusion lives in TryAcquire.
func (t *Tracker) IsProcessing(callID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.processing[callID]
	return ok
}

// ActiveCount returns the number of calls currently held. Diagnostic only.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.processing)
}
