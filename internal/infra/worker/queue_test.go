//go:build !integration

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pbx-call-insights/internal/domain/model"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(nil)
	return &l
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestQueueAddDeduplicates(t *testing.T) {
	q := NewQueue(nil, nil, newTestLogger())

	first, err := q.Add("call-1", "rec-1.wav", false)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if first.Status != "queued" || first.Position != 1 {
		t.Fatalf("first add = %+v, want queued at position 1", first)
	}

	dup, err := q.Add("call-1", "rec-1.wav", false)
	if err != nil {
		t.Fatalf("Add duplicate: %v", err)
	}
	if dup.Status != "already_queued" {
		t.Fatalf("duplicate status = %q, want already_queued", dup.Status)
	}
	if dup.Position != 1 {
		t.Fatalf("duplicate position = %d, want 1", dup.Position)
	}

	second, _ := q.Add("call-2", "", false)
	if second.Position != 2 {
		t.Fatalf("second call position = %d, want 2", second.Position)
	}

	snap := q.Snapshot()
	if snap.Pending != 2 {
		t.Fatalf("pending = %d, want 2", snap.Pending)
	}
}

func TestQueueDuplicateAddCompletesOnce(t *testing.T) {
	process := func(ctx context.Context, callID, recordingFile string, force bool) error {
		return nil
	}
	q := NewQueue(process, nil, newTestLogger())
	if _, err := q.Add("call-a", "rec1.wav", false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := q.Add("call-a", "rec1.wav", false); err != nil {
		t.Fatalf("Add duplicate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	waitFor(t, 2*time.Second, "item completed", func() bool {
		snap := q.Snapshot()
		return snap.Pending == 0 && snap.Processing == nil && snap.CompletedCount > 0
	})
	cancel()
	q.Stop()

	snap := q.Snapshot()
	count := 0
	for _, item := range snap.RecentCompleted {
		if item.CallID == "call-a" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("recent_completed entries for call-a = %d, want exactly 1", count)
	}
}

func TestQueueAddBatchSkipsDuplicates(t *testing.T) {
	q := NewQueue(nil, nil, newTestLogger())
	if _, err := q.Add("call-1", "", false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	res := q.AddBatch([]BatchEntry{
		{CallID: "call-1"},
		{CallID: "call-2"},
		{CallID: "call-3"},
		{CallID: "call-2"}, // duplicate within the batch itself
	})
	if res.AddedCount != 2 || res.SkippedCount != 2 {
		t.Fatalf("batch result = %+v, want 2 added / 2 skipped", res)
	}
	if res.Added[0] != "call-2" || res.Added[1] != "call-3" {
		t.Fatalf("added = %v, want [call-2 call-3]", res.Added)
	}
}

func TestQueueProcessesInFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var processed []string
	process := func(ctx context.Context, callID, recordingFile string, force bool) error {
		mu.Lock()
		processed = append(processed, callID)
		mu.Unlock()
		return nil
	}

	q := NewQueue(process, nil, newTestLogger())
	for _, id := range []string{"call-a", "call-b", "call-c"} {
		if _, err := q.Add(id, "", false); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	waitFor(t, 2*time.Second, "all items completed", func() bool {
		return q.Snapshot().CompletedCount == 3
	})
	cancel()
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(processed) != 3 || processed[0] != "call-a" || processed[1] != "call-b" || processed[2] != "call-c" {
		t.Fatalf("processed order = %v, want [call-a call-b call-c]", processed)
	}
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	process := func(ctx context.Context, callID, recordingFile string, force bool) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("transient downstream failure")
		}
		return nil
	}

	q := NewQueue(process, nil, newTestLogger(), WithBackoffBase(time.Millisecond))
	if _, err := q.Add("call-1", "", false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	waitFor(t, 2*time.Second, "item completed after retries", func() bool {
		return q.Snapshot().CompletedCount == 1
	})
	cancel()
	q.Stop()

	snap := q.Snapshot()
	item := snap.RecentCompleted[0]
	if item.Status != model.QueueItemCompleted {
		t.Fatalf("status = %q, want completed", item.Status)
	}
	if item.Attempt != 3 {
		t.Fatalf("attempt = %d, want 3", item.Attempt)
	}
	if snap.FailedCount != 0 {
		t.Fatalf("failed count = %d, want 0", snap.FailedCount)
	}
}

func TestQueueFailsPermanentlyAfterMaxRetries(t *testing.T) {
	process := func(ctx context.Context, callID, recordingFile string, force bool) error {
		return errors.New("recording download rejected")
	}

	var mu sync.Mutex
	var hooked []model.QueueItem
	hook := func(item model.QueueItem) {
		mu.Lock()
		hooked = append(hooked, item)
		mu.Unlock()
	}

	q := NewQueue(process, nil, newTestLogger(),
		WithBackoffBase(time.Millisecond),
		WithMaxRetries(2),
		WithFailedHook(hook),
	)
	if _, err := q.Add("call-1", "", false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	waitFor(t, 2*time.Second, "item failed permanently", func() bool {
		return q.Snapshot().FailedCount == 1
	})
	cancel()
	q.Stop()

	snap := q.Snapshot()
	item := snap.RecentFailed[0]
	if item.Status != model.QueueItemFailed {
		t.Fatalf("status = %q, want failed", item.Status)
	}
	if item.Attempt != 2 {
		t.Fatalf("attempt = %d, want 2", item.Attempt)
	}
	if item.ErrorMessage != "recording download rejected" {
		t.Fatalf("error message = %q", item.ErrorMessage)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hooked) != 1 || hooked[0].CallID != "call-1" {
		t.Fatalf("failed hook calls = %+v, want one for call-1", hooked)
	}
}

func TestQueueClearSparesProcessingItem(t *testing.T) {
	started := make(chan string, 1)
	release := make(chan struct{})
	process := func(ctx context.Context, callID, recordingFile string, force bool) error {
		started <- callID
		<-release
		return nil
	}

	q := NewQueue(process, nil, newTestLogger())
	for _, id := range []string{"call-a", "call-b", "call-c"} {
		if _, err := q.Add(id, "", false); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	defer func() {
		cancel()
		q.Stop()
	}()

	if got := <-started; got != "call-a" {
		t.Fatalf("processing item = %q, want call-a", got)
	}

	res := q.Clear()
	if res.Cleared != 2 {
		t.Fatalf("cleared = %d, want 2", res.Cleared)
	}
	removed := map[string]bool{}
	for _, id := range res.CallIDs {
		removed[id] = true
	}
	if !removed["call-b"] || !removed["call-c"] || removed["call-a"] {
		t.Fatalf("cleared ids = %v, want call-b and call-c only", res.CallIDs)
	}

	snap := q.Snapshot()
	if snap.Pending != 0 {
		t.Fatalf("pending after clear = %d, want 0", snap.Pending)
	}
	if snap.Processing == nil || snap.Processing.CallID != "call-a" {
		t.Fatalf("processing after clear = %+v, want call-a still running", snap.Processing)
	}

	close(release)
	waitFor(t, 2*time.Second, "in-flight item completed", func() bool {
		return q.Snapshot().CompletedCount == 1
	})
}

func TestQueueUpdateStageOnlyForCurrentItem(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	process := func(ctx context.Context, callID, recordingFile string, force bool) error {
		started <- struct{}{}
		<-release
		return nil
	}

	var mu sync.Mutex
	var stages []string
	broadcast := func(snap model.QueueSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Processing != nil && snap.Processing.Stage != "" {
			stages = append(stages, snap.Processing.Stage)
		}
	}

	q := NewQueue(process, broadcast, newTestLogger())
	if _, err := q.Add("call-1", "", false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := q.Add("call-2", "", false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	defer func() {
		cancel()
		q.Stop()
	}()
	<-started

	q.UpdateStage("call-1", model.StageDownloading)
	q.UpdateStage("call-2", model.StageAnalyzing) // not current, must be ignored
	q.UpdateStage("call-1", model.StageTranscribing)

	snap := q.Snapshot()
	if snap.Processing == nil || snap.Processing.Stage != model.StageTranscribing {
		t.Fatalf("processing stage = %+v, want transcribing", snap.Processing)
	}

	mu.Lock()
	for _, s := range stages {
		if s == model.StageAnalyzing {
			mu.Unlock()
			t.Fatal("stage update for a non-current call was broadcast")
		}
	}
	mu.Unlock()
	close(release)
}

func TestQueueHistoryIsBounded(t *testing.T) {
	process := func(ctx context.Context, callID, recordingFile string, force bool) error {
		return nil
	}
	q := NewQueue(process, nil, newTestLogger())

	total := defaultHistoryLimit + 5
	for i := 0; i < total; i++ {
		if _, err := q.Add(fmt.Sprintf("call-%03d", i), "", false); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	waitFor(t, 5*time.Second, "queue drained", func() bool {
		snap := q.Snapshot()
		return snap.Pending == 0 && snap.Processing == nil && snap.CompletedCount == defaultHistoryLimit
	})
	cancel()
	q.Stop()

	snap := q.Snapshot()
	if len(snap.RecentCompleted) != defaultHistoryLimit {
		t.Fatalf("history length = %d, want %d", len(snap.RecentCompleted), defaultHistoryLimit)
	}
	// The oldest entries fall off; the newest survives.
	last := snap.RecentCompleted[len(snap.RecentCompleted)-1]
	if last.CallID != fmt.Sprintf("call-%03d", total-1) {
		t.Fatalf("newest history entry = %q", last.CallID)
	}
}
