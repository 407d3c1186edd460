package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/ports/repository"
	"pbx-call-insights/internal/infra/worker"
)

// Enqueuer is the slice of the processing queue the coordinator drives.
type Enqueuer interface {
	Add(callID, recordingFile string, force bool) (worker.AddResult, error)
	AddBatch(entries []worker.BatchEntry) worker.BatchResult
}

// ProcessedCache is the fast-path dedup store over recently processed calls.
type ProcessedCache interface {
	IsProcessed(ctx context.Context, callID string) bool
	MarkProcessed(ctx context.Context, callID string)
	Forget(ctx context.Context, callID string)
}

// Skip reasons returned by ShouldProcess.
const (
	SkipRecentlyProcessed   = "recently_processed"
	SkipAlreadyProcessed    = "already_processed"
	SkipCurrentlyProcessing = "currently_processing"
)

// Coordinator owns the "should this call be processed at all" decision and
// funnels the trigger sources (API, webhook, poller, sync) into the queue or
// the direct processing path.
type Coordinator struct {
	queue     Enqueuer
	tracker   *worker.Tracker
	processor *Processor
	summaries repository.CallSummaryRepository
	cache     ProcessedCache
	log       *zerolog.Logger
}

func NewCoordinator(
	queue Enqueuer,
	tracker *worker.Tracker,
	processor *Processor,
	summaries repository.CallSummaryRepository,
	cache ProcessedCache,
	logger *zerolog.Logger,
) *Coordinator {
	l := logger.With().Str("component", "coordinator").Logger()
	return &Coordinator{
		queue:     queue,
		tracker:   tracker,
		processor: processor,
		summaries: summaries,
		cache:     cache,
		log:       &l,
	}
}

// ShouldProcess is the single consolidated dedup decision for every trigger
// source. force bypasses all checks and clears the cached marker so the call
// can run again. The returned reason is empty when processing should proceed.
func (c *Coordinator) ShouldProcess(ctx context.Context, callID string, force bool) (bool, string) {
	if force {
		if c.cache != nil {
			c.cache.Forget(ctx, callID)
		}
		return true, ""
	}
	if c.tracker.IsProcessing(callID) {
		return false, SkipCurrentlyProcessing
	}
	if c.cache != nil && c.cache.IsProcessed(ctx, callID) {
		return false, SkipRecentlyProcessed
	}
	exists, err := c.summaries.ExistsClean(ctx, callID)
	if err != nil {
		// The database check is authoritative but must not block intake;
		// the processor re-checks before doing real work.
		c.log.Warn().Err(err).Str("call_id", callID).Msg("summary existence check failed")
		return true, ""
	}
	if exists {
		if c.cache != nil {
			c.cache.MarkProcessed(ctx, callID)
		}
		return false, SkipAlreadyProcessed
	}
	return true, ""
}

// Enqueue gates one call through ShouldProcess and adds it to the queue.
// The returned status is "queued", "already_queued", or a skip reason.
func (c *Coordinator) Enqueue(ctx context.Context, callID, recordingFile string, force bool) (string, int, error) {
	if callID == "" {
		return "", 0, fmt.Errorf("%w: call id is required", domain.ErrInvalidArgument)
	}
	if ok, reason := c.ShouldProcess(ctx, callID, force); !ok {
		c.log.Debug().Str("call_id", callID).Str("reason", reason).Msg("enqueue skipped")
		return reason, 0, nil
	}
	res, err := c.queue.Add(callID, recordingFile, force)
	if err != nil {
		return "", 0, err
	}
	return res.Status, res.Position, nil
}

// EnqueueBatch applies the ShouldProcess gate per call and queues the rest
// in one pass. Skipped calls are reported with their reasons.
func (c *Coordinator) EnqueueBatch(ctx context.Context, entries []worker.BatchEntry, force bool) worker.BatchResult {
	eligible := make([]worker.BatchEntry, 0, len(entries))
	var skipped []string
	for _, e := range entries {
		if e.CallID == "" {
			continue
		}
		e.Force = e.Force || force
		if ok, reason := c.ShouldProcess(ctx, e.CallID, e.Force); !ok {
			c.log.Debug().Str("call_id", e.CallID).Str("reason", reason).Msg("batch entry skipped")
			skipped = append(skipped, e.CallID)
			continue
		}
		eligible = append(eligible, e)
	}
	res := c.queue.AddBatch(eligible)
	res.Skipped = append(res.Skipped, skipped...)
	res.SkippedCount = len(res.Skipped)
	return res
}

// ProcessNow runs the pipeline inline, bypassing the queue. Used by the
// webhook trigger where the CDR push already carries the recording file.
// The tracker guard makes it safe against a concurrent queued run.
func (c *Coordinator) ProcessNow(ctx context.Context, callID, recordingFile string, force bool) error {
	if ok, reason := c.ShouldProcess(ctx, callID, force); !ok {
		c.log.Debug().Str("call_id", callID).Str("reason", reason).Msg("direct processing skipped")
		return nil
	}
	if !c.tracker.TryAcquire(callID) {
		c.log.Debug().Str("call_id", callID).Msg("already processing, skipping direct run")
		return nil
	}
	defer c.tracker.Release(callID)
	return c.processor.Process(ctx, callID, recordingFile, force, nil)
}
