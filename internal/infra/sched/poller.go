package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pbx-call-insights/internal/config"
	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/ports/adapter"
	"pbx-call-insights/internal/domain/ports/repository"
)

// CDRPoller periodically pulls the newest CDR pages from the PBX and
// enqueues answered external calls with recordings. It covers deployments
// where the PBX cannot push webhooks; the intake layer dedupes calls that
// arrive through both paths.
type CDRPoller struct {
	pbx      adapter.PBXClient
	callLogs repository.CallLogRepository
	intake   Intake

	interval        time.Duration
	maxPages        int
	autoProcess     bool
	includeInternal bool

	log *zerolog.Logger
}

func NewCDRPoller(
	pbx adapter.PBXClient,
	callLogs repository.CallLogRepository,
	intake Intake,
	pbxCfg config.PBXConfig,
	processing config.ProcessingConfig,
	logger *zerolog.Logger,
) *CDRPoller {
	plog := logger.With().Str("component", "CDRPoller").Logger()
	return &CDRPoller{
		pbx:             pbx,
		callLogs:        callLogs,
		intake:          intake,
		interval:        pbxCfg.PollInterval,
		maxPages:        pbxCfg.PollMaxPages,
		autoProcess:     processing.AutoProcess,
		includeInternal: processing.ProcessInternal,
		log:             &plog,
	}
}

// Run polls until ctx is cancelled. Poll errors are logged and the next tick
// proceeds normally.
func (p *CDRPoller) Run(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Msg("cdr poller started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("cdr poller stopped")
			return
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil {
				p.log.Error().Err(err).Msg("cdr poll failed")
			}
		}
	}
}

// PollOnce fetches the newest CDR pages and enqueues processable new calls.
// It returns the number of calls enqueued.
func (p *CDRPoller) PollOnce(ctx context.Context) (int, error) {
	enqueued := 0
	for page := 1; page <= p.maxPages; page++ {
		cdrs, err := p.pbx.GetCDRList(ctx, page, cdrPageSize)
		if err != nil {
			return enqueued, err
		}
		for i := range cdrs {
			if p.ingest(ctx, &cdrs[i]) {
				enqueued++
			}
		}
		if len(cdrs) < cdrPageSize {
			break
		}
	}
	if enqueued > 0 {
		p.log.Info().Int("enqueued", enqueued).Msg("poller enqueued new calls")
	}
	return enqueued, nil
}

// ingest records one CDR and reports whether it was enqueued for processing.
func (p *CDRPoller) ingest(ctx context.Context, cdr *adapter.CDR) bool {
	if cdr.UID == "" {
		return false
	}

	callLog := cdrToCallLog(cdr)
	if err := p.callLogs.Save(ctx, callLog); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Seen on a previous tick or ingested by webhook/sync.
			return false
		}
		p.log.Error().Err(err).Str("call_id", cdr.UID).Msg("failed to save polled call log")
		return false
	}

	if !p.autoProcess || !callLog.Processable(p.includeInternal) {
		return false
	}

	status, _, err := p.intake.Enqueue(ctx, callLog.CallID, callLog.RecordingFile, false)
	if err != nil {
		p.log.Error().Err(err).Str("call_id", callLog.CallID).Msg("failed to enqueue polled call")
		return false
	}
	p.log.Info().Str("call_id", callLog.CallID).Str("status", status).Msg("polled call submitted")
	return status == "queued"
}
