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
	"pbx-call-insights/internal/infra/metrics"
)

// SyncWorker bulk-imports CDR history from the PBX into the call log table:
// a deep paginated pass at startup, then shallow periodic passes. Newly
// discovered processable calls are enqueued the same way polled ones are.
type SyncWorker struct {
	pbx      adapter.PBXClient
	callLogs repository.CallLogRepository
	intake   Intake

	interval        time.Duration
	startupPages    int
	periodicPages   int
	autoProcess     bool
	includeInternal bool

	log *zerolog.Logger
}

// periodicSyncPages keeps the recurring pass cheap; the startup pass owns
// deep history.
const periodicSyncPages = 5

func NewSyncWorker(
	pbx adapter.PBXClient,
	callLogs repository.CallLogRepository,
	intake Intake,
	pbxCfg config.PBXConfig,
	processing config.ProcessingConfig,
	logger *zerolog.Logger,
) *SyncWorker {
	slog := logger.With().Str("component", "CDRSyncWorker").Logger()
	return &SyncWorker{
		pbx:             pbx,
		callLogs:        callLogs,
		intake:          intake,
		interval:        pbxCfg.SyncInterval,
		startupPages:    pbxCfg.SyncMaxPages,
		periodicPages:   periodicSyncPages,
		autoProcess:     processing.AutoProcess,
		includeInternal: processing.ProcessInternal,
		log:             &slog,
	}
}

// Run performs the startup sync and then periodic passes until ctx is
// cancelled.
func (s *SyncWorker) Run(ctx context.Context) {
	s.log.Info().Int("max_pages", s.startupPages).Msg("startup cdr sync")
	if synced, err := s.SyncOnce(ctx, s.startupPages); err != nil {
		s.log.Warn().Err(err).Int("synced", synced).Msg("startup cdr sync incomplete")
	} else {
		s.log.Info().Int("synced", synced).Msg("startup cdr sync complete")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("cdr sync worker stopped")
			return
		case <-ticker.C:
			synced, err := s.SyncOnce(ctx, s.periodicPages)
			if err != nil {
				s.log.Error().Err(err).Msg("periodic cdr sync failed")
				continue
			}
			if synced > 0 {
				s.log.Info().Int("synced", synced).Msg("periodic cdr sync imported records")
			}
		}
	}
}

// SyncOnce pages through the CDR list importing unseen records, up to
// maxPages. It returns the number of new call logs created.
func (s *SyncWorker) SyncOnce(ctx context.Context, maxPages int) (int, error) {
	synced := 0
	var toProcess []*adapter.CDR

	for page := 1; page <= maxPages; page++ {
		cdrs, err := s.pbx.GetCDRList(ctx, page, cdrPageSize)
		if err != nil {
			return synced, err
		}
		for i := range cdrs {
			cdr := &cdrs[i]
			if cdr.UID == "" {
				continue
			}
			callLog := cdrToCallLog(cdr)
			if err := s.callLogs.Save(ctx, callLog); err != nil {
				if errors.Is(err, domain.ErrAlreadyExists) {
					continue
				}
				s.log.Error().Err(err).Str("call_id", cdr.UID).Msg("failed to save synced call log")
				continue
			}
			synced++
			if s.autoProcess && callLog.Processable(s.includeInternal) {
				toProcess = append(toProcess, cdr)
			}
		}
		if len(cdrs) < cdrPageSize {
			break
		}
	}
	metrics.AddCDRsSynced(synced)

	for _, cdr := range toProcess {
		status, _, err := s.intake.Enqueue(ctx, cdr.UID, cdr.RecordingFile, false)
		if err != nil {
			s.log.Error().Err(err).Str("call_id", cdr.UID).Msg("failed to enqueue synced call")
			continue
		}
		s.log.Debug().Str("call_id", cdr.UID).Str("status", status).Msg("synced call submitted")
	}
	return synced, nil
}
