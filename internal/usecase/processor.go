package usecase

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/adapter"
	"pbx-call-insights/internal/domain/ports/repository"
	"pbx-call-insights/internal/infra/ai"
	"pbx-call-insights/internal/infra/logging"
	"pbx-call-insights/internal/infra/metrics"
)

// StageFunc receives pipeline stage transitions for status broadcasting.
// A nil StageFunc is valid.
type StageFunc func(stage string)

const (
	recordingPageSize  = 100
	transcriptPreview  = 500
	minTranscriptChars = 10
)

// Processor runs the full pipeline for one call: resolve the recording,
// download it, transcribe, analyze, and persist the summary.
//
// Error contract: a returned error means the attempt is retryable and the
// queue should back off and try again. Terminal business outcomes (no
// recording exists, transcript too thin to analyze) are persisted on the
// summary row and reported as success so the queue marks the item Completed.
type Processor struct {
	pbx            adapter.PBXClient
	transcriber    adapter.Transcriber
	analyzer       adapter.Analyzer
	summaries      repository.CallSummaryRepository
	cache          ProcessedCache
	tempDir        string
	recordingPages int
	log            *zerolog.Logger
}

func NewProcessor(
	pbx adapter.PBXClient,
	transcriber adapter.Transcriber,
	analyzer adapter.Analyzer,
	summaries repository.CallSummaryRepository,
	cache ProcessedCache,
	tempDir string,
	recordingPages int,
	logger *zerolog.Logger,
) *Processor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if recordingPages <= 0 {
		recordingPages = 20
	}
	l := logger.With().Str("component", "processor").Logger()
	return &Processor{
		pbx:            pbx,
		transcriber:    transcriber,
		analyzer:       analyzer,
		summaries:      summaries,
		cache:          cache,
		tempDir:        tempDir,
		recordingPages: recordingPages,
		log:            &l,
	}
}

func (p *Processor) Process(ctx context.Context, callID, recordingFile string, force bool, stageFn StageFunc) error {
	log := logging.With(logging.WithCallID(ctx, callID), p.log)
	defer logging.TraceDuration(log, "Processor.Process")()
	start := time.Now()

	if !force {
		exists, err := p.summaries.ExistsClean(ctx, callID)
		if err == nil && exists {
			log.Debug().Msg("summary already exists, skipping")
			p.markProcessed(ctx, callID)
			return nil
		}
	}

	setStage := func(s string) {
		if stageFn != nil {
			stageFn(s)
		}
	}

	// Stage 1: locate and download the recording.
	setStage(model.StageDownloading)
	stageStart := time.Now()

	if recordingFile == "" {
		file, err := p.findRecording(ctx, callID)
		if err != nil {
			return err
		}
		if file == "" {
			log.Info().Msg("no recording found for call")
			return p.saveTerminal(ctx, callID, "", domain.ErrNoRecording.Error())
		}
		recordingFile = file
	}

	audioPath, err := p.pbx.DownloadRecording(ctx, recordingFile, p.tempDir)
	if err != nil {
		if errors.Is(err, domain.ErrNoRecording) {
			log.Info().Str("recording", recordingFile).Msg("recording not downloadable")
			return p.saveTerminal(ctx, callID, recordingFile, domain.ErrNoRecording.Error())
		}
		return err
	}
	defer func() {
		if rmErr := os.Remove(audioPath); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", audioPath).Msg("temp recording cleanup failed")
		}
	}()
	metrics.ObserveStage(model.StageDownloading, time.Since(stageStart).Seconds())

	// Stage 2: transcription.
	setStage(model.StageTranscribing)
	stageStart = time.Now()
	transcription, err := p.transcriber.Transcribe(ctx, audioPath, "")
	if err != nil {
		return err
	}
	metrics.ObserveStage(model.StageTranscribing, time.Since(stageStart).Seconds())

	transcript := transcription.Text
	if len(transcript) < minTranscriptChars {
		log.Info().Int("chars", len(transcript)).Msg("transcript too short")
		return p.saveTerminal(ctx, callID, recordingFile, domain.ErrInsufficientTranscript.Error())
	}

	if valid, reason := ai.ValidateTranscript(transcript); !valid {
		log.Info().Str("reason", reason).Msg("transcript not analyzable, saving as insufficient data")
		return p.saveInsufficient(ctx, callID, recordingFile, transcription, start)
	}

	// Stage 3: analysis.
	setStage(model.StageAnalyzing)
	stageStart = time.Now()
	analysis, err := p.analyzer.Analyze(ctx, transcript, ai.RecordingContext(recordingFile))
	if err != nil {
		return err
	}
	metrics.ObserveStage(model.StageAnalyzing, time.Since(stageStart).Seconds())

	// Stage 4: persist.
	setStage(model.StageSaving)
	stageStart = time.Now()
	summary := p.buildSummary(callID, recordingFile, transcription, analysis, start)
	if err := p.summaries.Upsert(ctx, summary); err != nil {
		return err
	}
	metrics.ObserveStage(model.StageSaving, time.Since(stageStart).Seconds())

	p.markProcessed(ctx, callID)
	log.Info().
		Str("call_type", summary.CallType).
		Float64("took_seconds", summary.ProcessingSeconds).
		Msg("call processed")
	return nil
}

// findRecording pages through the PBX recording list looking for the call's
// file. Pagination stops at a short page or the configured page cap.
func (p *Processor) findRecording(ctx context.Context, callID string) (string, error) {
	for page := 1; page <= p.recordingPages; page++ {
		recs, err := p.pbx.GetRecordingList(ctx, page, recordingPageSize)
		if err != nil {
			return "", err
		}
		for _, r := range recs {
			if r.UID == callID && r.File != "" {
				return r.File, nil
			}
		}
		if len(recs) < recordingPageSize {
			break
		}
	}
	return "", nil
}

// saveTerminal persists a terminal business outcome and reports success so
// the queue never retries it.
func (p *Processor) saveTerminal(ctx context.Context, callID, recordingFile, msg string) error {
	if err := p.summaries.SaveError(ctx, callID, recordingFile, msg); err != nil {
		return err
	}
	p.markProcessed(ctx, callID)
	return nil
}

// saveInsufficient stores the transcript with a stub analysis for calls that
// contain only ringing, noise, or a brief exchange.
func (p *Processor) saveInsufficient(ctx context.Context, callID, recordingFile string, tr *adapter.Transcription, start time.Time) error {
	summary := &model.CallSummary{
		CallID:            callID,
		RecordingFile:     recordingFile,
		LanguageDetected:  tr.Language,
		TranscriptPreview: preview(tr.Text),
		FullTranscript:    tr.Text,
		CallType:          "insufficient_data",
		ServiceCategory:   "Unknown",
		Summary:           "Not enough data to generate analysis. The call may contain only ringing, background noise, or minimal interaction.",
		StaffExtension:    ai.ExtensionFromFile(recordingFile),
		Sentiment:         "neutral",
		ResolutionStatus:  "unclear",
		ProcessingSeconds: time.Since(start).Seconds(),
		ModelUsed:         "none - insufficient data",
	}
	if err := p.summaries.Upsert(ctx, summary); err != nil {
		return err
	}
	p.markProcessed(ctx, callID)
	return nil
}

func (p *Processor) buildSummary(callID, recordingFile string, tr *adapter.Transcription, a *adapter.CallAnalysis, start time.Time) *model.CallSummary {
	ext := a.StaffExtension
	if ext == "" {
		ext = ai.ExtensionFromFile(recordingFile)
	}
	return &model.CallSummary{
		CallID:            callID,
		RecordingFile:     recordingFile,
		LanguageDetected:  tr.Language,
		TranscriptPreview: preview(tr.Text),
		FullTranscript:    tr.Text,
		CallType:          a.CallType,
		ServiceCategory:   a.ServiceCategory,
		Summary:           a.Summary,
		StaffName:         a.StaffName,
		StaffExtension:    ext,
		CustomerName:      a.CustomerName,
		Sentiment:         a.Sentiment,
		ResolutionStatus:  a.ResolutionStatus,
		TopicsDiscussed:   a.TopicsDiscussed,
		CustomerRequests:  a.CustomerRequests,
		ActionItems:       a.ActionItems,
		KeyDetails:        a.KeyDetails,
		ProcessingSeconds: time.Since(start).Seconds(),
		ModelUsed:         p.analyzer.ModelName(),
	}
}

func (p *Processor) markProcessed(ctx context.Context, callID string) {
	if p.cache != nil {
		p.cache.MarkProcessed(ctx, callID)
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= transcriptPreview {
		return text
	}
	return string(runes[:transcriptPreview]) + "..."
}
