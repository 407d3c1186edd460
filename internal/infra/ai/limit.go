package ai

import (
	"context"

	"pbx-call-insights/internal/domain/ports/adapter"
)

var (
	_ adapter.Transcriber = (*limitedTranscriber)(nil)
	_ adapter.Analyzer    = (*limitedAnalyzer)(nil)
)

type limitedTranscriber struct {
	inner adapter.Transcriber
	sem   chan struct{}
}

// NewLimitedTranscriber caps concurrent ASR requests at maxConcurrent.
func NewLimitedTranscriber(inner adapter.Transcriber, maxConcurrent int) adapter.Transcriber {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedTranscriber{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedTranscriber) Transcribe(ctx context.Context, audioPath, languageHint string) (*adapter.Transcription, error) {
	select {
	case l.sem <- struct{}{}:
		defer func() { <-l.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return l.inner.Transcribe(ctx, audioPath, languageHint)
}

type limitedAnalyzer struct {
	inner adapter.Analyzer
	sem   chan struct{}
}

// NewLimitedAnalyzer caps concurrent LLM requests at maxConcurrent.
func NewLimitedAnalyzer(inner adapter.Analyzer, maxConcurrent int) adapter.Analyzer {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAnalyzer{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAnalyzer) Analyze(ctx context.Context, transcript, recordingContext string) (*adapter.CallAnalysis, error) {
	select {
	case l.sem <- struct{}{}:
		defer func() { <-l.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return l.inner.Analyze(ctx, transcript, recordingContext)
}

func (l *limitedAnalyzer) ModelName() string { return l.inner.ModelName() }
