package ai

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"pbx-call-insights/internal/config"
	"pbx-call-insights/internal/domain/ports/adapter"
	"pbx-call-insights/internal/infra/metrics"
)

var _ adapter.Transcriber = (*OpenAITranscriber)(nil)

// OpenAITranscriber sends audio to an OpenAI-compatible transcription
// endpoint. Pointing BaseURL at a local Whisper server works the same way as
// the hosted API.
type OpenAITranscriber struct {
	client          openai.Client
	model           string
	defaultLanguage string
	log             *zerolog.Logger
}

func NewOpenAITranscriber(cfg config.ASRConfig, logger *zerolog.Logger) (*OpenAITranscriber, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("asr: api key or base url required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	l := logger.With().Str("component", "asr").Str("model", model).Logger()
	return &OpenAITranscriber{
		client:          openai.NewClient(opts...),
		model:           model,
		defaultLanguage: cfg.Language,
		log:             &l,
	}, nil
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath, languageHint string) (*adapter.Transcription, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lang := languageHint
	if lang == "" {
		lang = t.defaultLanguage
	}

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(t.model),
	}
	if lang != "" {
		params.Language = openai.String(lang)
	}

	start := time.Now()
	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	metrics.ObserveAICall("transcribe", "openai", t.model, int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Text)
	t.log.Debug().Int("chars", len(text)).Dur("took", time.Since(start)).Msg("transcription complete")
	return &adapter.Transcription{
		Text:     text,
		Language: lang,
	}, nil
}
