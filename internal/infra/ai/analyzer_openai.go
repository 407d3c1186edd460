package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"pbx-call-insights/internal/config"
	"pbx-call-insights/internal/domain/ports/adapter"
	"pbx-call-insights/internal/infra/metrics"
)

var _ adapter.Analyzer = (*OpenAIAnalyzer)(nil)

// OpenAIAnalyzer extracts structured call analysis through the Chat
// Completions API. Any OpenAI-compatible server (vLLM, Ollama in compat
// mode) works by setting BaseURL.
type OpenAIAnalyzer struct {
	client        openai.Client
	model         string
	contextTokens int
	log           *zerolog.Logger
}

func NewOpenAIAnalyzer(cfg config.LLMConfig, logger *zerolog.Logger) (*OpenAIAnalyzer, error) {
	if cfg.OpenAIKey == "" && cfg.OpenAIBaseURL == "" {
		return nil, errors.New("llm: openai api key or base url required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.OpenAIBaseURL, "/")))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	l := logger.With().Str("component", "analyzer").Str("model", model).Logger()
	return &OpenAIAnalyzer{
		client:        openai.NewClient(opts...),
		model:         model,
		contextTokens: cfg.ContextTokens,
		log:           &l,
	}, nil
}

func (a *OpenAIAnalyzer) ModelName() string { return a.model }

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, transcript, recordingContext string) (*adapter.CallAnalysis, error) {
	metrics.ObserveTranscriptTokens(CountTokens(transcript))
	transcript = TruncateToBudget(transcript, a.contextTokens)
	prompt := buildAnalysisPrompt(transcript, recordingContext)

	start := time.Now()
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(analysisSystemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(2000),
	})
	metrics.ObserveAICall("analyze", "openai", a.model, int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm returned no choices")
	}

	content := resp.Choices[0].Message.Content
	analysis, err := ParseAnalysis(content)
	if err != nil {
		a.log.Warn().Err(err).Msg("analysis response unparseable")
		return nil, err
	}
	return analysis, nil
}
