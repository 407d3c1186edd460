package ai

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"

	"pbx-call-insights/internal/config"
	"pbx-call-insights/internal/domain/ports/adapter"
	"pbx-call-insights/internal/infra/metrics"
)

var _ adapter.Analyzer = (*GeminiAnalyzer)(nil)

// GeminiAnalyzer is the Gemini-backed alternative to OpenAIAnalyzer,
// selected by llm.provider in config.
type GeminiAnalyzer struct {
	client        *genai.Client
	model         string
	contextTokens int
}

func NewGeminiAnalyzer(ctx context.Context, cfg config.LLMConfig) (*GeminiAnalyzer, error) {
	if cfg.GeminiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.GeminiURL,
		},
	})
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiAnalyzer{client: c, model: model, contextTokens: cfg.ContextTokens}, nil
}

func (g *GeminiAnalyzer) ModelName() string { return g.model }

func (g *GeminiAnalyzer) Analyze(ctx context.Context, transcript, recordingContext string) (*adapter.CallAnalysis, error) {
	metrics.ObserveTranscriptTokens(CountTokens(transcript))
	transcript = TruncateToBudget(transcript, g.contextTokens)
	prompt := buildAnalysisPrompt(transcript, recordingContext)

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: analysisSystemPrompt + "\n\n" + prompt}},
		},
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: 2000,
	})
	metrics.ObserveAICall("analyze", "gemini", g.model, int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		return nil, err
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if t := resp.Candidates[0].Content.Parts[0].Text; t != "" {
			text = t
		}
	}
	if text == "" {
		return nil, errors.New("gemini returned empty response")
	}
	return ParseAnalysis(text)
}
