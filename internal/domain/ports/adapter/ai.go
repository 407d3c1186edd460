package adapter

import "context"

// Transcription is the result of one ASR run.
type Transcription struct {
	Text     string
	Language string
	Duration float64
}

// Transcriber converts a local audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, languageHint string) (*Transcription, error)
}

// CallAnalysis is the structured result extracted from a transcript.
type CallAnalysis struct {
	CallType         string         `json:"call_type"`
	ServiceCategory  string         `json:"service_category"`
	Summary          string         `json:"summary"`
	StaffName        string         `json:"staff_name"`
	StaffExtension   string         `json:"staff_extension"`
	CustomerName     string         `json:"customer_name"`
	Sentiment        string         `json:"sentiment"`
	ResolutionStatus string         `json:"resolution_status"`
	TopicsDiscussed  []string       `json:"topics_discussed"`
	CustomerRequests []string       `json:"customer_requests"`
	ActionItems      []string       `json:"action_items"`
	KeyDetails       map[string]any `json:"key_details"`
}

// Analyzer extracts a CallAnalysis from a call transcript. recordingContext
// carries extension/direction hints derived from the recording filename.
type Analyzer interface {
	Analyze(ctx context.Context, transcript, recordingContext string) (*CallAnalysis, error)
	ModelName() string
}
