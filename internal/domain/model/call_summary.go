package model

import "time"

// CallSummary is the persisted outcome of one processed call recording.
// One row per call ID; presence of a row without ErrorMessage means the
// call has been processed and triggers must skip it unless forced.
type CallSummary struct {
	ID                string
	CallID            string
	RecordingFile     string
	LanguageDetected  string
	TranscriptPreview string
	FullTranscript    string

	CallType         string
	ServiceCategory  string
	Summary          string
	StaffName        string
	StaffExtension   string
	CustomerName     string
	Sentiment        string
	ResolutionStatus string
	TopicsDiscussed  []string
	CustomerRequests []string
	ActionItems      []string
	KeyDetails       map[string]any

	ProcessingSeconds float64
	ModelUsed         string
	ErrorMessage      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clean reports whether the summary represents a successful processing
// outcome rather than a persisted error state.
func (s *CallSummary) Clean() bool {
	return s != nil && s.ErrorMessage == ""
}
