//go:build !integration

package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/adapter"
	"pbx-call-insights/internal/domain/ports/repository"
	"pbx-call-insights/internal/infra/worker"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

type mockPBXClient struct {
	GetCDRListFunc        func(ctx context.Context, page, pageSize int) ([]adapter.CDR, error)
	GetRecordingListFunc  func(ctx context.Context, page, pageSize int) ([]adapter.Recording, error)
	DownloadRecordingFunc func(ctx context.Context, recordingFile, dir string) (string, error)
}

func (m *mockPBXClient) GetCDRList(ctx context.Context, page, pageSize int) ([]adapter.CDR, error) {
	return m.GetCDRListFunc(ctx, page, pageSize)
}
func (m *mockPBXClient) GetRecordingList(ctx context.Context, page, pageSize int) ([]adapter.Recording, error) {
	return m.GetRecordingListFunc(ctx, page, pageSize)
}
func (m *mockPBXClient) DownloadRecording(ctx context.Context, recordingFile, dir string) (string, error) {
	return m.DownloadRecordingFunc(ctx, recordingFile, dir)
}

type mockTranscriber struct {
	TranscribeFunc func(ctx context.Context, audioPath, languageHint string) (*adapter.Transcription, error)
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audioPath, languageHint string) (*adapter.Transcription, error) {
	return m.TranscribeFunc(ctx, audioPath, languageHint)
}

type mockAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, transcript, recordingContext string) (*adapter.CallAnalysis, error)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, transcript, recordingContext string) (*adapter.CallAnalysis, error) {
	return m.AnalyzeFunc(ctx, transcript, recordingContext)
}
func (m *mockAnalyzer) ModelName() string { return "mock-model" }

// memSummaryRepo is an in-memory CallSummaryRepository.
type memSummaryRepo struct {
	mu   sync.Mutex
	rows map[string]*model.CallSummary

	UpsertErr error
}

var _ repository.CallSummaryRepository = (*memSummaryRepo)(nil)

func newMemSummaryRepo() *memSummaryRepo {
	return &memSummaryRepo{rows: map[string]*model.CallSummary{}}
}

func (r *memSummaryRepo) Upsert(ctx context.Context, s *model.CallSummary) error {
	if r.UpsertErr != nil {
		return r.UpsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.ErrorMessage = ""
	r.rows[s.CallID] = &cp
	return nil
}

func (r *memSummaryRepo) SaveError(ctx context.Context, callID, recordingFile, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[callID] = &model.CallSummary{CallID: callID, RecordingFile: recordingFile, ErrorMessage: errMsg}
	return nil
}

func (r *memSummaryRepo) FindByCallID(ctx context.Context, callID string) (*model.CallSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[callID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memSummaryRepo) ExistsClean(ctx context.Context, callID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[callID]
	return ok && s.ErrorMessage == "", nil
}

func (r *memSummaryRepo) List(ctx context.Context, f repository.SummaryFilter) ([]*model.CallSummary, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CallSummary
	for _, s := range r.rows {
		cp := *s
		out = append(out, &cp)
	}
	return out, len(out), nil
}

// memCache is an in-memory ProcessedCache.
type memCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemCache() *memCache { return &memCache{seen: map[string]bool{}} }

func (c *memCache) IsProcessed(ctx context.Context, callID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[callID]
}
func (c *memCache) MarkProcessed(ctx context.Context, callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[callID] = true
}
func (c *memCache) Forget(ctx context.Context, callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, callID)
}

type mockEnqueuer struct {
	AddFunc      func(callID, recordingFile string, force bool) (worker.AddResult, error)
	AddBatchFunc func(entries []worker.BatchEntry) worker.BatchResult
}

func (m *mockEnqueuer) Add(callID, recordingFile string, force bool) (worker.AddResult, error) {
	return m.AddFunc(callID, recordingFile, force)
}
func (m *mockEnqueuer) AddBatch(entries []worker.BatchEntry) worker.BatchResult {
	return m.AddBatchFunc(entries)
}
