//go:build !integration

package web

import (
	"context"
	"sync"

	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/repository"
	"pbx-call-insights/internal/infra/worker"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(nil)
	return &l
}

// --- Pipeline / queue mocks ---

type mockPipeline struct {
	EnqueueFunc      func(ctx context.Context, callID, recordingFile string, force bool) (string, int, error)
	EnqueueBatchFunc func(ctx context.Context, entries []worker.BatchEntry, force bool) worker.BatchResult
	ProcessNowFunc   func(ctx context.Context, callID, recordingFile string, force bool) error
}

func (m *mockPipeline) Enqueue(ctx context.Context, callID, recordingFile string, force bool) (string, int, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, callID, recordingFile, force)
	}
	return "queued", 1, nil
}

func (m *mockPipeline) EnqueueBatch(ctx context.Context, entries []worker.BatchEntry, force bool) worker.BatchResult {
	if m.EnqueueBatchFunc != nil {
		return m.EnqueueBatchFunc(ctx, entries, force)
	}
	return worker.BatchResult{Added: []string{}, Skipped: []string{}}
}

func (m *mockPipeline) ProcessNow(ctx context.Context, callID, recordingFile string, force bool) error {
	if m.ProcessNowFunc != nil {
		return m.ProcessNowFunc(ctx, callID, recordingFile, force)
	}
	return nil
}

type mockQueue struct {
	SnapshotFunc func() model.QueueSnapshot
	ClearFunc    func() worker.ClearResult
}

func (m *mockQueue) Snapshot() model.QueueSnapshot {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc()
	}
	return model.QueueSnapshot{}
}

func (m *mockQueue) Clear() worker.ClearResult {
	if m.ClearFunc != nil {
		return m.ClearFunc()
	}
	return worker.ClearResult{CallIDs: []string{}}
}

// --- Mock repositories (ports) ---

type mockSummaryRepo struct {
	repository.CallSummaryRepository // Embed interface for forward compatibility
	mu                               sync.Mutex
	summaries                        []*model.CallSummary
	ListError                        error
	FindError                        error
}

func (m *mockSummaryRepo) FindByCallID(ctx context.Context, callID string) (*model.CallSummary, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.summaries {
		if s.CallID == callID {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockSummaryRepo) List(ctx context.Context, filter repository.SummaryFilter) ([]*model.CallSummary, int, error) {
	if m.ListError != nil {
		return nil, 0, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []*model.CallSummary{}
	for _, s := range m.summaries {
		if filter.CallType != "" && s.CallType != filter.CallType {
			continue
		}
		if filter.Sentiment != "" && s.Sentiment != filter.Sentiment {
			continue
		}
		matched = append(matched, s)
	}
	total := len(matched)
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	if filter.Offset >= total {
		return []*model.CallSummary{}, total, nil
	}
	return matched[filter.Offset:end], total, nil
}

type mockCallLogRepo struct {
	repository.CallLogRepository // Embed interface
	mu                           sync.Mutex
	logs                         []*model.CallLog
	SaveError                    error
}

func (m *mockCallLogRepo) Save(ctx context.Context, log *model.CallLog) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.CallID == log.CallID {
			return domain.ErrAlreadyExists
		}
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockCallLogRepo) FindByCallID(ctx context.Context, callID string) (*model.CallLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.CallID == callID {
			return l, nil
		}
	}
	return nil, domain.ErrNotFound
}
