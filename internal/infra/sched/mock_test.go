//go:build !integration

package sched

import (
	"context"
	"sync"

	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(nil)
	return &l
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
	if m.GetRecordingListFunc != nil {
		return m.GetRecordingListFunc(ctx, page, pageSize)
	}
	return nil, nil
}

func (m *mockPBXClient) DownloadRecording(ctx context.Context, recordingFile, dir string) (string, error) {
	if m.DownloadRecordingFunc != nil {
		return m.DownloadRecordingFunc(ctx, recordingFile, dir)
	}
	return "", nil
}

type memCallLogRepo struct {
	mu   sync.Mutex
	logs map[string]*model.CallLog
}

func newMemCallLogRepo() *memCallLogRepo {
	return &memCallLogRepo{logs: make(map[string]*model.CallLog)}
}

func (m *memCallLogRepo) Save(ctx context.Context, log *model.CallLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.logs[log.CallID]; ok {
		return domain.ErrAlreadyExists
	}
	m.logs[log.CallID] = log
	return nil
}

func (m *memCallLogRepo) FindByCallID(ctx context.Context, callID string) (*model.CallLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.logs[callID]; ok {
		return l, nil
	}
	return nil, domain.ErrNotFound
}

type mockIntake struct {
	mu       sync.Mutex
	enqueued []string
	status   string
	err      error
}

func (m *mockIntake) Enqueue(ctx context.Context, callID, recordingFile string, force bool) (string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", 0, m.err
	}
	m.enqueued = append(m.enqueued, callID)
	status := m.status
	if status == "" {
		status = "queued"
	}
	return status, len(m.enqueued), nil
}

func (m *mockIntake) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.enqueued...)
}
