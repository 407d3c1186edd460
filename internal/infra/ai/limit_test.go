//go:build !integration

package ai

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pbx-call-insights/internal/domain/ports/adapter"
)

type mockAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, transcript, recordingContext string) (*adapter.CallAnalysis, error)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, transcript, recordingContext string) (*adapter.CallAnalysis, error) {
	return m.AnalyzeFunc(ctx, transcript, recordingContext)
}
func (m *mockAnalyzer) ModelName() string { return "mock" }

func TestLimitedAnalyzerCapsConcurrency(t *testing.T) {
	var inFlight, peak int32
	inner := &mockAnalyzer{
		AnalyzeFunc: func(ctx context.Context, _, _ string) (*adapter.CallAnalysis, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return &adapter.CallAnalysis{}, nil
		},
	}

	limited := NewLimitedAnalyzer(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := limited.Analyze(context.Background(), "t", ""); err != nil {
				t.Errorf("Analyze: %v", err)
			}
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestLimitedAnalyzerContextCancelWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	inner := &mockAnalyzer{
		AnalyzeFunc: func(ctx context.Context, _, _ string) (*adapter.CallAnalysis, error) {
			<-release
			return &adapter.CallAnalysis{}, nil
		},
	}
	limited := NewLimitedAnalyzer(inner, 1)

	// Occupy the single slot.
	go func() { _, _ = limited.Analyze(context.Background(), "t", "") }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limited.Analyze(ctx, "t", ""); err == nil {
		t.Error("expected context error while waiting for a slot")
	}
	close(release)
}

func TestNoLimitPassthrough(t *testing.T) {
	inner := &mockAnalyzer{}
	if got := NewLimitedAnalyzer(inner, 0); got != adapter.Analyzer(inner) {
		t.Error("maxConcurrent <= 0 should return inner unchanged")
	}
}
