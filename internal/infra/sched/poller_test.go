//go:build !integration

package sched

import (
	"context"
	"testing"

	"pbx-call-insights/internal/config"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/adapter"
)

func testPollerConfig() (config.PBXConfig, config.ProcessingConfig) {
	return config.PBXConfig{PollMaxPages: 1},
		config.ProcessingConfig{AutoProcess: true, ProcessInternal: false}
}

func TestPollOnceEnqueuesEligibleCalls(t *testing.T) {
	pbx := &mockPBXClient{
		GetCDRListFunc: func(ctx context.Context, page, pageSize int) ([]adapter.CDR, error) {
			return []adapter.CDR{
				{UID: "call-1", CallType: "Inbound", Disposition: "ANSWERED",
					CallFromNumber: "09120000001", CallToNumber: "201",
					Time: "18/10/2025 03:10:26 PM", Duration: 120,
					RecordingFile: "20251018-201-09120000001.wav"},
				{UID: "call-2", CallType: "Internal", Disposition: "ANSWERED",
					RecordingFile: "internal.wav"},
				{UID: "call-3", CallType: "Inbound", Disposition: "NO ANSWER"},
				{UID: "call-4", CallType: "Outbound", Disposition: "ANSWERED"},
				{UID: ""},
			}, nil
		},
	}
	repo := newMemCallLogRepo()
	intake := &mockIntake{}
	pbxCfg, procCfg := testPollerConfig()
	p := NewCDRPoller(pbx, repo, intake, pbxCfg, procCfg, newTestLogger())

	enqueued, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1", enqueued)
	}
	if calls := intake.calls(); len(calls) != 1 || calls[0] != "call-1" {
		t.Fatalf("intake calls = %v, want [call-1]", calls)
	}

	// Every CDR with a UID becomes a call log regardless of eligibility.
	for _, id := range []string{"call-1", "call-2", "call-3", "call-4"} {
		if _, err := repo.FindByCallID(context.Background(), id); err != nil {
			t.Fatalf("call log %s not saved: %v", id, err)
		}
	}

	saved, _ := repo.FindByCallID(context.Background(), "call-1")
	if saved.Direction != model.DirectionInbound || saved.Status != model.CallAnswered {
		t.Fatalf("saved log = %+v", saved)
	}
	if saved.Extension != "201" {
		t.Fatalf("extension = %q, want callee for inbound", saved.Extension)
	}
	if saved.StartTime.Year() != 2025 || saved.StartTime.Month() != 10 || saved.StartTime.Day() != 18 {
		t.Fatalf("start time = %v, want parsed PBX timestamp", saved.StartTime)
	}
}

func TestPollOnceSkipsSeenCalls(t *testing.T) {
	pbx := &mockPBXClient{
		GetCDRListFunc: func(ctx context.Context, page, pageSize int) ([]adapter.CDR, error) {
			return []adapter.CDR{
				{UID: "call-1", CallType: "Inbound", Disposition: "ANSWERED", RecordingFile: "r.wav"},
			}, nil
		},
	}
	repo := newMemCallLogRepo()
	intake := &mockIntake{}
	pbxCfg, procCfg := testPollerConfig()
	p := NewCDRPoller(pbx, repo, intake, pbxCfg, procCfg, newTestLogger())

	if _, err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	enqueued, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if enqueued != 0 {
		t.Fatalf("second poll enqueued = %d, want 0", enqueued)
	}
	if calls := intake.calls(); len(calls) != 1 {
		t.Fatalf("intake calls = %v, want a single submission", calls)
	}
}

func TestPollOnceRespectsPageCap(t *testing.T) {
	var pagesAsked []int
	fullPage := make([]adapter.CDR, cdrPageSize)
	pbx := &mockPBXClient{
		GetCDRListFunc: func(ctx context.Context, page, pageSize int) ([]adapter.CDR, error) {
			pagesAsked = append(pagesAsked, page)
			return fullPage, nil // always full: only the cap stops paging
		},
	}
	pbxCfg, procCfg := testPollerConfig()
	pbxCfg.PollMaxPages = 3
	p := NewCDRPoller(pbx, newMemCallLogRepo(), &mockIntake{}, pbxCfg, procCfg, newTestLogger())

	if _, err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if len(pagesAsked) != 3 {
		t.Fatalf("pages asked = %v, want exactly 3", pagesAsked)
	}
}

func TestPollerHonorsInternalProcessingFlag(t *testing.T) {
	pbx := &mockPBXClient{
		GetCDRListFunc: func(ctx context.Context, page, pageSize int) ([]adapter.CDR, error) {
			return []adapter.CDR{
				{UID: "int-1", CallType: "Internal", Disposition: "ANSWERED", RecordingFile: "r.wav"},
			}, nil
		},
	}
	intake := &mockIntake{}
	pbxCfg, procCfg := testPollerConfig()
	procCfg.ProcessInternal = true
	p := NewCDRPoller(pbx, newMemCallLogRepo(), intake, pbxCfg, procCfg, newTestLogger())

	enqueued, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if enqueued != 1 {
		t.Fatalf("enqueued = %d, want internal call accepted", enqueued)
	}
}
