package sched

import (
	"context"
	"strings"
	"time"

	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/adapter"
)

// Intake is the coordinator surface the background ingestors enqueue through.
type Intake interface {
	Enqueue(ctx context.Context, callID, recordingFile string, force bool) (string, int, error)
}

// cdrPageSize matches the PBX list API maximum.
const cdrPageSize = 100

func cdrToCallLog(cdr *adapter.CDR) *model.CallLog {
	direction := model.DirectionInternal
	switch strings.ToLower(cdr.CallType) {
	case "inbound":
		direction = model.DirectionInbound
	case "outbound":
		direction = model.DirectionOutbound
	}

	status := model.CallMissed
	switch strings.ToUpper(cdr.Disposition) {
	case "ANSWERED":
		status = model.CallAnswered
	case "NO ANSWER":
		status = model.CallNoAnswer
	case "BUSY":
		status = model.CallBusy
	case "FAILED", "CONGESTION":
		status = model.CallFailed
	}

	// Outbound calls originate from the extension; inbound land on it.
	extension := cdr.CallToNumber
	if direction == model.DirectionOutbound {
		extension = cdr.CallFromNumber
	}

	trunk := cdr.DstTrunk
	if trunk == "" {
		trunk = cdr.SrcTrunk
	}

	return &model.CallLog{
		CallID:        cdr.UID,
		CallerNumber:  cdr.CallFromNumber,
		CalleeNumber:  cdr.CallToNumber,
		CallerName:    cdr.CallFromName,
		CalleeName:    cdr.CallToName,
		Direction:     direction,
		Status:        status,
		Extension:     extension,
		Trunk:         trunk,
		StartTime:     parseCDRTime(cdr.Time),
		Duration:      cdr.Duration,
		RingDuration:  cdr.RingDuration,
		RecordingFile: cdr.RecordingFile,
	}
}

// parseCDRTime accepts the PBX's "18/10/2025 03:10:26 PM" format plus the
// ISO-ish variants some firmware versions emit.
func parseCDRTime(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	for _, layout := range []string{
		"02/01/2006 03:04:05 PM",
		"2006-01-02 15:04:05",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
