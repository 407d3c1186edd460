package model

import "time"

type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
	DirectionInternal CallDirection = "internal"
)

type CallStatus string

const (
	CallAnswered CallStatus = "answered"
	CallNoAnswer CallStatus = "no_answer"
	CallBusy     CallStatus = "busy"
	CallFailed   CallStatus = "failed"
	CallMissed   CallStatus = "missed"
)

// CallLog is one CDR row ingested from the PBX.
type CallLog struct {
	ID            string
	CallID        string
	CallerNumber  string
	CalleeNumber  string
	CallerName    string
	CalleeName    string
	Direction     CallDirection
	Status        CallStatus
	Extension     string
	Trunk         string
	StartTime     time.Time
	Duration      int
	RingDuration  int
	RecordingFile string
	CreatedAt     time.Time
}

// Processable reports whether a call is eligible for the recording
// pipeline: answered, carries a recording, and is not internal unless
// internal processing is enabled.
func (c *CallLog) Processable(includeInternal bool) bool {
	if c.Status != CallAnswered || c.RecordingFile == "" {
		return false
	}
	if c.Direction == DirectionInternal && !includeInternal {
		return false
	}
	return true
}
