package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/model"
)

// flexInt tolerates the PBX sending numeric fields as either JSON numbers
// or quoted strings; junk decodes to zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// pbxEvent is the push payload the PBX delivers on call events. Field names
// follow the wire format; alternates cover firmware variations.
type pbxEvent struct {
	Event       string  `json:"event"`
	Action      string  `json:"action"`
	CallID      string  `json:"callid"`
	Src         string  `json:"src"`
	CallerID    string  `json:"callerid"`
	Dst         string  `json:"dst"`
	Destination string  `json:"destination"`
	CallerName  string  `json:"callername"`
	Outbound    string  `json:"outbound"`
	Internal    string  `json:"internal"`
	Disposition string  `json:"disposition"`
	Ext         string  `json:"ext"`
	ExtID       string  `json:"extid"`
	Trunk       string  `json:"trunk"`
	Start       string  `json:"start"`
	Duration    flexInt `json:"duration"`
	RingTime    flexInt `json:"ringtime"`
	Recording   string  `json:"recording"`
}

func (e *pbxEvent) eventType() string {
	if e.Event != "" {
		return e.Event
	}
	return e.Action
}

// webhookHandler ingests push events from the PBX. A NewCdr event becomes a
// call log row and, when auto-processing is on, an immediate processing
// trigger for eligible calls.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.webhookToken != "" {
		provided := r.URL.Query().Get("token")
		if provided == "" {
			provided = r.Header.Get("X-Webhook-Token")
		}
		if provided != s.webhookToken {
			s.log.Warn().Msg("webhook rejected: invalid token")
			http.Error(w, "Invalid webhook token", http.StatusUnauthorized)
			return
		}
	}

	var event pbxEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if event.eventType() != "NewCdr" {
		// Presence/ringing events carry nothing the pipeline uses.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if event.CallID == "" {
		http.Error(w, "callid is required", http.StatusBadRequest)
		return
	}

	callLog := eventToCallLog(&event)
	if err := s.callLogs.Save(ctx, callLog); err != nil {
		if err == domain.ErrAlreadyExists {
			writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
			return
		}
		s.log.Error().Err(err).Str("call_id", event.CallID).Msg("failed to save webhook call log")
		http.Error(w, "Failed to record call", http.StatusInternalServerError)
		return
	}
	s.log.Info().Str("call_id", event.CallID).Msg("call log created from webhook")

	if s.autoProcess && callLog.Processable(s.processInternal) {
		// Processing runs the full download/transcribe/analyze pipeline;
		// the webhook response must not wait for it.
		go func(callID, recordingFile string) {
			if err := s.pipeline.ProcessNow(context.Background(), callID, recordingFile, false); err != nil {
				s.log.Error().Err(err).Str("call_id", callID).Msg("webhook-triggered processing failed")
			}
		}(callLog.CallID, callLog.RecordingFile)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func eventToCallLog(e *pbxEvent) *model.CallLog {
	direction := model.DirectionInbound
	switch {
	case e.Outbound == "yes":
		direction = model.DirectionOutbound
	case e.Internal == "yes":
		direction = model.DirectionInternal
	}

	status := model.CallMissed
	switch strings.ToUpper(e.Disposition) {
	case "ANSWERED":
		status = model.CallAnswered
	case "NO ANSWER":
		status = model.CallNoAnswer
	case "BUSY":
		status = model.CallBusy
	case "FAILED":
		status = model.CallFailed
	}

	caller := e.Src
	if caller == "" {
		caller = e.CallerID
	}
	callee := e.Dst
	if callee == "" {
		callee = e.Destination
	}
	ext := e.Ext
	if ext == "" {
		ext = e.ExtID
	}

	return &model.CallLog{
		CallID:        e.CallID,
		CallerNumber:  caller,
		CalleeNumber:  callee,
		CallerName:    e.CallerName,
		Direction:     direction,
		Status:        status,
		Extension:     ext,
		Trunk:         e.Trunk,
		StartTime:     parseEventTime(e.Start),
		Duration:      int(e.Duration),
		RingDuration:  int(e.RingTime),
		RecordingFile: e.Recording,
	}
}

// parseEventTime accepts the PBX's "2006-01-02 15:04:05" format and RFC3339;
// anything else falls back to the receive time.
func parseEventTime(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
