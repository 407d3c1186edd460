package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/repository"
	"pbx-call-insights/internal/infra/worker"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionHandler mints an operator session token; the caller authenticated
// with the API key to reach it.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to mint session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// processHandler enqueues a single call for processing. The recording file
// is resolved from the ingested call log when available; otherwise the
// processor looks it up against the PBX.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	callID := chi.URLParam(r, "callID")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	recordingFile := ""
	if log, err := s.callLogs.FindByCallID(ctx, callID); err == nil {
		recordingFile = log.RecordingFile
	}

	status, position, err := s.pipeline.Enqueue(ctx, callID, recordingFile, force)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to enqueue call", http.StatusInternalServerError)
		return
	}

	response := struct {
		CallID        string `json:"call_id"`
		Status        string `json:"status"`
		QueuePosition int    `json:"queue_position"`
	}{
		CallID:        callID,
		Status:        status,
		QueuePosition: position,
	}
	writeJSON(w, http.StatusAccepted, response)
}

type batchRequest struct {
	CallIDs []string `json:"call_ids"`
	Force   bool     `json:"force"`
}

func (s *Server) batchHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.CallIDs) == 0 {
		http.Error(w, "call_ids is required", http.StatusBadRequest)
		return
	}

	entries := make([]worker.BatchEntry, 0, len(req.CallIDs))
	for _, id := range req.CallIDs {
		entries = append(entries, worker.BatchEntry{CallID: id, Force: req.Force})
	}

	result := s.pipeline.EnqueueBatch(ctx, entries, req.Force)
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) queueStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Snapshot())
}

func (s *Server) queueClearHandler(w http.ResponseWriter, r *http.Request) {
	result := s.queue.Clear()
	s.log.Info().Int("cleared", result.Cleared).Msg("processing queue cleared")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	callID := chi.URLParam(r, "callID")
	summary, err := s.summaries.FindByCallID(ctx, callID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to get summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// summariesHandler returns a paginated, filterable list of call summaries.
// It accepts 'call_type', 'sentiment', 'offset' and 'limit' query parameters.
func (s *Server) summariesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 50 // Default page size
	}
	if offset < 0 {
		offset = 0
	}

	filter := repository.SummaryFilter{
		CallType:  q.Get("call_type"),
		Sentiment: q.Get("sentiment"),
		Offset:    offset,
		Limit:     limit,
	}

	summaries, total, err := s.summaries.List(ctx, filter)
	if err != nil {
		http.Error(w, "Failed to list summaries", http.StatusInternalServerError)
		return
	}

	response := struct {
		Data   []*model.CallSummary `json:"data"`
		Total  int                  `json:"total"`
		Limit  int                  `json:"limit"`
		Offset int                  `json:"offset"`
	}{
		Data:   summaries,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	writeJSON(w, http.StatusOK, response)
}
