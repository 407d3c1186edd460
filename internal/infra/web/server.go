package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pbx-call-insights/internal/config"
	"pbx-call-insights/internal/infra/logging"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/repository"
	"pbx-call-insights/internal/infra/worker"
)

// Pipeline is the slice of the processing coordinator the HTTP boundary
// needs: intake for the API trigger and immediate processing for webhooks.
type Pipeline interface {
	Enqueue(ctx context.Context, callID, recordingFile string, force bool) (string, int, error)
	EnqueueBatch(ctx context.Context, entries []worker.BatchEntry, force bool) worker.BatchResult
	ProcessNow(ctx context.Context, callID, recordingFile string, force bool) error
}

// QueueController exposes the queue operations served over HTTP.
type QueueController interface {
	Snapshot() model.QueueSnapshot
	Clear() worker.ClearResult
}

type Server struct {
	pipeline  Pipeline
	queue     QueueController
	summaries repository.CallSummaryRepository
	callLogs  repository.CallLogRepository
	hub       *Hub
	auth      *AuthManager

	port            int
	apiKey          string
	webhookToken    string
	autoProcess     bool
	processInternal bool

	httpSrv *http.Server
	log     *zerolog.Logger
}

func NewServer(
	cfg config.WebConfig,
	processing config.ProcessingConfig,
	pipeline Pipeline,
	queue QueueController,
	summaries repository.CallSummaryRepository,
	callLogs repository.CallLogRepository,
	hub *Hub,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	slog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		pipeline:        pipeline,
		queue:           queue,
		summaries:       summaries,
		callLogs:        callLogs,
		hub:             hub,
		auth:            auth,
		port:            cfg.Port,
		apiKey:          cfg.APIKey,
		webhookToken:    cfg.WebhookToken,
		autoProcess:     processing.AutoProcess,
		processInternal: processing.ProcessInternal,
		log:             &slog,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Not behind the API key: the PBX presents the webhook token
		// instead, and browsers cannot set Authorization headers on
		// WebSocket upgrade requests.
		r.Post("/webhook/pbx", s.webhookHandler)
		r.Get("/ws", s.hub.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/auth/session", s.sessionHandler)
			r.Route("/transcription", func(r chi.Router) {
				r.Post("/process/{callID}", s.processHandler)
				r.Post("/batch", s.batchHandler)
				r.Get("/queue", s.queueStatusHandler)
				r.Delete("/queue", s.queueClearHandler)
				r.Get("/summary/{callID}", s.summaryHandler)
				r.Get("/summaries", s.summariesHandler)
			})
		})
	})

	return r
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.port).Msg("http server listening")
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// traceMiddleware tags every request with a trace ID so handler logs and
// downstream pipeline logs for the same request correlate.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware accepts either the static API key or a valid operator
// session token (bearer or cookie).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
				http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
				return
			}
			if tokenParts[1] == s.apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}

		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	})
}
