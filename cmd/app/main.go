package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pbx-call-insights/internal/config"
	"pbx-call-insights/internal/domain/model"
	"pbx-call-insights/internal/domain/ports/adapter"
	"pbx-call-insights/internal/infra/ai"
	pg "pbx-call-insights/internal/infra/db/postgres"
	"pbx-call-insights/internal/infra/logging"
	"pbx-call-insights/internal/infra/metrics"
	"pbx-call-insights/internal/infra/notify"
	"pbx-call-insights/internal/infra/pbx"
	red "pbx-call-insights/internal/infra/redis"
	"pbx-call-insights/internal/infra/sched"
	"pbx-call-insights/internal/infra/web"
	"pbx-call-insights/internal/infra/worker"
	"pbx-call-insights/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, lax cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	summaryRepo := pg.NewCallSummaryRepo(pool)
	callLogRepo := pg.NewCallLogRepo(pool)

	// ---- Redis (processed-call cache; optional) ----
	var cache *red.ProcessedCache
	if redisClient, err := red.NewClient(ctx, &cfg.Redis); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, processed-call cache falls back to the database")
		cache = red.NewProcessedCache(nil, cfg.Processing.ProcessedCacheTTL, logger)
	} else {
		defer redisClient.Close()
		cache = red.NewProcessedCache(redisClient, cfg.Processing.ProcessedCacheTTL, logger)
	}

	// ---- PBX client ----
	pbxClient := pbx.NewClient(cfg.PBX, logger)

	// ---- ASR + analyzer ----
	transcriber, err := ai.NewOpenAITranscriber(cfg.ASR, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("transcriber")
	}
	var analyzer adapter.Analyzer
	switch cfg.LLM.Provider {
	case "gemini":
		analyzer, err = ai.NewGeminiAnalyzer(ctx, cfg.LLM)
	default:
		analyzer, err = ai.NewOpenAIAnalyzer(cfg.LLM, logger)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("analyzer")
	}
	logger.Info().Str("provider", cfg.LLM.Provider).Str("model", analyzer.ModelName()).Msg("analyzer configured")

	limitedTranscriber := ai.NewLimitedTranscriber(transcriber, cfg.LLM.ConcurrentLimit)
	limitedAnalyzer := ai.NewLimitedAnalyzer(analyzer, cfg.LLM.ConcurrentLimit)

	// ---- Processing pipeline ----
	tracker := worker.NewTracker()
	processor := usecase.NewProcessor(
		pbxClient,
		limitedTranscriber,
		limitedAnalyzer,
		summaryRepo,
		cache,
		cfg.Processing.TempDir,
		cfg.Processing.RecordingPages,
		logger,
	)

	var notifier *notify.TelegramNotifier
	if cfg.Notify.TelegramToken != "" {
		notifier, err = notify.NewTelegramNotifier(cfg.Notify, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier disabled")
			notifier = nil
		}
	}

	hub := web.NewHub(logger)

	// The queue owns retry scheduling; the process function owns the
	// cross-trigger exclusion handshake and stage reporting.
	var queue *worker.Queue
	processFn := func(ctx context.Context, callID, recordingFile string, force bool) error {
		if !tracker.TryAcquire(callID) {
			logger.Info().Str("call_id", callID).Msg("call picked up by another trigger, skipping")
			return nil
		}
		defer tracker.Release(callID)
		return processor.Process(ctx, callID, recordingFile, force, func(stage string) {
			queue.UpdateStage(callID, stage)
		})
	}
	broadcastFn := func(snapshot model.QueueSnapshot) {
		hub.BroadcastJSON(snapshot)
	}
	opts := []worker.Option{worker.WithMaxRetries(cfg.Processing.QueueMaxRetries)}
	if notifier != nil {
		opts = append(opts, worker.WithFailedHook(func(item model.QueueItem) {
			_ = notifier.NotifyFailure(context.Background(), item.CallID, item.ErrorMessage, item.Attempt)
		}))
	}
	queue = worker.NewQueue(processFn, broadcastFn, logger, opts...)
	queue.Start(ctx)

	coordinator := usecase.NewCoordinator(queue, tracker, processor, summaryRepo, cache, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Web.JWTSecret, !cfg.Runtime.Dev, "", cfg.Web.SessionTTL)
	server := web.NewServer(cfg.Web, cfg.Processing, coordinator, queue, summaryRepo, callLogRepo, hub, auth, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Background ingestion ----
	poller := sched.NewCDRPoller(pbxClient, callLogRepo, coordinator, cfg.PBX, cfg.Processing, logger)
	go poller.Run(ctx)
	syncWorker := sched.NewSyncWorker(pbxClient, callLogRepo, coordinator, cfg.PBX, cfg.Processing, logger)
	go syncWorker.Run(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	queue.Stop()
}
