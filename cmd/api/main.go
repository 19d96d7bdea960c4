package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ozlistings/oz-ai-platform/cmd/mainconfig"
	"github.com/ozlistings/oz-ai-platform/internal/api/router"
	"github.com/ozlistings/oz-ai-platform/internal/app/bootstrap"
	appconfig "github.com/ozlistings/oz-ai-platform/internal/config"
	"github.com/ozlistings/oz-ai-platform/internal/conversation"
	"github.com/ozlistings/oz-ai-platform/internal/events"
	"github.com/ozlistings/oz-ai-platform/internal/funnel"
	"github.com/ozlistings/oz-ai-platform/internal/http/handlers"
	"github.com/ozlistings/oz-ai-platform/internal/observability/metrics"
	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/internal/webchat"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting oz-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	sqlDB := connectSQLDB(cfg.DatabaseURL, logger)
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	metricsHandler, chatMetrics := setupChatMetrics()

	profiles := bootstrap.BuildProfileService(pool, cfg, logger)
	history := bootstrap.BuildHistoryStore(redisClient)
	transcripts := bootstrap.BuildTranscriptStore(sqlDB, cfg, logger)
	notifier := bootstrap.BuildTeamNotifier(cfg, sesv2.NewFromConfig(awsCfg), logger)
	archiver := bootstrap.BuildArchiver(s3.NewFromConfig(awsCfg), cfg, logger)

	chatService, err := bootstrap.BuildChatService(ctx, cfg, bootstrap.ChatDeps{
		Profiles:    profiles,
		History:     history,
		Transcripts: transcripts,
		Notifier:    notifier,
		Archiver:    archiver,
		Metrics:     chatMetrics,
		AWSConfig:   &awsCfg,
	}, logger)
	if err != nil {
		logger.Error("failed to build chat service", "error", err)
		os.Exit(1)
	}

	publisher, jobRecorder, jobUpdater, memoryQueue := setupQueue(cfg, awsCfg, logger)

	webchatHandler := webchat.NewHandler(publisher, transcripts, logger)

	// With the in-process memory queue the worker runs inside the API
	// binary; otherwise a separate worker binary drains SQS.
	inlineWorker := setupInlineWorker(ctx, cfg, logger, chatService, memoryQueue, jobUpdater, webchatHandler, pool)

	routerCfg := &router.Config{
		Logger:           logger,
		ChatHandler:      conversation.NewHandler(chatService, logger),
		AsyncChatHandler: conversation.NewAsyncHandler(publisher, jobRecorder, logger),
		ProfileHandler:   profile.NewHandler(profiles, logger),
		WebchatHandler:   webchatHandler,
		AdminAuthSecret:  cfg.AdminJWTSecret,
		FunnelHandler:    setupFunnelHandler(pool, logger),
		AdminUsers:       setupAdminUsers(pool, transcripts, history, logger),
		MetricsHandler:   metricsHandler,
		ChatRateLimit:    float64(cfg.ChatRateLimitPerMin) / 60.0,
		ChatRateBurst:    cfg.ChatRateLimitBurst,
	}
	if origins := strings.TrimSpace(cfg.CORSAllowedOrigins); origins != "" {
		routerCfg.CORSAllowedOrigins = strings.Split(origins, ",")
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if inlineWorker != nil {
		waitForInlineWorker(inlineWorker, logger)
	}

	logger.Info("server stopped")
}

// setupChatMetrics registers chat collectors on a dedicated registry and
// returns the scrape handler.
func setupChatMetrics() (http.Handler, *metrics.ChatMetrics) {
	registry := prometheus.NewRegistry()
	chatMetrics := metrics.NewChatMetrics(registry)
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return handler, chatMetrics
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	return pool
}

func connectSQLDB(databaseURL string, logger *logging.Logger) *sql.DB {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		return nil
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db
}

// setupQueue selects between the in-process memory queue and SQS. The
// memory queue is returned so the caller can attach an inline worker;
// job tracking rides on DynamoDB and is SQS-only.
func setupQueue(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*conversation.Publisher, conversation.JobRecorder, conversation.JobUpdater, *conversation.MemoryQueue) {
	if cfg.UseMemoryQueue {
		memoryQueue := conversation.NewMemoryQueue(64)
		publisher := conversation.NewPublisher(memoryQueue, logger)
		logger.Info("chat queue: in-process memory queue")
		return publisher, nil, nil, memoryQueue
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	queue := conversation.NewSQSQueue(sqsClient, cfg.ChatQueueURL)
	publisher := conversation.NewPublisher(queue, logger)

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	jobStore := conversation.NewJobStore(dynamoClient, cfg.ChatJobsTable, logger)

	logger.Info("chat queue: sqs", "queue_url", cfg.ChatQueueURL, "jobs_table", cfg.ChatJobsTable)
	return publisher, jobStore, jobStore, nil
}

func setupInlineWorker(
	ctx context.Context,
	cfg *appconfig.Config,
	logger *logging.Logger,
	chat *conversation.ChatService,
	memoryQueue *conversation.MemoryQueue,
	jobs conversation.JobUpdater,
	webchatHandler *webchat.Handler,
	pool *pgxpool.Pool,
) *conversation.Worker {
	if memoryQueue == nil {
		return nil
	}

	opts := []conversation.WorkerOption{
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithReplyMessenger(webchat.NewReplyMessenger(webchatHandler, logger)),
	}
	if pool != nil {
		opts = append(opts, conversation.WithProcessedEventsStore(events.NewProcessedStore(pool)))
	}

	worker := conversation.NewWorker(chat, memoryQueue, jobs, logger, opts...)
	worker.Start(ctx)
	logger.Info("inline chat worker started", "workers", cfg.WorkerCount)
	return worker
}

func setupFunnelHandler(pool *pgxpool.Pool, logger *logging.Logger) *funnel.Handler {
	if pool == nil {
		return funnel.NewHandler(nil, prometheus.DefaultGatherer, logger)
	}
	return funnel.NewHandler(funnel.NewRepository(pool), prometheus.DefaultGatherer, logger)
}

func setupAdminUsers(
	pool *pgxpool.Pool,
	transcripts *conversation.TranscriptStore,
	history *conversation.HistoryStore,
	logger *logging.Logger,
) *handlers.AdminUsersHandler {
	var deleter profile.Deleter
	if pool != nil {
		deleter = profile.NewPostgresRepository(pool)
	}
	if history != nil {
		return handlers.NewAdminUsersHandler(deleter, transcripts, history, logger)
	}
	return handlers.NewAdminUsersHandler(deleter, transcripts, nil, logger)
}

func waitForInlineWorker(worker *conversation.Worker, logger *logging.Logger) {
	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("inline chat worker stopped")
	case <-doneCtx.Done():
		logger.Error("inline chat worker shutdown timed out", "error", doneCtx.Err())
	}
}
