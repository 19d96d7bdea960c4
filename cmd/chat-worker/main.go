// Command chat-worker drains the SQS chat queue and runs the full chat
// pipeline for each job. It is deployed alongside the API server when the
// in-process memory queue is disabled.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/ozlistings/oz-ai-platform/cmd/mainconfig"
	"github.com/ozlistings/oz-ai-platform/internal/app/bootstrap"
	appconfig "github.com/ozlistings/oz-ai-platform/internal/config"
	"github.com/ozlistings/oz-ai-platform/internal/conversation"
	"github.com/ozlistings/oz-ai-platform/internal/events"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chat worker", "env", cfg.Env, "workers", cfg.WorkerCount)

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
		AWSConfig:   &awsCfg,
	}, logger)
	if err != nil {
		logger.Error("failed to build chat service", "error", err)
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	queue := conversation.NewSQSQueue(sqsClient, cfg.ChatQueueURL)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	jobStore := conversation.NewJobStore(dynamoClient, cfg.ChatJobsTable, logger)

	opts := []conversation.WorkerOption{
		conversation.WithWorkerCount(cfg.WorkerCount),
	}
	if pool != nil {
		opts = append(opts, conversation.WithProcessedEventsStore(events.NewProcessedStore(pool)))
	}

	worker := conversation.NewWorker(chatService, queue, jobStore, logger, opts...)
	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down chat worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("chat worker stopped")
	case <-doneCtx.Done():
		logger.Error("chat worker shutdown timed out", "error", doneCtx.Err())
	}
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
