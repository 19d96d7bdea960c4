package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5

	queueEventProvider = "chat-queue"
)

// ReplyMessenger pushes a completed reply back to a live webchat session.
type ReplyMessenger interface {
	SendReply(ctx context.Context, sessionID string, resp *ChatResponse) error
}

type processedEventStore interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// Worker consumes chat jobs from the queue and invokes the chat service.
type Worker struct {
	chat      *ChatService
	queue     queueClient
	jobs      JobUpdater
	messenger ReplyMessenger
	processed processedEventStore
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	messenger        ReplyMessenger
	processed        processedEventStore
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithReplyMessenger wires live reply delivery for webchat sessions.
func WithReplyMessenger(messenger ReplyMessenger) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.messenger = messenger
	}
}

// WithProcessedEventsStore provides an idempotency store so redelivered
// queue messages are processed at most once.
func WithProcessedEventsStore(store processedEventStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

// NewWorker constructs a queue consumer around the chat service.
func NewWorker(chat *ChatService, queue queueClient, jobs JobUpdater, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if chat == nil {
		panic("conversation: chat service cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if jobs == nil {
		panic("conversation: job store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		chat:      chat,
		queue:     queue,
		jobs:      jobs,
		messenger: cfg.messenger,
		processed: cfg.processed,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("chat worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("chat worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive chat jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode chat job", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if payload.Kind != jobTypeChat {
		w.logger.Error("unknown chat job type", "kind", payload.Kind, "job_id", payload.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if w.processed != nil {
		fresh, err := w.processed.MarkProcessed(ctx, queueEventProvider, payload.ID)
		if err != nil {
			w.logger.Warn("idempotency check failed, processing anyway",
				"error", err, "job_id", payload.ID)
		} else if !fresh {
			w.logger.Info("skipping redelivered chat job", "job_id", payload.ID)
			w.deleteMessage(context.Background(), msg.ReceiptHandle)
			return
		}
	}

	w.logger.Debug("worker processing chat job",
		"job_id", payload.ID, "user_id", payload.Chat.UserID)

	resp, err := w.chat.ProcessTurn(ctx, payload.Chat)
	if err != nil {
		w.logger.Error("chat job failed", "error", err, "job_id", payload.ID)
		if payload.TrackStatus {
			if storeErr := w.jobs.MarkFailed(ctx, payload.ID, err.Error()); storeErr != nil {
				w.logger.Error("failed to update job status", "error", storeErr, "job_id", payload.ID)
			}
		}
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if payload.TrackStatus {
		if storeErr := w.jobs.MarkCompleted(ctx, payload.ID, resp); storeErr != nil {
			w.logger.Error("failed to update job status", "error", storeErr, "job_id", payload.ID)
		}
	}

	if payload.SessionID != "" && w.messenger != nil {
		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if sendErr := w.messenger.SendReply(sendCtx, payload.SessionID, resp); sendErr != nil {
			w.logger.Warn("failed to push reply to webchat session",
				"error", sendErr, "session_id", payload.SessionID, "job_id", payload.ID)
		}
		cancel()
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
	w.logger.Debug("chat job processed", "job_id", payload.ID)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete chat job", "error", err)
	}
}
