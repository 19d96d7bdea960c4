package conversation

import (
	"context"
	"fmt"

	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// Publisher enqueues chat jobs for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueChat publishes a chat turn for background processing and returns
// the job ID used to track its status.
func (p *Publisher) EnqueueChat(ctx context.Context, jobID string, req ChatRequest, opts ...PublishOption) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	payload := queuePayload{
		ID:          jobID,
		Kind:        jobTypeChat,
		Chat:        req,
		TrackStatus: true,
	}
	for _, opt := range opts {
		opt(&payload)
	}

	payload, body, err := encodePayload(payload)
	if err != nil {
		return "", err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("chat job enqueued",
		"job_id", payload.ID, "user_id", req.UserID, "session_id", payload.SessionID)
	return payload.ID, nil
}
