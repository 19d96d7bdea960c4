package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const jobTypeChat jobType = "chat"

type queuePayload struct {
	ID          string      `json:"id"`
	Kind        jobType     `json:"kind"`
	Chat        ChatRequest `json:"chat"`
	SessionID   string      `json:"session_id,omitempty"`
	TrackStatus bool        `json:"track_status"`
}

// PublishOption tweaks an enqueued job.
type PublishOption func(*queuePayload)

// WithoutJobTracking disables job status persistence for fire-and-forget work.
func WithoutJobTracking() PublishOption {
	return func(p *queuePayload) {
		p.TrackStatus = false
	}
}

// WithSessionID tags the job with a webchat session so the worker can push
// the reply back over the open socket.
func WithSessionID(sessionID string) PublishOption {
	return func(p *queuePayload) {
		p.SessionID = sessionID
	}
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
