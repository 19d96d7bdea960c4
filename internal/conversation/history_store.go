package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const historyTTL = 24 * time.Hour

// historyMaxMessages is the hard cap on stored turns per user. Once the
// list grows past it, the oldest turns are dropped.
const historyMaxMessages = 20

// historyWindow is how many recent turns the reply model sees.
const historyWindow = 10

// HistoryStore keeps the per-user conversation history in Redis. History
// is presentation context for the reply model only; it is never consulted
// for profile invariants and is free to expire.
type HistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewHistoryStore(redisClient *redis.Client) *HistoryStore {
	if redisClient == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &HistoryStore{
		redis:  redisClient,
		tracer: otel.Tracer("ozzie.internal.conversation.history"),
	}
}

// Append records one user turn and the assistant's reply, trimming the
// stored list to the cap.
func (s *HistoryStore) Append(ctx context.Context, userID string, turns ...ChatMessage) error {
	ctx, span := s.tracer.Start(ctx, "conversation.history.append")
	defer span.End()

	key := historyKey(userID)
	pipe := s.redis.TxPipeline()
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("conversation: marshal history turn: %w", err)
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, -historyMaxMessages, -1)
	pipe.Expire(ctx, key, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: persist history: %w", err)
	}
	return nil
}

// Recent returns up to historyWindow turns, oldest first. A user with no
// stored history gets an empty slice, not an error.
func (s *HistoryStore) Recent(ctx context.Context, userID string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.history.recent")
	defer span.End()

	raw, err := s.redis.LRange(ctx, historyKey(userID), -historyWindow, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []ChatMessage{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}

	history := make([]ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		history = append(history, msg)
	}
	return history, nil
}

// Delete removes a user's history. Used by the admin purge path.
func (s *HistoryStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, historyKey(userID)).Err(); err != nil {
		return fmt.Errorf("conversation: delete history: %w", err)
	}
	return nil
}

func historyKey(userID string) string {
	return fmt.Sprintf("chat_history:%s", userID)
}
