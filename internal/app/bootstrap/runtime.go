// Package bootstrap wires configuration into runtime services shared by
// the API server and the queue worker.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/ozlistings/oz-ai-platform/internal/config"
	"github.com/ozlistings/oz-ai-platform/internal/conversation"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildHistoryStore returns the Redis-backed short-term chat history, or
// nil when Redis is unavailable.
func BuildHistoryStore(redisClient *redis.Client) *conversation.HistoryStore {
	if redisClient == nil {
		return nil
	}
	return conversation.NewHistoryStore(redisClient)
}

// BuildTranscriptStore wires optional long-term transcript persistence
// with per-user exclusions.
func BuildTranscriptStore(sqlDB *sql.DB, cfg *appconfig.Config, logger *logging.Logger) *conversation.TranscriptStore {
	if cfg == nil || !cfg.PersistChatTranscripts || sqlDB == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	excludeUsers := parseUserExclusions(cfg.TranscriptExcludeUsers)
	if len(excludeUsers) > 0 {
		store := conversation.NewTranscriptStoreWithExclusions(sqlDB, excludeUsers)
		logger.Info("transcript persistence enabled with exclusions", "excluded_count", len(excludeUsers))
		return store
	}

	logger.Info("transcript persistence enabled")
	return conversation.NewTranscriptStore(sqlDB)
}

func parseUserExclusions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var excludeUsers []string
	for _, u := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			excludeUsers = append(excludeUsers, trimmed)
		}
	}
	return excludeUsers
}
