package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ozlistings/oz-ai-platform/internal/archive"
	appconfig "github.com/ozlistings/oz-ai-platform/internal/config"
	"github.com/ozlistings/oz-ai-platform/internal/conversation"
	"github.com/ozlistings/oz-ai-platform/internal/notify"
	"github.com/ozlistings/oz-ai-platform/internal/observability/metrics"
	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// BuildProfileService wires profile extraction storage. With a nil pool
// the in-memory repository is used, which keeps local development working
// without Postgres.
func BuildProfileService(pool *pgxpool.Pool, cfg *appconfig.Config, logger *logging.Logger) *profile.Service {
	if logger == nil {
		logger = logging.Default()
	}

	var repo profile.Repository
	if pool != nil {
		repo = profile.NewPostgresRepository(pool)
		logger.Info("profile store: postgres")
	} else {
		repo = profile.NewInMemoryRepository()
		logger.Warn("profile store: in-memory (no DATABASE_URL configured)")
	}

	opts := []profile.ServiceOption{profile.WithLogger(logger)}
	if cfg != nil {
		if cfg.SchedulingLinkURL != "" {
			opts = append(opts, profile.WithSchedulingLink(cfg.SchedulingLinkURL))
		}
		if cfg.ProfileSaveRetries > 0 {
			opts = append(opts, profile.WithSaveRetries(cfg.ProfileSaveRetries))
		}
	}
	return profile.NewService(repo, opts...)
}

// ChatDeps carries optional dependencies for the chat service.
type ChatDeps struct {
	Profiles    *profile.Service
	History     *conversation.HistoryStore
	Transcripts *conversation.TranscriptStore
	Notifier    *notify.Service
	Archiver    *archive.Service
	Metrics     *metrics.ChatMetrics
	// AWSConfig enables the Bedrock reply fallback when BedrockModelID is
	// configured.
	AWSConfig *aws.Config
}

// BuildChatService wires the full chat turn pipeline: Gemini extraction,
// Gemini reply generation with optional Bedrock fallback, history, and
// side effects.
func BuildChatService(ctx context.Context, cfg *appconfig.Config, deps ChatDeps, logger *logging.Logger) (*conversation.ChatService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, fmt.Errorf("bootstrap: GEMINI_API_KEY is required for the chat service")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("bootstrap: profile service is required")
	}
	if deps.History == nil {
		return nil, fmt.Errorf("bootstrap: chat history store is required (redis)")
	}

	extractor, err := conversation.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiExtractorModel)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build extractor: %w", err)
	}

	geminiReply, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiReplyModel)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build reply client: %w", err)
	}

	var replyLLM conversation.LLMClient = geminiReply
	opts := []conversation.ChatServiceOption{conversation.WithChatLogger(logger)}
	if cfg.ExtractionTimeout > 0 {
		opts = append(opts, conversation.WithExtractionTimeout(cfg.ExtractionTimeout))
	}
	if cfg.ReplyTimeout > 0 {
		opts = append(opts, conversation.WithReplyTimeout(cfg.ReplyTimeout))
	}

	if cfg.BedrockModelID != "" && deps.AWSConfig != nil {
		bedrockClient := bedrockruntime.NewFromConfig(*deps.AWSConfig)
		replyLLM = conversation.NewFallbackLLMClient(geminiReply, conversation.NewBedrockLLMClient(bedrockClient), logger)
		// Gemini ignores the request model; Bedrock requires it.
		opts = append(opts, conversation.WithReplyModel(cfg.BedrockModelID))
		logger.Info("bedrock reply fallback enabled", "model", cfg.BedrockModelID)
	}

	if deps.Transcripts != nil {
		opts = append(opts, conversation.WithTranscripts(deps.Transcripts))
	}
	if deps.Notifier != nil {
		opts = append(opts, conversation.WithTeamNotifier(deps.Notifier))
	}
	if deps.Archiver != nil {
		opts = append(opts, conversation.WithArchiver(deps.Archiver))
	}
	if deps.Metrics != nil {
		opts = append(opts, conversation.WithChatMetrics(deps.Metrics))
	}

	logger.Info("chat service wired",
		"extractor_model", cfg.GeminiExtractorModel,
		"reply_model", cfg.GeminiReplyModel,
	)
	return conversation.NewChatService(deps.Profiles, extractor, replyLLM, deps.History, opts...), nil
}

// BuildTeamNotifier selects an email sender by provider preference and
// wires the qualified-lead notifier. Returns nil when no recipients are
// configured.
func BuildTeamNotifier(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) *notify.Service {
	if cfg == nil || strings.TrimSpace(cfg.TeamNotifyEmails) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	recipients := strings.Split(cfg.TeamNotifyEmails, ",")

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		sender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "ses":
		sender = notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	default: // auto
		if cfg.SendGridAPIKey != "" {
			sender = notify.NewSendGridSender(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		} else if sesClient != nil && cfg.SESFromEmail != "" {
			sender = notify.NewSESSender(sesClient, notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SESFromName,
			}, logger)
		}
	}
	// notify.NewService falls back to a stub sender; interface nil checks
	// need the typed value cleared first.
	if isNilSender(sender) {
		sender = nil
		logger.Warn("no email provider configured; lead notifications will be logged only")
	}

	return notify.NewService(sender, recipients, logger)
}

func isNilSender(sender notify.EmailSender) bool {
	switch v := sender.(type) {
	case nil:
		return true
	case *notify.SendGridSender:
		return v == nil
	case *notify.SESSender:
		return v == nil
	default:
		return false
	}
}

// BuildArchiver wires the S3 conversation archive. Returns nil when no
// bucket is configured.
func BuildArchiver(s3Client *s3.Client, cfg *appconfig.Config, logger *logging.Logger) *archive.Service {
	if cfg == nil || strings.TrimSpace(cfg.ArchiveBucket) == "" || s3Client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	store := archive.NewStore(s3Client, cfg.ArchiveBucket, logger)
	svc := archive.NewService(store, logger)
	if svc != nil {
		logger.Info("conversation archive enabled", "bucket", cfg.ArchiveBucket)
	}
	return svc
}
