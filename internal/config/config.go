package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	UseMemoryQueue bool
	WorkerCount    int

	DatabaseURL            string
	PersistChatTranscripts bool
	TranscriptExcludeUsers string
	ProfileSaveRetries     int
	ExtractionTimeout      time.Duration
	ReplyTimeout           time.Duration

	GeminiAPIKey         string
	GeminiExtractorModel string
	GeminiReplyModel     string
	BedrockModelID       string

	AdminJWTSecret string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ChatQueueURL        string
	ChatJobsTable       string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Email notification configuration
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	TeamNotifyEmails  string

	// Conversation archive configuration
	ArchiveBucket string

	CORSAllowedOrigins string

	SchedulingLinkURL string

	ChatRateLimitPerMin int
	ChatRateLimitBurst  int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		DatabaseURL:            getEnv("DATABASE_URL", ""),
		PersistChatTranscripts: getEnvAsBool("PERSIST_CHAT_TRANSCRIPTS", true),
		TranscriptExcludeUsers: getEnv("TRANSCRIPT_EXCLUDE_USERS", ""),
		ProfileSaveRetries:     getEnvAsInt("PROFILE_SAVE_RETRIES", 3),
		ExtractionTimeout:      getEnvAsDuration("EXTRACTION_TIMEOUT", 20*time.Second),
		ReplyTimeout:           getEnvAsDuration("REPLY_TIMEOUT", 30*time.Second),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiExtractorModel: getEnv("GEMINI_EXTRACTOR_MODEL", "gemini-2.5-flash"),
		GeminiReplyModel:     getEnv("GEMINI_REPLY_MODEL", "gemini-2.0-flash"),
		BedrockModelID:       getEnv("BEDROCK_MODEL_ID", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ChatQueueURL:        getEnv("CHAT_QUEUE_URL", ""),
		ChatJobsTable:       getEnv("CHAT_JOBS_TABLE", "chat_jobs"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		// Email notification configuration
		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "OZ Listings"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "OZ Listings"),
		TeamNotifyEmails:  getEnv("TEAM_NOTIFY_EMAILS", ""),

		// Conversation archive configuration
		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),

		SchedulingLinkURL: getEnv("SCHEDULING_LINK_URL", "https://cal.com/ozlistings-team/consultation"),

		ChatRateLimitPerMin: getEnvAsInt("CHAT_RATE_LIMIT_PER_MIN", 10),
		ChatRateLimitBurst:  getEnvAsInt("CHAT_RATE_LIMIT_BURST", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
