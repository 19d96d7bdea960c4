package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GEMINI_EXTRACTOR_MODEL", "")
	t.Setenv("SCHEDULING_LINK_URL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.GeminiExtractorModel != "gemini-2.5-flash" {
		t.Fatalf("expected default extractor model, got %s", cfg.GeminiExtractorModel)
	}
	if cfg.GeminiReplyModel != "gemini-2.0-flash" {
		t.Fatalf("expected default reply model, got %s", cfg.GeminiReplyModel)
	}
	if cfg.SchedulingLinkURL != "https://cal.com/ozlistings-team/consultation" {
		t.Fatalf("expected default scheduling link, got %s", cfg.SchedulingLinkURL)
	}
	if cfg.ChatRateLimitPerMin != 10 {
		t.Fatalf("expected default chat rate limit, got %d", cfg.ChatRateLimitPerMin)
	}
	if !cfg.PersistChatTranscripts {
		t.Fatalf("expected transcript persistence enabled by default")
	}
	if cfg.ExtractionTimeout != 20*time.Second {
		t.Fatalf("expected default extraction timeout, got %s", cfg.ExtractionTimeout)
	}
	if cfg.ProfileSaveRetries != 3 {
		t.Fatalf("expected default save retries, got %d", cfg.ProfileSaveRetries)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_EXTRACTOR_MODEL", "gemini-2.5-pro")
	t.Setenv("EMAIL_PROVIDER", "SendGrid")
	t.Setenv("TEAM_NOTIFY_EMAILS", "team@ozlistings.com,ops@ozlistings.com")
	t.Setenv("CHAT_RATE_LIMIT_PER_MIN", "30")
	t.Setenv("EXTRACTION_TIMEOUT", "45s")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.GeminiAPIKey != "test-key" {
		t.Fatalf("expected gemini key override, got %s", cfg.GeminiAPIKey)
	}
	if cfg.GeminiExtractorModel != "gemini-2.5-pro" {
		t.Fatalf("expected extractor model override, got %s", cfg.GeminiExtractorModel)
	}
	if cfg.EmailProvider != "sendgrid" {
		t.Fatalf("expected normalized email provider, got %s", cfg.EmailProvider)
	}
	if cfg.TeamNotifyEmails != "team@ozlistings.com,ops@ozlistings.com" {
		t.Fatalf("expected team emails override, got %s", cfg.TeamNotifyEmails)
	}
	if cfg.ChatRateLimitPerMin != 30 {
		t.Fatalf("expected rate limit override, got %d", cfg.ChatRateLimitPerMin)
	}
	if cfg.ExtractionTimeout != 45*time.Second {
		t.Fatalf("expected extraction timeout override, got %s", cfg.ExtractionTimeout)
	}
	if !cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue override")
	}
}
