// Package router assembles the HTTP surface: public chat and profile
// endpoints, the webchat widget transport, and JWT-protected admin routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ozlistings/oz-ai-platform/internal/conversation"
	"github.com/ozlistings/oz-ai-platform/internal/funnel"
	"github.com/ozlistings/oz-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/ozlistings/oz-ai-platform/internal/http/middleware"
	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/internal/webchat"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	ChatHandler      *conversation.Handler
	AsyncChatHandler *conversation.AsyncHandler
	ProfileHandler   *profile.Handler
	WebchatHandler   *webchat.Handler

	// Admin surface (enabled when AdminAuthSecret is set).
	AdminAuthSecret string
	FunnelHandler   *funnel.Handler
	AdminUsers      *handlers.AdminUsersHandler

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Chat endpoint rate limiting, requests/sec per IP. Zero disables.
	ChatRateLimit float64
	ChatRateBurst int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Chat endpoints carry per-IP rate limiting; the rest of the surface
	// does not.
	r.Group(func(chat chi.Router) {
		if cfg.ChatRateLimit > 0 {
			burst := cfg.ChatRateBurst
			if burst <= 0 {
				burst = 5
			}
			chat.Use(httpmiddleware.RateLimit(cfg.ChatRateLimit, burst))
		}
		if cfg.ChatHandler != nil {
			chat.Post("/chat", cfg.ChatHandler.HandleChat)
		}
		if cfg.AsyncChatHandler != nil {
			chat.Post("/chat/async", cfg.AsyncChatHandler.Enqueue)
			chat.Get("/chat/jobs/{jobID}", cfg.AsyncChatHandler.JobStatus)
		}
	})

	if cfg.ProfileHandler != nil {
		r.Post("/profile", cfg.ProfileHandler.HandleProcessUpdate)
		r.Get("/profile/{userID}", cfg.ProfileHandler.HandleGetProfile)
	}

	if cfg.WebchatHandler != nil {
		r.Get("/ws/chat", cfg.WebchatHandler.HandleWebSocket)
		r.Post("/webchat/message", cfg.WebchatHandler.HandleMessage)
		r.Get("/webchat/history", cfg.WebchatHandler.HandleHistory)
	}

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.FunnelHandler != nil {
				admin.Get("/funnel", cfg.FunnelHandler.GetFunnel)
			}
			if cfg.AdminUsers != nil {
				admin.Delete("/users/{userID}", cfg.AdminUsers.PurgeUser)
			}
		})
	}

	return r
}
