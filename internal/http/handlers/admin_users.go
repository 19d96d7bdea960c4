// Package handlers holds admin HTTP endpoints that sit outside the main
// chat and profile surfaces.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ozlistings/oz-ai-platform/internal/identity"
	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// transcriptPurger removes a user's persisted conversation rows.
type transcriptPurger interface {
	DeleteUser(ctx context.Context, userID string) error
}

// historyPurger removes a user's short-term chat history.
type historyPurger interface {
	Delete(ctx context.Context, userID string) error
}

// AdminUsersHandler deletes user data across stores. Used for test-account
// cleanup and data deletion requests.
type AdminUsersHandler struct {
	profiles    profile.Deleter
	transcripts transcriptPurger
	history     historyPurger
	logger      *logging.Logger
}

func NewAdminUsersHandler(profiles profile.Deleter, transcripts transcriptPurger, history historyPurger, logger *logging.Logger) *AdminUsersHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminUsersHandler{
		profiles:    profiles,
		transcripts: transcripts,
		history:     history,
		logger:      logger,
	}
}

// PurgeUser removes the user's profile, transcript, and chat history.
// DELETE /admin/users/{userID}
func (h *AdminUsersHandler) PurgeUser(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.NormalizeUserID(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	purged := map[string]bool{}

	if h.profiles != nil {
		if err := h.profiles.Delete(ctx, userID); err != nil {
			h.logger.Error("admin purge: profile delete failed", "user_id", userID, "error", err)
			http.Error(w, `{"error":"failed to delete profile"}`, http.StatusInternalServerError)
			return
		}
		purged["profile"] = true
	}

	if h.transcripts != nil {
		if err := h.transcripts.DeleteUser(ctx, userID); err != nil {
			h.logger.Error("admin purge: transcript delete failed", "user_id", userID, "error", err)
			http.Error(w, `{"error":"failed to delete transcript"}`, http.StatusInternalServerError)
			return
		}
		purged["transcript"] = true
	}

	if h.history != nil {
		if err := h.history.Delete(ctx, userID); err != nil {
			h.logger.Error("admin purge: history delete failed", "user_id", userID, "error", err)
			http.Error(w, `{"error":"failed to delete chat history"}`, http.StatusInternalServerError)
			return
		}
		purged["history"] = true
	}

	h.logger.Info("admin purge: user data removed", "user_id", userID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id": userID,
		"purged":  purged,
	})
}
