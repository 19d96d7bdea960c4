package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ozlistings/oz-ai-platform/internal/identity"
	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// Handler exposes the chat pipeline over HTTP.
type Handler struct {
	chat   *ChatService
	logger *logging.Logger
}

// NewHandler creates the chat HTTP handler.
func NewHandler(chat *ChatService, logger *logging.Logger) *Handler {
	if chat == nil {
		panic("conversation: chat service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{chat: chat, logger: logger}
}

// HandleChat handles POST /chat. The body carries the user identity and
// the raw message text.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode chat request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.chat.ProcessTurn(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, "message is required", http.StatusBadRequest)
	case errors.Is(err, ErrMessageTooLong):
		http.Error(w, "message exceeds 1000 characters", http.StatusBadRequest)
	case errors.Is(err, identity.ErrInvalidUserID):
		http.Error(w, "invalid user id", http.StatusBadRequest)
	case errors.Is(err, profile.ErrStoreUnavailable):
		h.logger.Error("profile store unavailable", "error", err, "path", r.URL.Path)
		http.Error(w, "profile store unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, ErrReplyUnavailable):
		h.logger.Error("reply unavailable", "error", err, "path", r.URL.Path)
		http.Error(w, "assistant temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("chat turn failed", "error", err, "path", r.URL.Path)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
