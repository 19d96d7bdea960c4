package profile

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ozlistings/oz-ai-platform/internal/identity"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// Handler handles HTTP requests for profiles
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new profile handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("profile: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// updateProfileRequest is the body for POST /profile.
type updateProfileRequest struct {
	UserID          string         `json:"user_id"`
	Extraction      map[string]any `json:"extraction"`
	ExplicitRequest bool           `json:"explicit_request"`
}

// HandleProcessUpdate handles POST /profile requests. The body carries a
// raw extraction payload which is normalized, merged, and persisted.
func (h *Handler) HandleProcessUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode profile update", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.ProcessUpdate(r.Context(), UpdateRequest{
		UserID:                    req.UserID,
		Extraction:                req.Extraction,
		ExplicitSchedulingRequest: req.ExplicitRequest,
	})
	if err != nil {
		h.writeError(w, r, err, "failed to process profile update")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleGetProfile handles GET /profile/{userID} requests. Unknown users
// get the empty default view.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	view, err := h.service.ReadProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err, "failed to read profile")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, identity.ErrInvalidUserID):
		http.Error(w, "invalid user id", http.StatusBadRequest)
	case errors.Is(err, ErrStoreUnavailable):
		h.logger.Error(msg, "error", err, "path", r.URL.Path)
		http.Error(w, "profile store unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error(msg, "error", err, "path", r.URL.Path)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
