package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ozlistings/oz-ai-platform/internal/identity"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// Enqueuer publishes chat jobs to the queue.
type Enqueuer interface {
	EnqueueChat(ctx context.Context, jobID string, req ChatRequest, opts ...PublishOption) (string, error)
}

// AsyncHandler accepts chat turns for background processing and exposes
// job status polling.
type AsyncHandler struct {
	enqueuer Enqueuer
	jobs     JobRecorder
	logger   *logging.Logger
}

func NewAsyncHandler(enqueuer Enqueuer, jobs JobRecorder, logger *logging.Logger) *AsyncHandler {
	if enqueuer == nil {
		panic("conversation: enqueuer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AsyncHandler{enqueuer: enqueuer, jobs: jobs, logger: logger}
}

// Enqueue handles POST /chat/async. It returns 202 with a job ID the
// client can poll.
func (h *AsyncHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	userID, err := identity.NormalizeUserID(req.UserID)
	if err != nil {
		http.Error(w, `{"error":"user_id is required"}`, http.StatusBadRequest)
		return
	}
	req.UserID = userID

	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	jobID := uuid.New().String()

	if h.jobs != nil {
		if err := h.jobs.PutPending(r.Context(), &JobRecord{
			JobID:   jobID,
			UserID:  req.UserID,
			Request: &req,
		}); err != nil {
			h.logger.Error("failed to record pending job", "error", err, "job_id", jobID)
			http.Error(w, `{"error":"failed to accept message"}`, http.StatusInternalServerError)
			return
		}
	}

	if _, err := h.enqueuer.EnqueueChat(r.Context(), jobID, req); err != nil {
		h.logger.Error("failed to enqueue chat job", "error", err, "job_id", jobID)
		http.Error(w, `{"error":"failed to accept message"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"job_id": jobID,
		"status": string(JobStatusPending),
	})
}

// JobStatus handles GET /chat/jobs/{jobID}.
func (h *AsyncHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		http.Error(w, `{"error":"job id required"}`, http.StatusBadRequest)
		return
	}
	if h.jobs == nil {
		http.Error(w, `{"error":"job tracking disabled"}`, http.StatusNotFound)
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load job", "error", err, "job_id", jobID)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(job)
}
