package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/ozlistings/oz-ai-platform/internal/identity"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

const defaultSchedulingLink = "https://cal.com/ozlistings-team/consultation"

const defaultSaveRetries = 3

// UpdateRequest carries one processed message's inputs.
type UpdateRequest struct {
	UserID string

	// Extraction is the raw structured payload from the extraction
	// collaborator. Every value in it is untrusted.
	Extraction map[string]any

	// ExtractionFailed marks that the collaborator failed or timed out.
	// The merge still runs with an empty payload so the counter and the
	// action policy advance.
	ExtractionFailed bool

	// ExplicitSchedulingRequest is set when the user asked for the
	// scheduling link, detected upstream of extraction.
	ExplicitSchedulingRequest bool

	// InjectionDetected short-circuits the turn: nothing is written and
	// a security flag is the only action returned.
	InjectionDetected bool

	// InjectionReasons annotates the security flag.
	InjectionReasons string
}

// UpdateResult is what a processed message yields.
type UpdateResult struct {
	Profile View     `json:"profile"`
	Actions []Action `json:"actions"`

	// Rejections lists fields dropped during normalization and merge.
	Rejections []FieldRejection `json:"rejections,omitempty"`

	// Degraded is set when extraction was unavailable for this message.
	Degraded bool `json:"degraded,omitempty"`

	// NeedsContactTriggered is set when this message flipped
	// NeedsTeamContact from false to true.
	NeedsContactTriggered bool `json:"-"`
}

// Service is the profile engine: it normalizes extraction payloads,
// merges them into stored profiles under the role invariants, and
// evaluates the action policy. It is the sole writer of profile state.
//
// Operations on the same user are serialized through a per-user lock,
// and saves carry an optimistic version check for writers on other
// instances. Different users proceed fully in parallel.
type Service struct {
	store          Repository
	logger         *logging.Logger
	schedulingLink string
	saveRetries    int
	locks          *keyedMutex
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSchedulingLink overrides the link shared by scheduling actions.
func WithSchedulingLink(link string) ServiceOption {
	return func(s *Service) {
		if link != "" {
			s.schedulingLink = link
		}
	}
}

// WithSaveRetries bounds how many times a save is retried after losing
// the optimistic version check.
func WithSaveRetries(n int) ServiceOption {
	return func(s *Service) {
		if n >= 0 {
			s.saveRetries = n
		}
	}
}

// NewService creates the profile engine.
func NewService(store Repository, opts ...ServiceOption) *Service {
	if store == nil {
		panic("profile: repository required")
	}
	s := &Service{
		store:          store,
		logger:         logging.Default(),
		schedulingLink: defaultSchedulingLink,
		saveRetries:    defaultSaveRetries,
		locks:          newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessUpdate runs one message through normalize, merge, and the
// action policy, persisting the result. The message count increments
// exactly once per call. Store failures are fatal for the request and
// wrapped in ErrStoreUnavailable; a fabricated success is never
// reported.
func (s *Service) ProcessUpdate(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	userID, err := identity.NormalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}

	if req.InjectionDetected {
		view, err := s.currentView(ctx, userID)
		if err != nil {
			return nil, err
		}
		reason := req.InjectionReasons
		if reason == "" {
			reason = "prompt injection detected"
		}
		s.logger.Warn("security flag raised, profile untouched", "user_id", userID, "reason", reason)
		return &UpdateResult{
			Profile: view,
			Actions: []Action{{Type: ActionSecurityFlag, Reason: reason}},
		}, nil
	}

	norm := Normalize(req.Extraction)
	explicit := req.ExplicitSchedulingRequest || norm.Triggers.ShareSchedulingLink

	unlock := s.locks.lock(userID)
	defer unlock()

	count, err := s.store.IncrementMessageCount(ctx, userID)
	if err != nil {
		return nil, storeFailure("increment message count", err)
	}

	for attempt := 0; ; attempt++ {
		current, err := s.store.Get(ctx, userID)
		if errors.Is(err, ErrProfileNotFound) {
			current = NewProfile(userID)
			current.MessageCount = count
		} else if err != nil {
			return nil, storeFailure("load profile", err)
		}

		next := current.Clone()
		rejections := make([]FieldRejection, 0, len(norm.Rejections))
		rejections = append(rejections, norm.Rejections...)
		rejections = append(rejections, MergeFields(next, norm.Fields)...)

		hadContact := next.NeedsTeamContact
		actions := EvaluateActions(next, count, PolicyInput{
			ExplicitSchedulingRequest: explicit,
			MarkNeedsContact:          norm.Triggers.MarkNeedsContact,
			ContactReason:             norm.Triggers.Reason,
		}, s.schedulingLink)
		triggered := !hadContact && next.NeedsTeamContact

		if EnforceInvariants(next) {
			s.logger.Error("invariant violation corrected before save", "user_id", userID)
		}

		if err := s.store.Save(ctx, next); err != nil {
			if errors.Is(err, ErrVersionConflict) && attempt < s.saveRetries {
				continue
			}
			return nil, storeFailure("save profile", err)
		}

		for _, rejection := range rejections {
			s.logger.Warn("profile field rejected", "user_id", userID, "field", rejection.Field, "reason", rejection.Reason)
		}
		if req.ExtractionFailed {
			s.logger.Warn("extraction unavailable, processed with empty payload", "user_id", userID)
		}

		return &UpdateResult{
			Profile:               next.View(),
			Actions:               actions,
			Rejections:            rejections,
			Degraded:              req.ExtractionFailed,
			NeedsContactTriggered: triggered,
		}, nil
	}
}

// ReadProfile returns the stored view, or the empty default view for an
// unknown user. Only store failures are errors.
func (s *Service) ReadProfile(ctx context.Context, userID string) (View, error) {
	id, err := identity.NormalizeUserID(userID)
	if err != nil {
		return View{}, err
	}
	return s.currentView(ctx, id)
}

func (s *Service) currentView(ctx context.Context, userID string) (View, error) {
	p, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return EmptyView(userID), nil
	}
	if err != nil {
		return View{}, storeFailure("load profile", err)
	}
	return p.View(), nil
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("profile: %s: %w: %v", op, ErrStoreUnavailable, err)
}
