package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/ozlistings/oz-ai-platform/internal/observability/metrics"
	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxMessageLength caps a single inbound chat message.
const MaxMessageLength = 1000

const degradedReply = "Thanks for your message! I'm having a little trouble on my end right now, " +
	"but I'm still here - tell me more about your Opportunity Zone goals and I'll catch up in a moment."

const blockedReply = "I can only help with Opportunity Zone investments and developments. " +
	"What would you like to know about OZ opportunities?"

var chatTracer = otel.Tracer("ozzie.internal.conversation.chat")

// TeamNotifier is implemented by internal/notify; it alerts the Ozlistings
// team when a lead becomes qualified for contact.
type TeamNotifier interface {
	NotifyQualifiedLead(ctx context.Context, view profile.View) error
}

// Archiver is implemented by internal/archive; it snapshots qualified
// conversations to durable storage.
type Archiver interface {
	ArchiveQualified(ctx context.Context, view profile.View, transcript []ChatMessage) error
}

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ChatResponse is the outcome of processing a turn.
type ChatResponse struct {
	Response string           `json:"response"`
	Profile  profile.View     `json:"profile"`
	Actions  []profile.Action `json:"actions,omitempty"`
	Degraded bool             `json:"degraded,omitempty"`
	Blocked  bool             `json:"blocked,omitempty"`
}

// ChatService runs the full turn pipeline: guard, extraction, profile
// merge, reply generation, persistence, and side effects.
type ChatService struct {
	profiles    *profile.Service
	extractor   Extractor
	replyLLM    LLMClient
	replyModel  string
	history     *HistoryStore
	transcripts *TranscriptStore
	notifier    TeamNotifier
	archiver    Archiver
	metrics     *metrics.ChatMetrics
	logger      *logging.Logger

	extractionTimeout time.Duration
	replyTimeout      time.Duration
}

// ChatServiceOption customizes a ChatService.
type ChatServiceOption func(*ChatService)

// WithTranscripts enables durable Postgres transcripts.
func WithTranscripts(store *TranscriptStore) ChatServiceOption {
	return func(s *ChatService) { s.transcripts = store }
}

// WithTeamNotifier enables qualified-lead emails.
func WithTeamNotifier(n TeamNotifier) ChatServiceOption {
	return func(s *ChatService) { s.notifier = n }
}

// WithArchiver enables qualified-conversation archiving.
func WithArchiver(a Archiver) ChatServiceOption {
	return func(s *ChatService) { s.archiver = a }
}

// WithChatMetrics attaches Prometheus collectors.
func WithChatMetrics(m *metrics.ChatMetrics) ChatServiceOption {
	return func(s *ChatService) { s.metrics = m }
}

// WithChatLogger overrides the default logger.
func WithChatLogger(logger *logging.Logger) ChatServiceOption {
	return func(s *ChatService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExtractionTimeout bounds the extraction call.
func WithExtractionTimeout(d time.Duration) ChatServiceOption {
	return func(s *ChatService) {
		if d > 0 {
			s.extractionTimeout = d
		}
	}
}

// WithReplyTimeout bounds the reply-generation call.
func WithReplyTimeout(d time.Duration) ChatServiceOption {
	return func(s *ChatService) {
		if d > 0 {
			s.replyTimeout = d
		}
	}
}

// WithReplyModel overrides the model identifier passed to the reply client.
func WithReplyModel(model string) ChatServiceOption {
	return func(s *ChatService) { s.replyModel = model }
}

// NewChatService wires the turn pipeline. profiles, extractor, replyLLM,
// and history are required.
func NewChatService(profiles *profile.Service, extractor Extractor, replyLLM LLMClient, history *HistoryStore, opts ...ChatServiceOption) *ChatService {
	if profiles == nil {
		panic("conversation: profile service cannot be nil")
	}
	if extractor == nil {
		panic("conversation: extractor cannot be nil")
	}
	if replyLLM == nil {
		panic("conversation: reply client cannot be nil")
	}
	if history == nil {
		panic("conversation: history store cannot be nil")
	}

	s := &ChatService{
		profiles:          profiles,
		extractor:         extractor,
		replyLLM:          replyLLM,
		history:           history,
		logger:            logging.Default(),
		extractionTimeout: 20 * time.Second,
		replyTimeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessTurn handles one user message end to end. Extraction failure
// degrades the turn rather than failing it; only reply generation failure
// surfaces as an error to the caller.
func (s *ChatService) ProcessTurn(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, span := chatTracer.Start(ctx, "chat.turn")
	defer span.End()
	span.SetAttributes(attribute.String("ozzie.user_id", req.UserID))

	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.metrics.ObserveMessage("rejected")
		return nil, ErrEmptyMessage
	}
	if len(req.Message) > MaxMessageLength {
		s.metrics.ObserveMessage("rejected")
		return nil, ErrMessageTooLong
	}

	if guard := ScanMessage(message); guard.Blocked {
		return s.handleBlockedTurn(ctx, req.UserID, guard)
	}

	extraction, extractionFailed := s.runExtraction(ctx, span, req.UserID, message)

	update, err := s.profiles.ProcessUpdate(ctx, profile.UpdateRequest{
		UserID:           req.UserID,
		Extraction:       extraction,
		ExtractionFailed: extractionFailed,
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveMessage("error")
		return nil, err
	}
	for _, rejection := range update.Rejections {
		s.metrics.ObserveRejection(rejection.Field)
	}
	for _, action := range update.Actions {
		s.metrics.ObserveAction(string(action.Type))
	}

	reply, err := s.generateReply(ctx, req.UserID, message, update)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("reply generation failed",
			"user_id", req.UserID, "error", err)
		s.metrics.ObserveMessage("error")
		return nil, ErrReplyUnavailable
	}

	s.persistTurn(ctx, req.UserID, message, reply)
	s.runSideEffects(ctx, req.UserID, update)

	outcome := "ok"
	if update.Degraded {
		outcome = "degraded"
	}
	s.metrics.ObserveMessage(outcome)

	return &ChatResponse{
		Response: reply,
		Profile:  update.Profile,
		Actions:  update.Actions,
		Degraded: update.Degraded,
	}, nil
}

// Profile returns the current profile view for a user.
func (s *ChatService) Profile(ctx context.Context, userID string) (profile.View, error) {
	return s.profiles.ReadProfile(ctx, userID)
}

// handleBlockedTurn records a security flag without mutating the profile
// or advancing the message counter, then returns a canned redirect.
func (s *ChatService) handleBlockedTurn(ctx context.Context, userID string, guard GuardResult) (*ChatResponse, error) {
	s.logger.Warn("prompt injection blocked",
		"user_id", userID, "reasons", guard.ReasonSummary())
	s.metrics.ObserveInjectionBlock()
	s.metrics.ObserveMessage("blocked")

	update, err := s.profiles.ProcessUpdate(ctx, profile.UpdateRequest{
		UserID:            userID,
		InjectionDetected: true,
		InjectionReasons:  guard.ReasonSummary(),
	})
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Response: blockedReply,
		Profile:  update.Profile,
		Actions:  update.Actions,
		Blocked:  true,
	}, nil
}

func (s *ChatService) runExtraction(ctx context.Context, span trace.Span, userID, message string) (map[string]any, bool) {
	view, err := s.profiles.ReadProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("profile read before extraction failed",
			"user_id", userID, "error", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.extractionTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.extractor.Extract(callCtx, ExtractionInput{
		Message:      message,
		Profile:      view,
		MessageCount: view.MessageCount,
	})
	s.metrics.ObserveExtraction(time.Since(start), err != nil)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("profile extraction failed",
			"user_id", userID, "error", err)
		return nil, true
	}
	return result.Fields, false
}

func (s *ChatService) generateReply(ctx context.Context, userID, message string, update *profile.UpdateResult) (string, error) {
	recent, err := s.history.Recent(ctx, userID)
	if err != nil {
		s.logger.Warn("history load failed, replying without context",
			"user_id", userID, "error", err)
		recent = nil
	}

	llmReq := LLMRequest{
		Model:       s.replyModel,
		System:      BuildReplyPrompt(update.Profile, update.Actions),
		Messages:    append(recent, ChatMessage{Role: ChatRoleUser, Content: message}),
		MaxTokens:   1024,
		Temperature: 0.7,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.replyLLM.Complete(callCtx, llmReq)
	if err != nil {
		if update.Degraded {
			// Extraction already failed this turn; keep the lead engaged
			// instead of surfacing a hard error.
			return degradedReply, nil
		}
		return "", err
	}
	s.metrics.ObserveReply(time.Since(start))
	return resp.Text, nil
}

// persistTurn writes the turn to Redis working memory and the Postgres
// transcript. Neither failure aborts the turn; the reply already exists.
func (s *ChatService) persistTurn(ctx context.Context, userID, message, reply string) {
	if err := s.history.Append(ctx, userID,
		ChatMessage{Role: ChatRoleUser, Content: message},
		ChatMessage{Role: ChatRoleAssistant, Content: reply},
	); err != nil {
		s.logger.Error("history append failed", "user_id", userID, "error", err)
	}
	if err := s.transcripts.AppendTurn(ctx, userID, message, reply); err != nil {
		s.logger.Error("transcript append failed", "user_id", userID, "error", err)
	}
}

func (s *ChatService) runSideEffects(ctx context.Context, userID string, update *profile.UpdateResult) {
	if !update.NeedsContactTriggered {
		return
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyQualifiedLead(ctx, update.Profile); err != nil {
			s.logger.Error("team notification failed", "user_id", userID, "error", err)
		}
	}
	if s.archiver != nil {
		transcript, err := s.history.Recent(ctx, userID)
		if err != nil {
			s.logger.Warn("history load for archive failed", "user_id", userID, "error", err)
		}
		if err := s.archiver.ArchiveQualified(ctx, update.Profile, transcript); err != nil {
			s.logger.Error("conversation archive failed", "user_id", userID, "error", err)
		}
	}
}
