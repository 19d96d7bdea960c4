package archive

import (
	"context"
	"time"

	"github.com/ozlistings/oz-ai-platform/internal/conversation"
	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// Service snapshots qualified conversations to S3. It implements the
// chat pipeline's archiver hook; failures are logged and swallowed so a
// storage hiccup never blocks a reply.
type Service struct {
	store  *Store
	logger *logging.Logger
}

// NewService creates the archival service. Returns nil if the store is
// not enabled; callers treat a nil service as disabled.
func NewService(store *Store, logger *logging.Logger) *Service {
	if store == nil || !store.Enabled() {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, logger: logger}
}

// ArchiveQualified scrubs and stores the conversation snapshot for a lead
// that just flipped to needs_team_contact.
func (s *Service) ArchiveQualified(ctx context.Context, view profile.View, transcript []conversation.ChatMessage) error {
	if s == nil {
		return nil
	}

	msgs := make([]Message, 0, len(transcript))
	for _, turn := range transcript {
		msgs = append(msgs, Message{Role: turn.Role, Content: turn.Content})
	}
	ScrubMessages(msgs)

	record := &ConversationRecord{
		Version:      "1.0",
		UserID:       view.UserID,
		ArchivedAt:   time.Now().UTC(),
		MessageCount: view.MessageCount,
		Profile:      snapshotProfile(view),
		Messages:     msgs,
	}

	if err := s.store.ArchiveConversation(ctx, record); err != nil {
		s.logger.Error("archive: failed to store qualified conversation",
			"error", err, "user_id", view.UserID)
		return err
	}
	return nil
}

func snapshotProfile(view profile.View) ProfileSnapshot {
	snap := ProfileSnapshot{
		HasCapitalGain:    view.HasCapitalGain,
		CapitalGainAmount: view.CapitalGainAmount,
		NeedsTeamContact:  view.NeedsTeamContact,
	}
	if view.Role != nil {
		snap.Role = string(*view.Role)
	}
	if view.CapitalGainTiming != nil {
		snap.CapitalGainTiming = string(*view.CapitalGainTiming)
	}
	if view.TargetState != nil {
		snap.TargetState = *view.TargetState
	}
	if view.DevelopmentLocation != nil {
		snap.DevelopmentLocation = *view.DevelopmentLocation
	}
	return snap
}
