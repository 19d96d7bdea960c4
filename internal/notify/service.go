package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// Service emails the Ozlistings team when a lead flips to
// needs_team_contact. One email per recipient; a partial failure still
// attempts the rest.
type Service struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewService creates the team notification service. recipients that are
// blank after trimming are dropped.
func NewService(email EmailSender, recipients []string, logger *logging.Logger) *Service {
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	cleaned := make([]string, 0, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &Service{
		email:      email,
		recipients: cleaned,
		logger:     logger,
	}
}

// NotifyQualifiedLead sends the lead summary to every configured team
// address.
func (s *Service) NotifyQualifiedLead(ctx context.Context, view profile.View) error {
	if len(s.recipients) == 0 {
		s.logger.Debug("notify: no team recipients configured, skipping")
		return nil
	}

	subject := fmt.Sprintf("Qualified OZ lead: %s", view.UserID)
	body := buildLeadSummary(view)

	var firstErr error
	for _, to := range s.recipients {
		err := s.email.Send(ctx, EmailMessage{
			To:      to,
			Subject: subject,
			Body:    body,
		})
		if err != nil {
			s.logger.Error("notify: team email failed", "error", err, "to", to, "user_id", view.UserID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
	}
	if firstErr != nil {
		return fmt.Errorf("notify: qualified lead notification: %w", firstErr)
	}

	s.logger.Info("notify: qualified lead email sent",
		"user_id", view.UserID, "recipients", len(s.recipients))
	return nil
}

func buildLeadSummary(view profile.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A lead is ready for team contact.\n\nUser ID: %s\n", view.UserID)

	if view.Role != nil {
		fmt.Fprintf(&b, "Role: %s\n", *view.Role)
	} else {
		b.WriteString("Role: not yet captured\n")
	}
	if view.HasCapitalGain != nil {
		fmt.Fprintf(&b, "Has capital gain: %t\n", *view.HasCapitalGain)
	}
	if view.CapitalGainAmount != nil {
		fmt.Fprintf(&b, "Capital gain amount: $%.0f\n", *view.CapitalGainAmount)
	}
	if view.CapitalGainTiming != nil {
		fmt.Fprintf(&b, "Gain timing: %s\n", *view.CapitalGainTiming)
	}
	if view.TargetState != nil {
		fmt.Fprintf(&b, "Target state: %s\n", *view.TargetState)
	}
	if view.DevelopmentLocation != nil {
		fmt.Fprintf(&b, "Development location: %s\n", *view.DevelopmentLocation)
	}
	fmt.Fprintf(&b, "Messages exchanged: %d\n", view.MessageCount)
	fmt.Fprintf(&b, "\nSent %s\n", time.Now().UTC().Format("January 2, 2006 at 15:04 MST"))
	return b.String()
}
