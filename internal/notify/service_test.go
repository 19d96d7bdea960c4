package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

type recordingSender struct {
	sent    []EmailMessage
	failFor map[string]error
}

func (s *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	if err, ok := s.failFor[msg.To]; ok {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func investorView() profile.View {
	role := profile.RoleInvestor
	hasGain := true
	amount := 1300000.0
	timing := profile.TimingWithin180Days
	state := "TX"
	return profile.View{
		UserID:            "user-1",
		Role:              &role,
		HasCapitalGain:    &hasGain,
		CapitalGainAmount: &amount,
		CapitalGainTiming: &timing,
		TargetState:       &state,
		NeedsTeamContact:  true,
		MessageCount:      4,
	}
}

func TestNotifyQualifiedLead(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, []string{"team@ozlistings.com", " sales@ozlistings.com "}, logging.Default())

	err := svc.NotifyQualifiedLead(context.Background(), investorView())
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	msg := sender.sent[0]
	assert.Equal(t, "team@ozlistings.com", msg.To)
	assert.Equal(t, "Qualified OZ lead: user-1", msg.Subject)
	assert.Contains(t, msg.Body, "Role: Investor")
	assert.Contains(t, msg.Body, "Capital gain amount: $1300000")
	assert.Contains(t, msg.Body, "Gain timing: within_180_days")
	assert.Contains(t, msg.Body, "Target state: TX")
	assert.Contains(t, msg.Body, "Messages exchanged: 4")

	assert.Equal(t, "sales@ozlistings.com", sender.sent[1].To)
}

func TestNotifyQualifiedLeadNoRecipients(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, []string{"  ", ""}, logging.Default())

	err := svc.NotifyQualifiedLead(context.Background(), investorView())
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestNotifyQualifiedLeadPartialFailure(t *testing.T) {
	sender := &recordingSender{failFor: map[string]error{
		"team@ozlistings.com": errors.New("bounce"),
	}}
	svc := NewService(sender, []string{"team@ozlistings.com", "sales@ozlistings.com"}, logging.Default())

	err := svc.NotifyQualifiedLead(context.Background(), investorView())
	require.Error(t, err)
	// The second recipient still got the email.
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "sales@ozlistings.com", sender.sent[0].To)
}

func TestNotifyQualifiedLeadSparseProfile(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, []string{"team@ozlistings.com"}, logging.Default())

	err := svc.NotifyQualifiedLead(context.Background(), profile.View{UserID: "user-2", MessageCount: 1})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "Role: not yet captured")
}
