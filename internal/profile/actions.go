package profile

// ActionType names a side effect the presentation layer should perform.
type ActionType string

const (
	ActionShareSchedulingLink ActionType = "share_scheduling_link"
	ActionMarkNeedsContact    ActionType = "mark_needs_contact"
	ActionSecurityFlag        ActionType = "security_flag"
)

// Action is an instruction emitted to the reply layer. Link is set for
// scheduling actions, Reason for contact and security actions.
type Action struct {
	Type   ActionType `json:"type"`
	Link   string     `json:"link,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

// autoTriggerThreshold is the message count at which an engaged user is
// flagged for team contact and offered the scheduling link.
const autoTriggerThreshold = 4

// autoTriggerReason is recorded when the engagement threshold, rather
// than an extraction trigger, flips the contact flag.
const autoTriggerReason = "You have been actively engaged in our conversation"

// PolicyInput carries the per-message signals the policy evaluates.
type PolicyInput struct {
	// ExplicitSchedulingRequest is set when the user asked for the
	// scheduling link, detected upstream.
	ExplicitSchedulingRequest bool
	// MarkNeedsContact is set when the extraction layer asked to flag
	// the user for team follow-up.
	MarkNeedsContact bool
	// ContactReason explains a MarkNeedsContact trigger.
	ContactReason string
}

// EvaluateActions derives this message's actions from the merged profile,
// the message count, and the upstream signals. It may set
// NeedsTeamContact on the profile. An explicit scheduling request always
// yields the link. The engagement auto-trigger fires on the message that
// crosses the threshold and never again, because it only fires while
// NeedsTeamContact is still false. The scheduling link appears at most
// once per message.
func EvaluateActions(p *Profile, messageCount int, in PolicyInput, schedulingLink string) []Action {
	var actions []Action
	linkShared := false

	if in.ExplicitSchedulingRequest {
		actions = append(actions, Action{Type: ActionShareSchedulingLink, Link: schedulingLink})
		linkShared = true
	}

	if in.MarkNeedsContact && !p.NeedsTeamContact {
		p.NeedsTeamContact = true
		reason := in.ContactReason
		if reason == "" {
			reason = "User asked to speak with the team"
		}
		actions = append(actions, Action{Type: ActionMarkNeedsContact, Reason: reason})
	}

	if messageCount >= autoTriggerThreshold && !p.NeedsTeamContact {
		p.NeedsTeamContact = true
		actions = append(actions, Action{Type: ActionMarkNeedsContact, Reason: autoTriggerReason})
		if !linkShared {
			actions = append(actions, Action{Type: ActionShareSchedulingLink, Link: schedulingLink, Reason: autoTriggerReason})
		}
	}

	return actions
}
