package profile

import "time"

// Role classifies a user as an investor or a developer. The two field
// groups on a profile are mutually exclusive: exactly one role's group
// may be populated at a time.
type Role string

const (
	RoleInvestor  Role = "Investor"
	RoleDeveloper Role = "Developer"
)

// CapGainTiming describes when a capital gain was or will be realized,
// relative to the 180-day opportunity-zone reinvestment window.
type CapGainTiming string

const (
	TimingWithin180Days      CapGainTiming = "within_180_days"
	TimingMoreThan180DaysAgo CapGainTiming = "more_than_180_days_ago"
	TimingUpcoming           CapGainTiming = "upcoming"
)

// LocationToBeDetermined is stored for a developer whose project location
// has not been captured yet. A developer profile never carries a null
// location.
const LocationToBeDetermined = "Location to be determined"

// Profile is the persisted record of what is known about a user's
// investment or development intent. Nil pointers mean "not captured yet".
type Profile struct {
	UserID              string
	Role                *Role
	HasCapitalGain      *bool
	CapitalGainAmount   *float64
	CapitalGainTiming   *CapGainTiming
	TargetState         *string
	DevelopmentLocation *string
	NeedsTeamContact    bool
	MessageCount        int
	LastSessionAt       *time.Time
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewProfile returns an empty profile for the given user.
func NewProfile(userID string) *Profile {
	return &Profile{UserID: userID}
}

// Clone returns a deep copy. Pointer fields are reallocated so the copy
// can be mutated without aliasing the original.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Role = clonePtr(p.Role)
	out.HasCapitalGain = clonePtr(p.HasCapitalGain)
	out.CapitalGainAmount = clonePtr(p.CapitalGainAmount)
	out.CapitalGainTiming = clonePtr(p.CapitalGainTiming)
	out.TargetState = clonePtr(p.TargetState)
	out.DevelopmentLocation = clonePtr(p.DevelopmentLocation)
	out.LastSessionAt = clonePtr(p.LastSessionAt)
	return &out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// Complete reports whether the active role's field group is fully
// captured. A profile with no role is never complete.
func (p *Profile) Complete() bool {
	if p.Role == nil {
		return false
	}
	switch *p.Role {
	case RoleInvestor:
		if p.HasCapitalGain == nil {
			return false
		}
		if !*p.HasCapitalGain {
			return true
		}
		return p.CapitalGainAmount != nil && p.CapitalGainTiming != nil && p.TargetState != nil
	case RoleDeveloper:
		return p.DevelopmentLocation != nil && *p.DevelopmentLocation != LocationToBeDetermined
	default:
		return false
	}
}

// View is the JSON representation returned to callers. Null fields mean
// the value has not been captured.
type View struct {
	UserID              string         `json:"user_id"`
	Role                *Role          `json:"role"`
	HasCapitalGain      *bool          `json:"has_capital_gain"`
	CapitalGainAmount   *float64       `json:"capital_gain_amount"`
	CapitalGainTiming   *CapGainTiming `json:"capital_gain_timing"`
	TargetState         *string        `json:"target_state"`
	DevelopmentLocation *string        `json:"development_location"`
	NeedsTeamContact    bool           `json:"needs_team_contact"`
	MessageCount        int            `json:"message_count"`
	LastSessionAt       *time.Time     `json:"last_session_at"`
	CreatedAt           *time.Time     `json:"created_at"`
	UpdatedAt           *time.Time     `json:"updated_at"`
}

// View materializes the caller-facing representation of the profile.
func (p *Profile) View() View {
	c := p.Clone()
	v := View{
		UserID:              c.UserID,
		Role:                c.Role,
		HasCapitalGain:      c.HasCapitalGain,
		CapitalGainAmount:   c.CapitalGainAmount,
		CapitalGainTiming:   c.CapitalGainTiming,
		TargetState:         c.TargetState,
		DevelopmentLocation: c.DevelopmentLocation,
		NeedsTeamContact:    c.NeedsTeamContact,
		MessageCount:        c.MessageCount,
		LastSessionAt:       c.LastSessionAt,
	}
	if !c.CreatedAt.IsZero() {
		created := c.CreatedAt
		v.CreatedAt = &created
	}
	if !c.UpdatedAt.IsZero() {
		updated := c.UpdatedAt
		v.UpdatedAt = &updated
	}
	return v
}

// EmptyView returns the default view for a user with no stored profile.
func EmptyView(userID string) View {
	return NewProfile(userID).View()
}
