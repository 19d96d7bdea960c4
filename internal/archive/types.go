package archive

import "time"

// ConversationRecord is the top-level structure archived to S3 when a
// lead qualifies for team contact.
type ConversationRecord struct {
	Version      string          `json:"version"` // "1.0"
	UserID       string          `json:"user_id"`
	ArchivedAt   time.Time       `json:"archived_at"`
	MessageCount int             `json:"message_count"`
	Profile      ProfileSnapshot `json:"profile"`
	Messages     []Message       `json:"messages"`
}

// ProfileSnapshot freezes the qualification state at archive time.
type ProfileSnapshot struct {
	Role                string   `json:"role,omitempty"`
	HasCapitalGain      *bool    `json:"has_capital_gain,omitempty"`
	CapitalGainAmount   *float64 `json:"capital_gain_amount,omitempty"`
	CapitalGainTiming   string   `json:"capital_gain_timing,omitempty"`
	TargetState         string   `json:"target_state,omitempty"`
	DevelopmentLocation string   `json:"development_location,omitempty"`
	NeedsTeamContact    bool     `json:"needs_team_contact"`
}

// Message is a single archived conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	UserID       string `json:"user_id"`
	S3Key        string `json:"s3_key"`
	Role         string `json:"role,omitempty"`
	ArchivedAt   string `json:"archived_at"`
	MessageCount int    `json:"message_count"`
}
