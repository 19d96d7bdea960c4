package conversation

import (
	"regexp"
	"strings"
)

// GuardResult is the outcome of scanning an inbound message for prompt
// manipulation before it ever reaches the extraction model.
type GuardResult struct {
	// Blocked is true when the message must not be sent to the LLM and
	// the turn must not mutate the profile.
	Blocked bool
	// Reasons lists the detection signals that fired.
	Reasons []string
}

type guardPattern struct {
	re     *regexp.Regexp
	reason string
}

// Injection patterns: instruction overrides, exfiltration attempts, and
// code/SQL execution requests.
var guardPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)\bsystem\s*:`), "injection:system_marker"},
	{regexp.MustCompile(`(?i)\bi\s+am\s+(an?\s+)?admin\b|\bas\s+(an?\s+)?admin\b`), "injection:admin_claim"},
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|your)\s*(instructions?|rules?|prompts?|messages?)?`), "injection:ignore_previous"},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?(the\s+|your\s+)?(instructions?|rules?|prompts?|guidelines?)`), "injection:disregard_instructions"},
	{regexp.MustCompile(`(?i)(show|reveal|print|repeat)\s+(me\s+)?(the\s+|your\s+)?(system\s+)?prompt`), "injection:show_prompt"},
	{regexp.MustCompile(`(?i)reveal\s+(the\s+|your\s+)?system`), "injection:reveal_system"},
	{regexp.MustCompile(`(?i)execute\s+(this\s+|the\s+|some\s+)?code`), "injection:execute_code"},
	{regexp.MustCompile(`(?i)run\s+(this\s+|the\s+|some\s+)?sql`), "injection:run_sql"},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`), "injection:role_reassignment"},
	{regexp.MustCompile(`(?i)new\s+instructions?\s*:|<<\s*sys(tem)?\s*>>`), "injection:new_instructions"},
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`), "injection:special_tokens"},
	{regexp.MustCompile(`(?i)(what|list|show|give|tell)\s+(me\s+)?(all\s+)?(the\s+)?other\s+(users?|investors?|clients?)'?s?\s+(data|info|profiles?|records?)`), "injection:other_user_data"},
}

// ScanMessage checks an inbound chat message against the known prompt
// manipulation patterns. A match blocks the whole turn: no extraction
// call, no profile mutation, a security flag in the result.
func ScanMessage(message string) GuardResult {
	if strings.TrimSpace(message) == "" {
		return GuardResult{}
	}

	var reasons []string
	for _, p := range guardPatterns {
		if p.re.MatchString(message) {
			reasons = append(reasons, p.reason)
		}
	}

	return GuardResult{
		Blocked: len(reasons) > 0,
		Reasons: reasons,
	}
}

// ReasonSummary joins the fired signals for logging and the security
// flag payload.
func (r GuardResult) ReasonSummary() string {
	return strings.Join(r.Reasons, ",")
}
