package profile

import "strings"

// Wire keys produced by the extraction collaborator's function call.
// Canonical field names are accepted too, and win when both are present.
const (
	wireRole        = "role"
	wireHasCapGain  = "cap_gain_or_not"
	wireGainAmount  = "size_of_cap_gain"
	wireGainTiming  = "time_of_cap_gain"
	wireTargetState = "geographical_zone_of_investment"
	wireDevLocation = "location_of_development"

	wireTriggerAction = "trigger_action"
	wireTriggerReason = "reason"

	triggerShareSchedulingLink = "share_calendar_link"
	triggerMarkNeedsContact    = "mark_needs_contact"
)

// wireAliases maps each schema field to the extraction layer's key for it.
var wireAliases = map[Field]string{
	FieldRole:                wireRole,
	FieldHasCapitalGain:      wireHasCapGain,
	FieldCapitalGainAmount:   wireGainAmount,
	FieldCapitalGainTiming:   wireGainTiming,
	FieldTargetState:         wireTargetState,
	FieldDevelopmentLocation: wireDevLocation,
}

// FieldRejection records a field dropped during normalization or merge.
// Rejections are diagnostics for logging; they never abort processing.
type FieldRejection struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Triggers are the side-effect requests the extraction layer may attach
// to a payload, separate from profile fields.
type Triggers struct {
	ShareSchedulingLink bool
	MarkNeedsContact    bool
	Reason              string
}

// Normalized is the output of normalization: only schema fields, each
// already validated and coerced to its stored type.
type Normalized struct {
	Fields     map[Field]any
	Triggers   Triggers
	Rejections []FieldRejection
}

// Normalize converts an untrusted extraction payload into schema fields.
// Unknown keys are dropped silently. Keys carrying an unparseable value
// are dropped with a rejection entry rather than nulled, so prior stored
// values survive the merge. Normalization is pure: the same payload
// always yields the same result.
func Normalize(payload map[string]any) Normalized {
	out := Normalized{Fields: make(map[Field]any)}
	if len(payload) == 0 {
		return out
	}

	for _, spec := range Fields() {
		raw, key, ok := lookupField(payload, spec.Name)
		if !ok {
			continue
		}
		value, reason := coerceField(spec, raw)
		if reason != "" {
			out.Rejections = append(out.Rejections, FieldRejection{Field: key, Reason: reason})
			continue
		}
		out.Fields[spec.Name] = value
	}

	normalizeTriggers(payload, &out)
	return out
}

func lookupField(payload map[string]any, name Field) (any, string, bool) {
	if raw, ok := payload[string(name)]; ok {
		return raw, string(name), true
	}
	alias := wireAliases[name]
	if raw, ok := payload[alias]; ok {
		return raw, alias, true
	}
	return nil, "", false
}

func coerceField(spec FieldSpec, raw any) (any, string) {
	switch spec.Name {
	case FieldRole:
		s, ok := raw.(string)
		if !ok {
			return nil, "not a string"
		}
		role, ok := CanonicalRole(s)
		if !ok {
			return nil, "unrecognized role"
		}
		return role, ""
	case FieldHasCapitalGain:
		b, ok := CoerceBool(raw)
		if !ok {
			return nil, "not a boolean"
		}
		return b, ""
	case FieldCapitalGainAmount:
		amount, ok := NormalizeAmount(raw)
		if !ok {
			return nil, "invalid amount"
		}
		return amount, ""
	case FieldCapitalGainTiming:
		s, ok := raw.(string)
		if !ok {
			return nil, "not a string"
		}
		timing, ok := CanonicalTiming(s)
		if !ok {
			return nil, "invalid timing"
		}
		return timing, ""
	case FieldTargetState:
		s, ok := raw.(string)
		if !ok {
			return nil, "not a string"
		}
		code, ok := CanonicalRegionCode(s)
		if !ok {
			return nil, "invalid region code"
		}
		return code, ""
	case FieldDevelopmentLocation:
		s, ok := raw.(string)
		if !ok {
			return nil, "not a string"
		}
		location := strings.TrimSpace(s)
		if location == "" {
			return nil, "empty location"
		}
		return location, ""
	default:
		return nil, "unknown field"
	}
}

func normalizeTriggers(payload map[string]any, out *Normalized) {
	raw, ok := payload[wireTriggerAction]
	if !ok {
		return
	}
	action, ok := raw.(string)
	if !ok {
		out.Rejections = append(out.Rejections, FieldRejection{Field: wireTriggerAction, Reason: "not a string"})
		return
	}
	reason := ""
	if r, ok := payload[wireTriggerReason].(string); ok {
		reason = strings.TrimSpace(r)
	}
	switch strings.ToLower(strings.TrimSpace(action)) {
	case triggerShareSchedulingLink:
		out.Triggers.ShareSchedulingLink = true
	case triggerMarkNeedsContact:
		out.Triggers.MarkNeedsContact = true
		out.Triggers.Reason = reason
	default:
		out.Rejections = append(out.Rejections, FieldRejection{Field: wireTriggerAction, Reason: "unknown trigger"})
	}
}
