package profile

import "strings"

// investorFields are the fields gated behind the Investor role, in
// schema order.
var investorFields = []Field{
	FieldHasCapitalGain,
	FieldCapitalGainAmount,
	FieldCapitalGainTiming,
	FieldTargetState,
}

// MergeFields applies normalized fields to the profile in place. The
// effective role is the incoming role when present, otherwise the stored
// one, and only the effective role's field group accepts writes. Fields
// belonging to an inactive group are dropped with a rejection entry, and
// investor fields arriving before any role is known are dropped too.
// Role transitions erase the abandoned group's values outright.
func MergeFields(p *Profile, fields map[Field]any) []FieldRejection {
	var rejections []FieldRejection

	if role, ok := fields[FieldRole].(Role); ok {
		r := role
		p.Role = &r
	}

	switch {
	case p.Role != nil && *p.Role == RoleInvestor:
		if v, ok := fields[FieldHasCapitalGain].(bool); ok {
			b := v
			p.HasCapitalGain = &b
		}
		if v, ok := fields[FieldCapitalGainAmount].(float64); ok {
			amount := v
			p.CapitalGainAmount = &amount
		}
		if v, ok := fields[FieldCapitalGainTiming].(CapGainTiming); ok {
			timing := v
			p.CapitalGainTiming = &timing
		}
		if v, ok := fields[FieldTargetState].(string); ok {
			state := v
			p.TargetState = &state
		}
		if p.HasCapitalGain == nil {
			noGain := false
			p.HasCapitalGain = &noGain
		}
		if _, ok := fields[FieldDevelopmentLocation]; ok {
			rejections = append(rejections, FieldRejection{Field: string(FieldDevelopmentLocation), Reason: "inactive for role"})
		}
		p.DevelopmentLocation = nil

	case p.Role != nil && *p.Role == RoleDeveloper:
		for _, f := range investorFields {
			if _, ok := fields[f]; ok {
				rejections = append(rejections, FieldRejection{Field: string(f), Reason: "inactive for role"})
			}
		}
		p.HasCapitalGain = nil
		p.CapitalGainAmount = nil
		p.CapitalGainTiming = nil
		p.TargetState = nil
		if v, ok := fields[FieldDevelopmentLocation].(string); ok {
			location := v
			p.DevelopmentLocation = &location
		}
		if p.DevelopmentLocation == nil {
			location := LocationToBeDetermined
			p.DevelopmentLocation = &location
		}

	default:
		// No role yet: group fields are not accepted until one is known.
		for _, f := range investorFields {
			if _, ok := fields[f]; ok {
				rejections = append(rejections, FieldRejection{Field: string(f), Reason: "no role captured yet"})
			}
		}
		if _, ok := fields[FieldDevelopmentLocation]; ok {
			rejections = append(rejections, FieldRejection{Field: string(FieldDevelopmentLocation), Reason: "no role captured yet"})
		}
		p.DevelopmentLocation = nil
	}

	rejections = append(rejections, validateStoredFields(p)...)
	return rejections
}

// validateStoredFields re-checks every populated field against the
// schema, dropping values that fail. Validation runs on final values even
// though the normalizer already checked incoming ones, so a corrupt
// stored record cannot survive a merge.
func validateStoredFields(p *Profile) []FieldRejection {
	var rejections []FieldRejection

	if p.Role != nil {
		if role, ok := CanonicalRole(string(*p.Role)); ok {
			*p.Role = role
		} else {
			p.Role = nil
			rejections = append(rejections, FieldRejection{Field: string(FieldRole), Reason: "unrecognized role"})
			forceGroups(p)
		}
	}
	if p.CapitalGainTiming != nil && !IsValidTiming(string(*p.CapitalGainTiming)) {
		p.CapitalGainTiming = nil
		rejections = append(rejections, FieldRejection{Field: string(FieldCapitalGainTiming), Reason: "invalid timing"})
	}
	if p.TargetState != nil {
		if code, ok := CanonicalRegionCode(*p.TargetState); ok {
			*p.TargetState = code
		} else {
			p.TargetState = nil
			rejections = append(rejections, FieldRejection{Field: string(FieldTargetState), Reason: "invalid region code"})
		}
	}
	if p.CapitalGainAmount != nil {
		if amount, ok := validAmount(*p.CapitalGainAmount); ok {
			*p.CapitalGainAmount = amount
		} else {
			p.CapitalGainAmount = nil
			rejections = append(rejections, FieldRejection{Field: string(FieldCapitalGainAmount), Reason: "invalid amount"})
		}
	}
	if p.DevelopmentLocation != nil {
		trimmed := strings.TrimSpace(*p.DevelopmentLocation)
		if trimmed == "" {
			p.DevelopmentLocation = nil
			rejections = append(rejections, FieldRejection{Field: string(FieldDevelopmentLocation), Reason: "empty location"})
			forceGroups(p)
		} else {
			*p.DevelopmentLocation = trimmed
		}
	}

	return rejections
}

// forceGroups applies the role exclusivity rules: investors and roleless
// profiles carry no development location, developers carry no investor
// fields and always have a location, falling back to the placeholder.
// Returns true when any value had to change.
func forceGroups(p *Profile) bool {
	changed := false
	switch {
	case p.Role != nil && *p.Role == RoleDeveloper:
		if p.HasCapitalGain != nil || p.CapitalGainAmount != nil || p.CapitalGainTiming != nil || p.TargetState != nil {
			p.HasCapitalGain = nil
			p.CapitalGainAmount = nil
			p.CapitalGainTiming = nil
			p.TargetState = nil
			changed = true
		}
		if p.DevelopmentLocation == nil {
			location := LocationToBeDetermined
			p.DevelopmentLocation = &location
			changed = true
		}
	default:
		if p.DevelopmentLocation != nil {
			p.DevelopmentLocation = nil
			changed = true
		}
	}
	return changed
}

// EnforceInvariants re-applies the structural rules to a record about to
// be persisted. It returns true when a correction was needed; reaching
// that path means a bug upstream, since MergeFields output already
// satisfies the rules.
func EnforceInvariants(p *Profile) bool {
	changed := len(validateStoredFields(p)) > 0
	if forceGroups(p) {
		changed = true
	}
	return changed
}
