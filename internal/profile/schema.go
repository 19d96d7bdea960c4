package profile

import (
	"math"
	"strconv"
	"strings"
)

// Field names the recognized profile attributes. These are the only keys
// the normalizer will ever emit.
type Field string

const (
	FieldRole                Field = "role"
	FieldHasCapitalGain      Field = "has_capital_gain"
	FieldCapitalGainAmount   Field = "capital_gain_amount"
	FieldCapitalGainTiming   Field = "capital_gain_timing"
	FieldTargetState         Field = "target_state"
	FieldDevelopmentLocation Field = "development_location"
)

// FieldType classifies how a field's raw value is coerced.
type FieldType string

const (
	FieldTypeEnum       FieldType = "enum"
	FieldTypeBool       FieldType = "bool"
	FieldTypeAmount     FieldType = "amount"
	FieldTypeRegionCode FieldType = "region_code"
	FieldTypeText       FieldType = "text"
)

// RoleScope says which role a field belongs to. Common fields apply to
// every profile.
type RoleScope string

const (
	ScopeCommon    RoleScope = "common"
	ScopeInvestor  RoleScope = "investor"
	ScopeDeveloper RoleScope = "developer"
)

// FieldSpec describes one recognized field.
type FieldSpec struct {
	Name  Field
	Type  FieldType
	Enum  []string
	Scope RoleScope
}

// Fields returns the ordered field schema. The slice is freshly allocated
// on each call so callers may not corrupt the schema.
func Fields() []FieldSpec {
	return []FieldSpec{
		{Name: FieldRole, Type: FieldTypeEnum, Enum: []string{string(RoleInvestor), string(RoleDeveloper)}, Scope: ScopeCommon},
		{Name: FieldHasCapitalGain, Type: FieldTypeBool, Scope: ScopeInvestor},
		{Name: FieldCapitalGainAmount, Type: FieldTypeAmount, Scope: ScopeInvestor},
		{Name: FieldCapitalGainTiming, Type: FieldTypeEnum, Enum: []string{string(TimingWithin180Days), string(TimingMoreThan180DaysAgo), string(TimingUpcoming)}, Scope: ScopeInvestor},
		{Name: FieldTargetState, Type: FieldTypeRegionCode, Scope: ScopeInvestor},
		{Name: FieldDevelopmentLocation, Type: FieldTypeText, Scope: ScopeDeveloper},
	}
}

// usStateCodes is the closed set of valid target-state codes: the fifty
// states plus DC.
var usStateCodes = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {},
	"DE": {}, "FL": {}, "GA": {}, "HI": {}, "ID": {}, "IL": {}, "IN": {},
	"IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {}, "MD": {}, "MA": {},
	"MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {}, "NV": {},
	"NH": {}, "NJ": {}, "NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {},
	"OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {}, "SD": {}, "TN": {},
	"TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {},
	"WY": {}, "DC": {},
}

// IsValidRole reports whether the value names a recognized role,
// case-insensitively.
func IsValidRole(value string) bool {
	_, ok := CanonicalRole(value)
	return ok
}

// CanonicalRole maps a raw role string to its stored capitalization.
func CanonicalRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "investor":
		return RoleInvestor, true
	case "developer":
		return RoleDeveloper, true
	default:
		return "", false
	}
}

// IsValidTiming reports exact membership in the stored timing enumeration.
func IsValidTiming(value string) bool {
	switch CapGainTiming(value) {
	case TimingWithin180Days, TimingMoreThan180DaysAgo, TimingUpcoming:
		return true
	default:
		return false
	}
}

// timingAliases maps the phrasings the extraction collaborator produces
// onto the stored enumeration. Keys are lowercase.
var timingAliases = map[string]CapGainTiming{
	"within_180_days":        TimingWithin180Days,
	"last 180 days":          TimingWithin180Days,
	"more_than_180_days_ago": TimingMoreThan180DaysAgo,
	"more than 180 days ago": TimingMoreThan180DaysAgo,
	"upcoming":               TimingUpcoming,
}

// CanonicalTiming maps a raw timing string, including the extraction
// layer's phrasings, to the stored enumeration.
func CanonicalTiming(value string) (CapGainTiming, bool) {
	timing, ok := timingAliases[strings.ToLower(strings.TrimSpace(value))]
	return timing, ok
}

// IsValidRegionCode reports whether the value is an uppercase two-letter
// member of the state-code set.
func IsValidRegionCode(value string) bool {
	if len(value) != 2 {
		return false
	}
	_, ok := usStateCodes[value]
	return ok
}

// CanonicalRegionCode uppercases a raw region code and checks membership.
func CanonicalRegionCode(value string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(value))
	if !IsValidRegionCode(code) {
		return "", false
	}
	return code, true
}

// NormalizeAmount coerces a raw monetary value into a plain non-negative
// number. Strings may carry currency symbols and thousands separators.
// The second return is false when the value cannot be normalized; callers
// drop the field rather than substitute zero.
func NormalizeAmount(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return validAmount(v)
	case float32:
		return validAmount(float64(v))
	case int:
		return validAmount(float64(v))
	case int64:
		return validAmount(float64(v))
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(v))
		if cleaned == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return validAmount(parsed)
	default:
		return 0, false
	}
}

func validAmount(v float64) (float64, bool) {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// CoerceBool interprets the boolean shapes the extraction layer produces.
func CoerceBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y":
			return true, true
		case "false", "no", "n":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}
