package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWirePayload(t *testing.T) {
	payload := map[string]any{
		"role":                            "investor",
		"cap_gain_or_not":                 "yes",
		"size_of_cap_gain":                "$1,300,000",
		"time_of_cap_gain":                "Last 180 days",
		"geographical_zone_of_investment": "fl",
	}

	out := Normalize(payload)

	require.Empty(t, out.Rejections)
	assert.Equal(t, RoleInvestor, out.Fields[FieldRole])
	assert.Equal(t, true, out.Fields[FieldHasCapitalGain])
	assert.Equal(t, float64(1300000), out.Fields[FieldCapitalGainAmount])
	assert.Equal(t, TimingWithin180Days, out.Fields[FieldCapitalGainTiming])
	assert.Equal(t, "FL", out.Fields[FieldTargetState])
}

func TestNormalizeDropNotCorrupt(t *testing.T) {
	// One invalid field next to one valid field: the valid one survives,
	// the invalid one is absent, nothing blows up.
	out := Normalize(map[string]any{
		"role":         "investor",
		"target_state": "California",
	})

	assert.Equal(t, RoleInvestor, out.Fields[FieldRole])
	_, present := out.Fields[FieldTargetState]
	assert.False(t, present)
	require.Len(t, out.Rejections, 1)
	assert.Equal(t, "target_state", out.Rejections[0].Field)
	assert.Equal(t, "invalid region code", out.Rejections[0].Reason)
}

func TestNormalizeUnknownKeysDroppedSilently(t *testing.T) {
	out := Normalize(map[string]any{
		"favorite_color": "blue",
		"role":           "developer",
		"nested":         map[string]any{"x": 1},
	})

	assert.Equal(t, RoleDeveloper, out.Fields[FieldRole])
	assert.Len(t, out.Fields, 1)
	assert.Empty(t, out.Rejections)
}

func TestNormalizeInvalidValuesDroppedNotNulled(t *testing.T) {
	out := Normalize(map[string]any{
		"cap_gain_or_not":  "maybe",
		"size_of_cap_gain": "a lot",
		"time_of_cap_gain": "eventually",
		"role":             42,
	})

	assert.Empty(t, out.Fields)
	assert.Len(t, out.Rejections, 4)
	for _, rejection := range out.Rejections {
		assert.NotEmpty(t, rejection.Reason)
	}
}

func TestNormalizeCanonicalKeysAccepted(t *testing.T) {
	out := Normalize(map[string]any{
		"role":                 "developer",
		"development_location": "Austin, TX",
	})

	assert.Equal(t, RoleDeveloper, out.Fields[FieldRole])
	assert.Equal(t, "Austin, TX", out.Fields[FieldDevelopmentLocation])
}

func TestNormalizeCanonicalKeyWinsOverAlias(t *testing.T) {
	out := Normalize(map[string]any{
		"capital_gain_amount": 750000.0,
		"size_of_cap_gain":    "250000",
		"role":                "investor",
	})

	assert.Equal(t, float64(750000), out.Fields[FieldCapitalGainAmount])
}

func TestNormalizeTriggers(t *testing.T) {
	t.Run("share scheduling link", func(t *testing.T) {
		out := Normalize(map[string]any{"trigger_action": "share_calendar_link"})
		assert.True(t, out.Triggers.ShareSchedulingLink)
		assert.False(t, out.Triggers.MarkNeedsContact)
	})

	t.Run("mark needs contact with reason", func(t *testing.T) {
		out := Normalize(map[string]any{
			"trigger_action": "mark_needs_contact",
			"reason":         "User asked for a call",
		})
		assert.True(t, out.Triggers.MarkNeedsContact)
		assert.Equal(t, "User asked for a call", out.Triggers.Reason)
	})

	t.Run("unknown trigger rejected", func(t *testing.T) {
		out := Normalize(map[string]any{"trigger_action": "launch_rockets"})
		assert.False(t, out.Triggers.ShareSchedulingLink)
		assert.False(t, out.Triggers.MarkNeedsContact)
		require.Len(t, out.Rejections, 1)
		assert.Equal(t, "unknown trigger", out.Rejections[0].Reason)
	})
}

func TestNormalizeIsPureAndDeterministic(t *testing.T) {
	payload := map[string]any{
		"role":                            "Investor",
		"size_of_cap_gain":                "$500,000",
		"geographical_zone_of_investment": "tx",
		"bogus":                           []any{1, 2},
	}

	first := Normalize(payload)
	second := Normalize(payload)

	assert.Equal(t, first.Fields, second.Fields)
	assert.Equal(t, first.Rejections, second.Rejections)
	assert.Equal(t, first.Triggers, second.Triggers)

	// The input payload is not mutated.
	assert.Equal(t, "Investor", payload["role"])
	assert.Len(t, payload, 4)
}

func TestNormalizeValidationIsIdempotent(t *testing.T) {
	// Feeding already-normalized values back through yields the same
	// mapping.
	out := Normalize(map[string]any{
		"role":                "investor",
		"has_capital_gain":    true,
		"capital_gain_amount": 1300000.0,
		"capital_gain_timing": "within_180_days",
		"target_state":        "FL",
	})
	require.Empty(t, out.Rejections)

	repayload := make(map[string]any, len(out.Fields))
	for field, value := range out.Fields {
		switch v := value.(type) {
		case Role:
			repayload[string(field)] = string(v)
		case CapGainTiming:
			repayload[string(field)] = string(v)
		default:
			repayload[string(field)] = v
		}
	}
	again := Normalize(repayload)

	assert.Empty(t, again.Rejections)
	assert.Equal(t, out.Fields, again.Fields)
}

func TestNormalizeEmptyPayload(t *testing.T) {
	assert.Empty(t, Normalize(nil).Fields)
	assert.Empty(t, Normalize(map[string]any{}).Fields)
}
