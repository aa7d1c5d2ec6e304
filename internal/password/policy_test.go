package password_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authsvc/internal/password"
)

func TestEvaluate_AllChecksPass(t *testing.T) {
	res := password.Evaluate("Tr0ub4dor&3times!", "alice")

	assert.Equal(t, password.MaxScore, res.Score)
	assert.Equal(t, password.VeryStrong, res.Tier)
	assert.Empty(t, res.Failed)
	assert.Empty(t, res.Suggestions)
	assert.True(t, res.Acceptable())
}

func TestEvaluate_SingleFailures(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		identity   string
		failed     password.Requirement
		suggestion string
	}{
		{"too short", "Tr0ub4dor&3", "alice", password.RequireLength, "Use at least 12 characters"},
		{"no lowercase", "TR0UB4DOR&3TIMES!", "alice", password.RequireLowercase, "Include lowercase letters"},
		{"no uppercase", "tr0ub4dor&3times!", "alice", password.RequireUppercase, "Include uppercase letters"},
		{"no digit", "Troubador&threetimes!", "alice", password.RequireDigit, "Include numbers"},
		{"no symbol", "Tr0ub4dor3times", "alice", password.RequireSymbol, "Include symbols (e.g. @, #, $, etc.)"},
		{"contains space", "Tr0ub4dor &3times", "alice", password.RequireNoSpaces, "Avoid using spaces"},
		{"same as identity", "Tr0ub4dor&3times!", "  tr0ub4dor&3TIMES! ", password.RequireNotIdentity, "Password cannot be the same as username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := password.Evaluate(tt.password, tt.identity)
			assert.Equal(t, password.MaxScore-1, res.Score)
			assert.Equal(t, password.Strong, res.Tier)
			assert.Equal(t, []password.Requirement{tt.failed}, res.Failed)
			assert.Equal(t, []string{tt.suggestion}, res.Suggestions)
		})
	}
}

func TestEvaluate_CommonPassword(t *testing.T) {
	res := password.Evaluate("PassWord1", "alice")

	assert.Contains(t, res.Failed, password.RequireNotCommon)
	assert.Contains(t, res.Suggestions, "Avoid using common passwords")
	assert.False(t, res.Acceptable())
}

func TestEvaluate_RemovingCheckNeverRaisesTier(t *testing.T) {
	strong := password.Evaluate("Tr0ub4dor&3times!", "alice")
	weaker := []string{
		"Tr0ub4dor&3",
		"tr0ub4dor&3times!",
		"Tr0ub4dor3times",
		"Tr0ub4dor &3times",
	}
	for _, p := range weaker {
		res := password.Evaluate(p, "alice")
		assert.True(t, strong.Tier.AtLeast(res.Tier), p)
		assert.Less(t, res.Score, strong.Score, p)
	}
}

func TestEvaluate_SuggestionsDependOnlyOnFailingSet(t *testing.T) {
	// both fail only the uppercase and symbol checks
	a := password.Evaluate("correcthorse42battery", "alice")
	b := password.Evaluate("zzzzzzzzzzzzzz9q", "bob")

	require.Equal(t, a.Failed, b.Failed)
	assert.Equal(t, a.Suggestions, b.Suggestions)
	assert.Equal(t, a, password.Evaluate("correcthorse42battery", "alice"))
}

func TestEvaluate_Tiers(t *testing.T) {
	tests := []struct {
		password string
		tier     password.Tier
	}{
		{"123456", password.Weak},
		{"alice", password.Weak},
		{"abc", password.Medium},
		{"abcdef12", password.Medium},
		{"abcdef12!", password.Strong},
		{"Abcdef12!", password.Strong},
		{"Abcdef12!xyzw", password.VeryStrong},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.tier, password.Evaluate(tt.password, "alice").Tier)
		})
	}
}

func TestTierForScore(t *testing.T) {
	expected := []password.Tier{
		password.Weak, password.Weak, password.Weak, password.Weak,
		password.Medium, password.Medium,
		password.Strong, password.Strong,
		password.VeryStrong,
	}
	for score, tier := range expected {
		assert.Equal(t, tier, password.TierForScore(score), "score %d", score)
	}
}

func TestTier_JSON(t *testing.T) {
	b, err := json.Marshal(password.Evaluate("Abcdef12!", "alice"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"strength":"Strong"`)
	assert.Equal(t, "Very Strong", password.VeryStrong.String())
}

func TestIsCommon(t *testing.T) {
	assert.True(t, password.IsCommon("LetMeIn"))
	assert.False(t, password.IsCommon("letmein2"))
}
