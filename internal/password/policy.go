// Package password scores candidate passwords against a fixed eight-point rubric
// and classifies them into strength tiers.
package password

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinLength is the minimum number of characters required by the length check.
const MinLength = 12

// Tier is a discrete password-strength classification.
type Tier int

const (
	Weak Tier = iota
	Medium
	Strong
	VeryStrong
)

var tierNames = map[Tier]string{
	Weak:       "Weak",
	Medium:     "Medium",
	Strong:     "Strong",
	VeryStrong: "Very Strong",
}

// String returns the display name of the tier.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "Unknown"
}

// AtLeast reports whether t is the same as or stronger than other.
func (t Tier) AtLeast(other Tier) bool {
	return t >= other
}

// MarshalJSON renders the tier as its display name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// TierForScore maps a rubric score (0..MaxScore) to a tier.
func TierForScore(score int) Tier {
	switch {
	case score >= 8:
		return VeryStrong
	case score >= 6:
		return Strong
	case score >= 4:
		return Medium
	default:
		return Weak
	}
}

// Requirement identifies one rubric check.
type Requirement string

const (
	RequireLength      Requirement = "length"
	RequireLowercase   Requirement = "lowercase"
	RequireUppercase   Requirement = "uppercase"
	RequireDigit       Requirement = "digit"
	RequireSymbol      Requirement = "symbol"
	RequireNoSpaces    Requirement = "no_spaces"
	RequireNotIdentity Requirement = "not_identity"
	RequireNotCommon   Requirement = "not_common"
)

type check struct {
	requirement Requirement
	suggestion  string
	passes      func(password, identity string) bool
}

// rubric order is also the order suggestions are reported in.
var rubric = []check{
	{RequireLength, "Use at least 12 characters", func(p, _ string) bool {
		return utf8.RuneCountInString(p) >= MinLength
	}},
	{RequireLowercase, "Include lowercase letters", func(p, _ string) bool {
		return containsRune(p, func(r rune) bool { return r >= 'a' && r <= 'z' })
	}},
	{RequireUppercase, "Include uppercase letters", func(p, _ string) bool {
		return containsRune(p, func(r rune) bool { return r >= 'A' && r <= 'Z' })
	}},
	{RequireDigit, "Include numbers", func(p, _ string) bool {
		return containsRune(p, func(r rune) bool { return r >= '0' && r <= '9' })
	}},
	{RequireSymbol, "Include symbols (e.g. @, #, $, etc.)", func(p, _ string) bool {
		return containsRune(p, isSymbol)
	}},
	{RequireNoSpaces, "Avoid using spaces", func(p, _ string) bool {
		return !containsRune(p, unicode.IsSpace)
	}},
	{RequireNotIdentity, "Password cannot be the same as username", func(p, identity string) bool {
		return Normalize(p) != Normalize(identity)
	}},
	{RequireNotCommon, "Avoid using common passwords", func(p, _ string) bool {
		return !IsCommon(p)
	}},
}

// MaxScore is the score of a password that passes every check.
var MaxScore = len(rubric)

// Result is the outcome of evaluating a password.
type Result struct {
	Score       int           `json:"score"`
	Tier        Tier          `json:"strength"`
	Failed      []Requirement `json:"failed"`
	Suggestions []string      `json:"suggestions"`
}

// Acceptable reports whether the result meets the registration threshold.
func (r Result) Acceptable() bool {
	return r.Tier.AtLeast(Strong)
}

// Evaluate scores password against the rubric. identity is the username (or other
// identifying string) the password must not repeat.
func Evaluate(password, identity string) Result {
	res := Result{
		Failed:      []Requirement{},
		Suggestions: []string{},
	}
	for _, c := range rubric {
		if c.passes(password, identity) {
			res.Score++
			continue
		}
		res.Failed = append(res.Failed, c.requirement)
		res.Suggestions = append(res.Suggestions, c.suggestion)
	}
	res.Tier = TierForScore(res.Score)
	return res
}

// Normalize trims surrounding whitespace and case-folds s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// isSymbol treats anything outside ASCII letters and digits as a symbol,
// underscore included.
func isSymbol(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return true
}

func containsRune(s string, pred func(rune) bool) bool {
	return strings.IndexFunc(s, pred) >= 0
}
