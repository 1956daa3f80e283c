package splits

import "strings"

// Matcher decides whether a fee's timekeeper is the bill's originator.
type Matcher interface {
	IsSelf(timekeeper, originator string) bool
}

// SubstringMatcher treats the timekeeper as the originator when the trimmed,
// lower-cased timekeeper contains the originator. Both must be non-empty.
// Names that are substrings of each other misclassify.
type SubstringMatcher struct{}

func (SubstringMatcher) IsSelf(timekeeper, originator string) bool {
	tk := strings.ToLower(strings.TrimSpace(timekeeper))
	orig := strings.ToLower(strings.TrimSpace(originator))
	if tk == "" || orig == "" {
		return false
	}
	return strings.Contains(tk, orig)
}

// ExactMatcher requires case-insensitive equality of the trimmed values.
type ExactMatcher struct{}

func (ExactMatcher) IsSelf(timekeeper, originator string) bool {
	tk := strings.TrimSpace(timekeeper)
	orig := strings.TrimSpace(originator)
	if tk == "" || orig == "" {
		return false
	}
	return strings.EqualFold(tk, orig)
}

// MatcherByName resolves a configured matcher name. Unknown names fall back to substring.
func MatcherByName(name string) Matcher {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "exact":
		return ExactMatcher{}
	default:
		return SubstringMatcher{}
	}
}
