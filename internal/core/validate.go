package core

import "strings"

// Lead-capture validation. Deliberately demo-grade: each rule is a named
// pure predicate so the chat flow never embeds validation inline.

// ValidLeadName accepts any non-empty name.
func ValidLeadName(s string) bool {
	return strings.TrimSpace(s) != ""
}

// ValidLeadPhone requires at least ten digits once punctuation and spaces
// are stripped.
func ValidLeadPhone(s string) bool {
	return len(digitsOf(s)) >= 10
}

// ValidLeadEmail requires an "@" somewhere in the middle.
func ValidLeadEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
