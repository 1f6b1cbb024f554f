package core

import (
	"regexp"
	"strings"
)

// Intent is the closed set of things a user turn can ask for. The matching
// heuristics live here and nowhere else, so they can be tuned and tested
// without touching the state machine.
type Intent int

const (
	IntentGeneral Intent = iota
	IntentBalance
	IntentTransactions
	IntentSavings
	IntentAffirm
	IntentUpload
	IntentExit
	IntentGoodbye
)

var (
	reExistingCustomer = regexp.MustCompile(`\b(exist|current|old|return)\w*`)
	reNewCustomer      = regexp.MustCompile(`\b(new|sign|open|join)\w*`)
)

// LooksLikeExistingCustomer reports whether a reply to the opening question
// reads like an existing-customer declaration.
func LooksLikeExistingCustomer(text string) bool {
	return reExistingCustomer.MatchString(strings.ToLower(text))
}

// LooksLikeNewCustomer reports whether the reply reads like a new-customer
// declaration.
func LooksLikeNewCustomer(text string) bool {
	return reNewCustomer.MatchString(strings.ToLower(text))
}

// Classify maps free text onto an Intent. Exact-word intents (exit, upload,
// yes) are checked before substring ones so "yes" never falls through to a
// model call.
func Classify(text string) Intent {
	low := strings.ToLower(strings.TrimSpace(text))

	switch low {
	case "exit", "quit", "leave":
		return IntentExit
	case "bye", "thanks", "thank you":
		return IntentGoodbye
	case "upload":
		return IntentUpload
	case "yes", "y", "yeah", "yep":
		return IntentAffirm
	}

	switch {
	case strings.Contains(low, "balance"):
		return IntentBalance
	case strings.Contains(low, "transaction"), strings.Contains(low, "recent"):
		return IntentTransactions
	case strings.Contains(low, "saving"):
		return IntentSavings
	}

	return IntentGeneral
}
