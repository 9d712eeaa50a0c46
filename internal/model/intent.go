package model

import "strings"

// Intent is the classified purpose of a query
type Intent string

const (
	IntentProperty     Intent = "PROPERTY"
	IntentCompany      Intent = "COMPANY"
	IntentOutOfContext Intent = "OUT_OF_CONTEXT"
)

// Classification methods
const (
	MethodLLM       = "llm"
	MethodRuleBased = "rule_based"
	MethodLegalRule = "legal_rule"
	MethodGreeting  = "greeting"
	MethodEmpty     = "empty"
)

// Classification is the classifier output: the intent plus how it was decided
type Classification struct {
	Intent Intent `json:"intent"`
	Method string `json:"method"`
}

// Intents lists every valid intent label
func Intents() []Intent {
	return []Intent{IntentProperty, IntentCompany, IntentOutOfContext}
}

// ParseIntent maps a label such as "property" or "OUT_OF_CONTEXT" to an Intent
func ParseIntent(label string) (Intent, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch Intent(normalized) {
	case IntentProperty, IntentCompany, IntentOutOfContext:
		return Intent(normalized), true
	}
	return "", false
}

// IsValid reports whether i is one of the three intents
func (i Intent) IsValid() bool {
	switch i {
	case IntentProperty, IntentCompany, IntentOutOfContext:
		return true
	}
	return false
}
