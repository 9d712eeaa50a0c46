package service

import (
	"strings"

	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/utils"
)

// IntentRule maps a predicate over cleaned query text to an intent
type IntentRule struct {
	Name   string
	Match  func(clean string) bool
	Intent model.Intent
}

var greetingPhrases = []string{
	"hi", "hello", "hey", "yo", "hiya", "greetings",
	"assalamualaikum", "assalamu alaikum", "as salamu alaykum", "salam", "marhaba",
	"good morning", "good afternoon", "good evening",
}

var legalPhrases = []string{
	"privacy", "privacy policy", "terms and conditions", "terms of service", "terms of use",
	"t c", "tos", "cookie policy", "refund policy",
}

var propertyPhrases = []string{
	"property", "properties", "apartment", "apartments", "villa", "villas",
	"townhouse", "townhouses", "home", "homes", "house", "houses",
	"flat", "flats", "studio", "studios", "penthouse", "penthouses",
	"duplex", "duplexes", "plot", "plots", "real estate", "rent", "rental", "buy", "buying", "sale",
	"price", "prices", "budget", "bedroom", "bedrooms", "bed", "beds", "bhk", "bathroom", "bathrooms",
	"aed", "dirham", "dirhams", "million", "listing", "listings", "unit", "units",
	"area", "location", "off plan", "offplan", "ready to move", "handover",
	"emaar", "sobha", "nakheel", "damac", "meraas", "danube", "binghatti", "azizi", "ellington", "omniyat",
	"suggest", "show", "find", "search", "looking for", "invest in",
}

var companyPhrases = []string{
	"marrfa", "ceo", "founder", "founders", "co founder", "owner", "team", "leadership",
	"contact", "email", "phone", "office", "privacy", "policy", "terms", "conditions",
	"partnership", "partner", "company", "careers", "jobs",
	"history", "values", "mission", "vision", "services", "headquarters",
}

// mentionsPrice catches scaled amounts like "2m" or "500k" that carry no noun
func mentionsPrice(clean string) bool {
	for _, m := range priceBare.FindAllStringSubmatch(normalizePriceText(clean), -1) {
		if a, ok := parseAmount(m[1]); ok && a.mult > 1 {
			return true
		}
	}
	return false
}

// DefaultIntentRules builds the ordered fallback rule list. Area names and
// aliases from g count as property terms. The last rule always matches.
func DefaultIntentRules(g *Gazetteer) []IntentRule {
	if g == nil {
		g = DefaultGazetteer()
	}
	property := append(append([]string{}, propertyPhrases...), g.Aliases()...)

	return []IntentRule{
		{Name: "property_terms", Intent: model.IntentProperty, Match: func(clean string) bool {
			return containsAny(clean, property) || mentionsPrice(clean)
		}},
		{Name: "company_terms", Intent: model.IntentCompany, Match: func(clean string) bool {
			return containsAny(clean, companyPhrases)
		}},
		{Name: "default", Intent: model.IntentOutOfContext, Match: func(string) bool { return true }},
	}
}

// EvaluateRules returns the intent of the first matching rule, and
// OUT_OF_CONTEXT when none matches
func EvaluateRules(rules []IntentRule, text string) (model.Intent, string) {
	clean := utils.CleanText(text)
	for _, r := range rules {
		if r.Match(clean) {
			return r.Intent, r.Name
		}
	}
	return model.IntentOutOfContext, "default"
}

// IsGreeting reports whether text is only a greeting, or a greeting followed
// by a few words of small talk that the rules would not route anywhere
func IsGreeting(text string, rules []IntentRule) bool {
	clean := utils.CleanText(text)
	if clean == "" {
		return false
	}
	for _, g := range greetingPhrases {
		if clean == g {
			return true
		}
		if !strings.HasPrefix(clean, g+" ") {
			continue
		}
		rest := strings.TrimPrefix(clean, g+" ")
		if intent, _ := EvaluateRules(rules, rest); intent != model.IntentOutOfContext {
			return false
		}
		return len(strings.Fields(rest)) <= 4
	}
	return false
}

// IsLegalQuery reports whether text asks about privacy, terms or similar policies
func IsLegalQuery(text string) bool {
	// "t&c" cleans to "t c"
	return containsAny(utils.CleanText(text), legalPhrases)
}

func containsAny(clean string, phrases []string) bool {
	for _, p := range phrases {
		if utils.ContainsPhrase(clean, p) {
			return true
		}
	}
	return false
}
