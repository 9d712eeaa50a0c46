package service

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/utils"
)

// Fixed user-facing replies
const (
	GreetingReply = "Hello! 👋 I'm Marrfa AI. You can ask me about Marrfa (team, CEO, policies, terms) " +
		"or search for properties in Dubai."
	EmptyQueryReply = "Hello! 👋 I noticed you sent an empty message. I'm Marrfa AI, here to help with " +
		"Dubai properties and Marrfa company details. What would you like to know?"
	RejectionReply           = "I'm trained specifically on Marrfa Real Estate. Please ask about Marrfa or properties in Dubai."
	NoInformationReply       = "I'm sorry, I don't have that information about Marrfa right now."
	NoMatchesReply           = "Sorry, I couldn't find any properties matching your criteria. 😔\n\nTry adjusting your search filters like location, budget, or property type."
	ListingsUnavailableReply = "Property search is temporarily unavailable. Please try again in a few minutes."
	InternalErrorReply       = "Something went wrong while handling your request. Please try again."
)

// usdToAED is the fixed dirham peg
const usdToAED = 3.67

// LimitReply tells an anonymous user they used up their free queries
func LimitReply(limit int) string {
	return fmt.Sprintf("🔒 You've reached the %d-query limit. Please log in to continue.", limit)
}

// CurrencyNoticeReply asks the user to restate a foreign currency budget in AED
func CurrencyNoticeReply(f model.PropertyFilter) string {
	amount := f.PriceMax
	if amount == nil {
		amount = f.PriceMin
	}
	if amount == nil {
		return fmt.Sprintf("⚠️ **Currency Conversion Required**\n\nProperty prices in Dubai are listed in AED (United Arab Emirates Dirhams). "+
			"Please state your %s budget in AED and search again.", f.Currency)
	}

	stated := humanize.Commaf(*amount)
	if f.Currency == "USD" {
		return fmt.Sprintf("⚠️ **Currency Conversion Required**\n\nYou specified %s USD. For accurate property search in Dubai, "+
			"please convert to AED (United Arab Emirates Dirhams).\n\nApproximately %s USD ≈ **%s AED**\n\n"+
			"Please search using AED amounts for best results.", stated, stated, humanize.Comma(int64(*amount*usdToAED+0.5)))
	}
	return fmt.Sprintf("⚠️ **Currency Conversion Required**\n\nYou specified %s %s. For property search in Dubai, please use AED "+
		"(United Arab Emirates Dirhams).\n\nPlease convert %s %s to AED and search again for accurate results.",
		stated, f.Currency, stated, f.Currency)
}

type replyContext struct {
	query    string // cleaned
	filter   model.PropertyFilter
	location string
	total    int
	shown    int
}

func (c replyContext) all() bool { return c.shown >= c.total }

func (c replyContext) mentions(phrases ...string) bool { return containsAny(c.query, phrases) }

// replyTemplate is tried in order; the first that returns true wins
type replyTemplate func(c replyContext) (string, bool)

var propertyReplyTemplates = []replyTemplate{
	func(c replyContext) (string, bool) {
		if !c.mentions("how many") || !c.mentions("marrfa", "marfa") {
			return "", false
		}
		if c.all() {
			return fmt.Sprintf("Marrfa currently has %d properties listed in %s. Here are all their premium offerings:", c.total, c.location), true
		}
		return fmt.Sprintf("Marrfa currently has %d properties listed in %s. Here are the top %d of their premium offerings:", c.total, c.location, c.shown), true
	},
	func(c replyContext) (string, bool) {
		if !c.mentions("all", "every", "show all", "as many as") {
			return "", false
		}
		if c.all() {
			return fmt.Sprintf("Here are all %d properties matching your criteria in %s:", c.total, c.location), true
		}
		return fmt.Sprintf("Here are the maximum %d properties I can display from the %d available in %s:", c.shown, c.total, c.location), true
	},
	func(c replyContext) (string, bool) {
		if !c.mentions("recommend", "suggest", "advise") || c.filter.PropertyType == nil {
			return "", false
		}
		kind := pluralType(*c.filter.PropertyType)
		if c.all() {
			return fmt.Sprintf("Based on market trends and availability, here are all %d %s in %s:", c.total, kind, c.location), true
		}
		return fmt.Sprintf("Based on market trends and availability, here are my top %d recommendations for %s in %s:", c.shown, kind, c.location), true
	},
	func(c replyContext) (string, bool) {
		f := c.filter
		if f.PriceMin == nil && f.PriceMax == nil {
			return "", false
		}
		var price string
		switch {
		case f.PriceMin != nil && f.PriceMax != nil:
			price = fmt.Sprintf(" within the AED %s - %s range", humanize.Commaf(*f.PriceMin), humanize.Commaf(*f.PriceMax))
		case f.PriceMin != nil:
			price = " starting from AED " + humanize.Commaf(*f.PriceMin)
		default:
			price = " up to AED " + humanize.Commaf(*f.PriceMax)
		}
		if c.all() {
			return fmt.Sprintf("The %s market offers all %d premium properties%s. Here are the listings:", c.location, c.total, price), true
		}
		return fmt.Sprintf("The %s market offers %d premium properties%s. Here are the top %d selections:", c.location, c.total, price, c.shown), true
	},
	func(c replyContext) (string, bool) {
		b := c.filter.Bedrooms
		if b == nil {
			return "", false
		}
		if b.Max == 0 {
			if c.all() {
				return fmt.Sprintf("Here are all %d studio apartments in %s, excellent investment opportunities:", c.total, c.location), true
			}
			return fmt.Sprintf("Studio apartments in %s are excellent investment opportunities. Here are %d premium studio options:", c.location, c.shown), true
		}
		beds := bedroomLabel(*b)
		if c.all() {
			return fmt.Sprintf("Here are all %d premium %s properties in %s:", c.total, beds, c.location), true
		}
		return fmt.Sprintf("%s offers %d premium %s properties. Here are the top %d standout options:", c.location, c.total, beds, c.shown), true
	},
	func(c replyContext) (string, bool) {
		if c.filter.PropertyType == nil {
			return "", false
		}
		kind := *c.filter.PropertyType
		if c.all() {
			return fmt.Sprintf("The %s %s market features all %d premium options. Here are the listings:", c.location, kind, c.total), true
		}
		return fmt.Sprintf("The %s %s market features %d premium options. Here are the top %d listings:", c.location, kind, c.total, c.shown), true
	},
	func(c replyContext) (string, bool) {
		if !c.mentions("best", "top", "premium", "luxury", "exclusive", "high end") {
			return "", false
		}
		if c.all() {
			return fmt.Sprintf("Here are all the best properties in %s, selected for their premium features and market appeal:", c.location), true
		}
		return fmt.Sprintf("Here are the %d best properties in %s, selected for their premium features and market appeal:", c.shown, c.location), true
	},
	func(c replyContext) (string, bool) {
		switch {
		case c.total <= 5 && c.all():
			return fmt.Sprintf("Here are all %d premium properties in %s, representing excellent opportunities in the local market:", c.total, c.location), true
		case c.total <= 15 && c.all():
			return fmt.Sprintf("Here are all %d premium options in the %s property market:", c.total, c.location), true
		case c.total <= 15:
			return fmt.Sprintf("The %s property market offers %d premium options. Here are the top %d most compelling listings:", c.location, c.total, c.shown), true
		case c.all():
			return fmt.Sprintf("Here are all %d premium properties available in %s, presenting diverse real estate opportunities:", c.total, c.location), true
		default:
			return fmt.Sprintf("With %d premium properties available, %s presents diverse real estate opportunities. Here are the top %d selections:", c.total, c.location, c.shown), true
		}
	},
}

// PropertyReply summarizes a non-empty result page for the user
func PropertyReply(query string, f model.PropertyFilter, total, shown int) string {
	if total <= 0 || shown <= 0 {
		return NoMatchesReply
	}
	if shown > total {
		total = shown
	}
	c := replyContext{
		query:    utils.CleanText(query),
		filter:   f,
		location: "Dubai",
		total:    total,
		shown:    shown,
	}
	if f.Location != nil && *f.Location != "" {
		c.location = *f.Location
	}
	for _, tmpl := range propertyReplyTemplates {
		if reply, ok := tmpl(c); ok {
			return reply
		}
	}
	return NoMatchesReply
}

func bedroomLabel(b model.BedroomRange) string {
	if b.IsSingle() {
		return fmt.Sprintf("%d-bedroom", b.Min)
	}
	return fmt.Sprintf("%d to %d bedroom", b.Min, b.Max)
}

func pluralType(t string) string {
	switch {
	case strings.HasSuffix(t, "x"):
		return t + "es"
	case strings.HasSuffix(t, "s"):
		return t
	default:
		return t + "s"
	}
}
