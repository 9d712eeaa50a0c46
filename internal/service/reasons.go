package service

import (
	"regexp"
	"strconv"
	"strings"

	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/utils"
)

// Match reason constants
const (
	ReasonBedroomsMatch = "Bedrooms match"
	ReasonUnitTypeMatch = "Unit type match"
	ReasonLocationMatch = "Location match"
	ReasonPriceMatch    = "Price within budget"
	ReasonStatusMatch   = "Status match"
	ReasonGeneralMatch  = "General match"
)

var bedroomCount = regexp.MustCompile(`\d+|studio`)

// AnnotateReasons sets MatchedReasons on every listing in place. The order of
// listings is never changed.
func AnnotateReasons(listings []model.PropertyListing, f model.PropertyFilter) {
	for i := range listings {
		listings[i].MatchedReasons = matchedReasons(listings[i], f)
	}
}

// matchedReasons generates human-readable reasons for why this listing matched
func matchedReasons(l model.PropertyListing, f model.PropertyFilter) []string {
	reasons := []string{}

	if f.Bedrooms != nil && l.Bedrooms != nil && bedroomsOverlap(*l.Bedrooms, *f.Bedrooms) {
		reasons = append(reasons, ReasonBedroomsMatch)
	}

	if f.PropertyType != nil && l.PropertyType != nil &&
		strings.Contains(utils.NormalizeText(*l.PropertyType), *f.PropertyType) {
		reasons = append(reasons, ReasonUnitTypeMatch)
	}

	if f.Location != nil && l.Location != nil &&
		strings.Contains(utils.NormalizeText(*l.Location), utils.NormalizeText(*f.Location)) {
		reasons = append(reasons, ReasonLocationMatch)
	}

	if withinBudget(l, f) {
		reasons = append(reasons, ReasonPriceMatch)
	}

	if f.Status != nil && l.CompletionYear != nil && *f.Status == StatusCompleted {
		reasons = append(reasons, ReasonStatusMatch)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, ReasonGeneralMatch)
	}
	return reasons
}

func bedroomsOverlap(listed string, want model.BedroomRange) bool {
	for _, tok := range bedroomCount.FindAllString(strings.ToLower(listed), -1) {
		n := 0
		if tok != "studio" {
			var err error
			if n, err = strconv.Atoi(tok); err != nil {
				continue
			}
		}
		if n >= want.Min && n <= want.Max {
			return true
		}
	}
	return false
}

// withinBudget reports whether the listing's price range meets the filter's
func withinBudget(l model.PropertyListing, f model.PropertyFilter) bool {
	if f.PriceMin == nil && f.PriceMax == nil {
		return false
	}
	low, high := l.PriceFrom, l.PriceTo
	if low == nil {
		low = high
	}
	if high == nil {
		high = low
	}
	if low == nil {
		return false
	}
	if f.PriceMax != nil && *low > *f.PriceMax {
		return false
	}
	if f.PriceMin != nil && *high < *f.PriceMin {
		return false
	}
	return true
}
