package service

import (
	"regexp"
	"strconv"
	"strings"

	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/utils"
)

// Property type vocabulary, canonical lower-case values
const (
	TypeApartment = "apartment"
	TypeVilla     = "villa"
	TypeTownhouse = "townhouse"
	TypePenthouse = "penthouse"
	TypeDuplex    = "duplex"
	TypePlot      = "plot"
	TypeStudio    = "studio"
)

// Status and sale status vocabulary, canonical lower-case values
const (
	StatusCompleted         = "completed"
	StatusPresale           = "presale"
	StatusUnderConstruction = "under construction"

	SaleStatusOnSale     = "on sale"
	SaleStatusOutOfStock = "out of stock"
	SaleStatusAnnounced  = "announced"
)

type vocabTerm struct {
	phrase string
	value  string
}

var propertyTypeTerms = []vocabTerm{
	{"apartments", TypeApartment}, {"apartment", TypeApartment}, {"flats", TypeApartment}, {"flat", TypeApartment}, {"apt", TypeApartment},
	{"villas", TypeVilla}, {"villa", TypeVilla},
	{"townhouses", TypeTownhouse}, {"townhouse", TypeTownhouse}, {"town house", TypeTownhouse}, {"town houses", TypeTownhouse},
	{"penthouses", TypePenthouse}, {"penthouse", TypePenthouse},
	{"duplexes", TypeDuplex}, {"duplex", TypeDuplex},
	{"plots", TypePlot}, {"plot", TypePlot},
	{"studios", TypeStudio}, {"studio", TypeStudio},
}

var statusTerms = []vocabTerm{
	{"under construction", StatusUnderConstruction},
	{"construction", StatusUnderConstruction},
	{"off-plan", StatusPresale}, {"off plan", StatusPresale}, {"offplan", StatusPresale}, {"presale", StatusPresale},
	{"ready to move", StatusCompleted}, {"ready", StatusCompleted}, {"completed", StatusCompleted}, {"handed over", StatusCompleted},
}

var saleStatusTerms = []vocabTerm{
	{"sold out", SaleStatusOutOfStock}, {"out of stock", SaleStatusOutOfStock},
	{"on sale", SaleStatusOnSale}, {"for sale", SaleStatusOnSale}, {"available", SaleStatusOnSale},
	{"announced", SaleStatusAnnounced}, {"coming soon", SaleStatusAnnounced},
}

var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

const (
	numberToken = `(\d+|zero|one|two|three|four|five|six|seven|eight|nine|ten)`
	currencyTok = `(?:aed|usd|eur|gbp|inr|sar)`
	scaleTok    = `(?:thousand|million|billion|mil|mn|bn|k|m|b)`
	// amountTok captures a whole amount with optional scale and currency on either side
	amountTok = `((?:` + currencyTok + `\s*)?\d+(?:\.\d+)?(?:\s*` + scaleTok + `\b)?(?:\s*` + currencyTok + `\b)?)`
)

var (
	bedroomRange = regexp.MustCompile(`\b` + numberToken + `(?:\s*(?:-|to|or)\s*` + numberToken + `)?\s*-?\s*(?:bedrooms?|beds?|bhk|br|bd|rooms?)\b`)
	studioWord   = regexp.MustCompile(`\bstudios?\b`)
	nonPriceNums = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*-?\s*(?:bathrooms?|baths?|sq\.?\s*ft|sqft|square\s+feet|sqm|square\s+meters?|years?|yrs?|minutes?|mins?|floors?|storeys?|stories|parking)\b`)
	digitGroups  = regexp.MustCompile(`(\d),(\d{3})\b`)

	currencyAliases = []struct {
		re   *regexp.Regexp
		code string
	}{
		{regexp.MustCompile(`\$`), "usd"},
		{regexp.MustCompile(`€`), "eur"},
		{regexp.MustCompile(`£`), "gbp"},
		{regexp.MustCompile(`₹`), "inr"},
		{regexp.MustCompile(`\b(?:dirhams?|dhs|dh|aed)\b`), "aed"},
		{regexp.MustCompile(`\b(?:us\s+dollars?|dollars?|usd)\b`), "usd"},
		{regexp.MustCompile(`\b(?:euros?|eur)\b`), "eur"},
		{regexp.MustCompile(`\b(?:pounds?|gbp)\b`), "gbp"},
		{regexp.MustCompile(`\b(?:rupees?|inr)\b`), "inr"},
		{regexp.MustCompile(`\b(?:riyals?|sar)\b`), "sar"},
	}
	foreignMarker = regexp.MustCompile(`\b(usd|eur|gbp|inr|sar)\b`)

	amountParts  = regexp.MustCompile(`^(?:(` + currencyTok + `)\s*)?(\d+(?:\.\d+)?)(?:\s*(` + scaleTok + `))?(?:\s*(` + currencyTok + `))?$`)
	priceBetween = regexp.MustCompile(`\bbetween\s+` + amountTok + `\s+(?:and|to|-)\s+` + amountTok)
	priceRange   = regexp.MustCompile(amountTok + `\s*(?:-|to)\s*` + amountTok)
	priceMax     = regexp.MustCompile(`\b(?:under|below|less\s+than|lower\s+than|cheaper\s+than|not\s+more\s+than|no\s+more\s+than|max(?:imum)?|up\s*to|within|budget(?:\s+(?:of|is))?)\s*(?:of\s+|is\s+)?` + amountTok)
	priceMin     = regexp.MustCompile(`\b(?:over|above|more\s+than|greater\s+than|from|at\s+least|min(?:imum)?|starting(?:\s+(?:from|at))?)\s+` + amountTok)
	priceBare    = regexp.MustCompile(amountTok)

	locationPreposition = regexp.MustCompile(`\b(?:in|at|near|around)\s+([a-z][a-z' ]*)`)
)

var locationStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "with": true, "for": true, "to": true,
	"under": true, "below": true, "above": true, "over": true, "between": true, "from": true, "within": true,
	"budget": true, "price": true, "prices": true, "least": true, "most": true, "max": true, "maximum": true,
	"min": true, "minimum": true, "less": true, "more": true, "of": true, "near": true, "around": true,
	"in": true, "at": true, "that": true, "which": true, "having": true, "has": true, "have": true,
	"bedroom": true, "bedrooms": true, "bed": true, "beds": true, "bathroom": true, "bathrooms": true,
	"property": true, "properties": true, "home": true, "homes": true, "house": true, "houses": true,
	"aed": true, "usd": true, "eur": true, "gbp": true, "inr": true, "sar": true, "million": true, "thousand": true,
	"please": true, "now": true, "today": true, "ready": true, "off": true, "completed": true, "available": true,
	"sale": true, "rent": true, "cheap": true, "luxury": true, "good": true, "best": true, "my": true, "your": true,
	"me": true, "area": true, "location": true, "view": true, "it": true, "this": true, "any": true, "all": true,
	"interested": true, "investment": true, "mind": true, "cash": true, "installments": true, "instalments": true,
	"future": true, "general": true, "details": true, "detail": true, "particular": true, "terms": true,
	"metro": true, "beach": true, "sea": true, "mall": true, "school": true, "schools": true, "airport": true,
}

// FilterParser extracts a PropertyFilter from free text. It is pure and safe
// for concurrent use.
type FilterParser struct {
	gazetteer *Gazetteer
}

// NewFilterParser creates a parser; a nil gazetteer uses DefaultGazetteer
func NewFilterParser(g *Gazetteer) *FilterParser {
	if g == nil {
		g = DefaultGazetteer()
	}
	return &FilterParser{gazetteer: g}
}

// Parse extracts price, location, bedrooms, property type and status from the
// query text. Fields that are not mentioned stay nil.
func (p *FilterParser) Parse(q model.Query) model.PropertyFilter {
	text := utils.NormalizeText(q.Text)
	var f model.PropertyFilter
	if text == "" {
		return f
	}

	bedroomSpans := p.parseBedrooms(text, &f)
	p.parsePrice(maskSpans(text, bedroomSpans), &f)
	p.parseLocation(text, &f)
	f.PropertyType = parsePropertyType(text)
	f.Status = firstTerm(text, statusTerms)
	f.SaleStatus = firstTerm(text, saleStatusTerms)

	return f
}

// parseBedrooms sets f.Bedrooms and returns the spans consumed by bedroom counts
func (p *FilterParser) parseBedrooms(text string, f *model.PropertyFilter) [][]int {
	spans := bedroomRange.FindAllStringSubmatchIndex(text, -1)

	if studioWord.MatchString(text) {
		f.Bedrooms = &model.BedroomRange{Min: 0, Max: 0}
		return spans
	}

	for _, m := range spans {
		lo, ok := parseCount(text[m[2]:m[3]])
		if !ok {
			continue
		}
		hi := lo
		if m[4] >= 0 {
			if hi, ok = parseCount(text[m[4]:m[5]]); !ok {
				continue
			}
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		f.Bedrooms = &model.BedroomRange{Min: lo, Max: hi}
		break
	}
	return spans
}

func parseCount(tok string) (int, bool) {
	if n, ok := numberWords[tok]; ok {
		return n, true
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 || n > 10 {
		return 0, false
	}
	return n, true
}

// priceAmount is one parsed money mention
type priceAmount struct {
	value    float64
	mult     float64
	currency string
}

// plausible reports whether the amount reads as a price rather than a count
func (a priceAmount) plausible() bool {
	return a.mult > 1 || a.currency != "" || a.value >= 10000
}

func parseAmount(s string) (priceAmount, bool) {
	m := amountParts.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return priceAmount{}, false
	}
	n, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return priceAmount{}, false
	}

	a := priceAmount{mult: scaleMultiplier(m[3]), currency: m[1]}
	a.value = n * a.mult
	if m[4] != "" {
		a.currency = m[4]
	}
	return a, true
}

func scaleMultiplier(scale string) float64 {
	switch scale {
	case "k", "thousand":
		return 1e3
	case "m", "mn", "mil", "million":
		return 1e6
	case "b", "bn", "billion":
		return 1e9
	default:
		return 1
	}
}

// normalizePriceText unifies currency markers and strips digit group commas
func normalizePriceText(text string) string {
	for _, c := range currencyAliases {
		text = c.re.ReplaceAllString(text, " "+c.code+" ")
	}
	for digitGroups.MatchString(text) {
		text = digitGroups.ReplaceAllString(text, "$1$2")
	}
	text = nonPriceNums.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

func (p *FilterParser) parsePrice(text string, f *model.PropertyFilter) {
	text = normalizePriceText(text)

	if m := foreignMarker.FindStringSubmatch(text); m != nil {
		f.ForeignCurrency = true
		f.Currency = strings.ToUpper(m[1])
	}

	var lo, hi *priceAmount
	switch {
	case p.matchRange(priceBetween, text, &lo, &hi):
	case p.matchRange(priceRange, text, &lo, &hi):
	case p.matchSingle(priceMax, text, &hi):
	case p.matchSingle(priceMin, text, &lo):
	default:
		for _, m := range priceBare.FindAllStringSubmatch(text, -1) {
			if a, ok := parseAmount(m[1]); ok && a.plausible() {
				hi = &a
				break
			}
		}
	}

	if lo != nil {
		v := lo.value
		f.PriceMin = &v
	}
	if hi != nil {
		v := hi.value
		f.PriceMax = &v
	}
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		f.PriceMin, f.PriceMax = f.PriceMax, f.PriceMin
	}

	if (f.PriceMin != nil || f.PriceMax != nil) && f.Currency == "" {
		f.Currency = "AED"
	}
	for _, a := range []*priceAmount{lo, hi} {
		if a != nil && a.currency != "" && a.currency != "aed" {
			f.ForeignCurrency = true
			f.Currency = strings.ToUpper(a.currency)
		}
	}
}

func (p *FilterParser) matchRange(re *regexp.Regexp, text string, lo, hi **priceAmount) bool {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		a, okA := parseAmount(m[1])
		b, okB := parseAmount(m[2])
		if !okA || !okB {
			continue
		}
		// "1-2m": the upper bound's scale applies to an unscaled lower bound
		if a.mult == 1 && b.mult > 1 {
			a.value *= b.mult
			a.mult = b.mult
		}
		if a.currency == "" {
			a.currency = b.currency
		}
		if b.currency == "" {
			b.currency = a.currency
		}
		if !a.plausible() || !b.plausible() {
			continue
		}
		*lo, *hi = &a, &b
		return true
	}
	return false
}

func (p *FilterParser) matchSingle(re *regexp.Regexp, text string, out **priceAmount) bool {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if a, ok := parseAmount(m[1]); ok && a.plausible() {
			*out = &a
			return true
		}
	}
	return false
}

func (p *FilterParser) parseLocation(text string, f *model.PropertyFilter) {
	if name, ok := p.gazetteer.Match(text); ok {
		f.Location = &name
		f.LocationKnown = true
		return
	}

	for _, m := range locationPreposition.FindAllStringSubmatch(text, -1) {
		var words []string
		for _, w := range strings.Fields(m[1]) {
			if locationStopWords[w] || strings.HasSuffix(w, "ing") || isPropertyNoun(w) || len(words) == 3 {
				break
			}
			words = append(words, w)
		}
		if len(words) == 0 {
			continue
		}
		name := utils.TitleCase(strings.Join(words, " "))
		f.Location = &name
		f.LocationKnown = false
		return
	}
}

func isPropertyNoun(w string) bool {
	for _, t := range propertyTypeTerms {
		if t.phrase == w {
			return true
		}
	}
	return false
}

// parsePropertyType returns the earliest non-studio type noun, else studio if present
func parsePropertyType(text string) *string {
	best := -1
	value := ""
	studio := false
	for _, t := range propertyTypeTerms {
		pos := utils.IndexPhrase(text, t.phrase)
		if pos < 0 {
			continue
		}
		if t.value == TypeStudio {
			studio = true
			continue
		}
		if best < 0 || pos < best {
			best, value = pos, t.value
		}
	}
	if value == "" && studio {
		value = TypeStudio
	}
	if value == "" {
		return nil
	}
	return &value
}

// firstTerm returns the value of the earliest vocabulary phrase in text
func firstTerm(text string, terms []vocabTerm) *string {
	best := -1
	value := ""
	for _, t := range terms {
		pos := utils.IndexPhrase(text, t.phrase)
		if pos >= 0 && (best < 0 || pos < best) {
			best, value = pos, t.value
		}
	}
	if value == "" {
		return nil
	}
	return &value
}

// maskSpans blanks every matched span so numbers tied to bedroom counts are
// never read as prices
func maskSpans(text string, spans [][]int) string {
	if len(spans) == 0 {
		return text
	}
	b := []byte(text)
	for _, m := range spans {
		for i := m[0]; i < m[1]; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}
