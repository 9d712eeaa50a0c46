package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marrfa-assistant/internal/model"
)

func parse(text string) model.PropertyFilter {
	return NewFilterParser(nil).Parse(model.Query{Text: text})
}

func TestFilterParser_FullQuery(t *testing.T) {
	f := parse("2 bedroom apartment in Dubai Marina under 2M AED")

	require.NotNil(t, f.Bedrooms)
	assert.Equal(t, model.BedroomRange{Min: 2, Max: 2}, *f.Bedrooms)
	require.NotNil(t, f.Location)
	assert.Equal(t, "Dubai Marina", *f.Location)
	assert.True(t, f.LocationKnown)
	require.NotNil(t, f.PropertyType)
	assert.Equal(t, TypeApartment, *f.PropertyType)
	assert.Nil(t, f.PriceMin)
	require.NotNil(t, f.PriceMax)
	assert.Equal(t, 2_000_000.0, *f.PriceMax)
	assert.Equal(t, "AED", f.Currency)
	assert.False(t, f.ForeignCurrency)
}

func TestFilterParser_NoPriceMentioned(t *testing.T) {
	queries := []string{
		"Show me villas in Palm Jumeirah",
		"3 bedroom apartment in downtown",
		"flat with 2 bathrooms and 1200 sqft",
		"I want 3 apartments near the beach",
		"townhouse completed within 2 years",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			f := parse(q)
			assert.Nil(t, f.PriceMin)
			assert.Nil(t, f.PriceMax)
			assert.Empty(t, f.Currency)
		})
	}
}

func TestFilterParser_Bedrooms(t *testing.T) {
	tests := []struct {
		query string
		want  *model.BedroomRange
	}{
		{"2-bedroom flat", &model.BedroomRange{Min: 2, Max: 2}},
		{"3 beds villa", &model.BedroomRange{Min: 3, Max: 3}},
		{"two bedroom apartment", &model.BedroomRange{Min: 2, Max: 2}},
		{"2-3 bedroom townhouse", &model.BedroomRange{Min: 2, Max: 3}},
		{"4 to 2 br", &model.BedroomRange{Min: 2, Max: 4}},
		{"1 bhk in jvc", &model.BedroomRange{Min: 1, Max: 1}},
		{"studio in jvc", &model.BedroomRange{Min: 0, Max: 0}},
		{"studios or 1 bedroom", &model.BedroomRange{Min: 0, Max: 0}},
		{"12 bedroom villa", nil},
		{"villa in arabian ranches", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := parse(tt.query)
			assert.Equal(t, tt.want, f.Bedrooms)
		})
	}
}

func TestFilterParser_Prices(t *testing.T) {
	tests := []struct {
		query    string
		min, max *float64
		currency string
	}{
		{"villas 1-2m in dubai hills", fptr(1e6), fptr(2e6), "AED"},
		{"apartment between 3m and 1m", fptr(1e6), fptr(3e6), "AED"},
		{"between 800k to 1.5 million", fptr(8e5), fptr(1.5e6), "AED"},
		{"villa under 2,500,000", nil, fptr(2.5e6), "AED"},
		{"budget of 1.5m dirhams", nil, fptr(1.5e6), "AED"},
		{"flats from aed 800k", fptr(8e5), nil, "AED"},
		{"penthouse above 10 million", fptr(1e7), nil, "AED"},
		{"2 bedroom under 900000", nil, fptr(9e5), "AED"},
		{"4 bedrooms under 3 million", nil, fptr(3e6), "AED"},
		{"apartment 750k", nil, fptr(7.5e5), "AED"},
		{"villa for 2b", nil, fptr(2e9), "AED"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := parse(tt.query)
			assert.Equal(t, tt.min, f.PriceMin)
			assert.Equal(t, tt.max, f.PriceMax)
			assert.Equal(t, tt.currency, f.Currency)
			if f.PriceMin != nil && f.PriceMax != nil {
				assert.LessOrEqual(t, *f.PriceMin, *f.PriceMax)
			}
		})
	}
}

func TestFilterParser_ForeignCurrency(t *testing.T) {
	tests := []struct {
		query    string
		currency string
		max      float64
	}{
		{"$500k apartment", "USD", 5e5},
		{"villa under 2 million usd", "USD", 2e6},
		{"flat below €400k", "EUR", 4e5},
		{"apartment under 300k pounds", "GBP", 3e5},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := parse(tt.query)
			assert.True(t, f.ForeignCurrency)
			assert.Equal(t, tt.currency, f.Currency)
			require.NotNil(t, f.PriceMax)
			assert.Equal(t, tt.max, *f.PriceMax, "amount is kept unconverted")
		})
	}
}

func TestFilterParser_Location(t *testing.T) {
	tests := []struct {
		query string
		want  string
		known bool
	}{
		{"apartments in Dubai Marina", "Dubai Marina", true},
		{"homes in dubai", "Dubai", true},
		{"1 bed in JVC", "Jumeirah Village Circle", true},
		{"flats in jlt", "Jumeirah Lake Towers", true},
		{"penthouse downtown", "Downtown Dubai", true},
		{"villa on palm jumeirah", "Palm Jumeirah", true},
		{"off-plan in dubai south", "Dubai South", true},
		{"villa in springfield", "Springfield", false},
		{"apartment near green valley with pool", "Green Valley", false},
		{"studio at blue lagoon tower heights east", "Blue Lagoon Tower", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := parse(tt.query)
			require.NotNil(t, f.Location)
			assert.Equal(t, tt.want, *f.Location)
			assert.Equal(t, tt.known, f.LocationKnown)
		})
	}

	t.Run("no location", func(t *testing.T) {
		f := parse("3 bedroom villa under 5m")
		assert.Nil(t, f.Location)
	})

	t.Run("preposition followed by stop word", func(t *testing.T) {
		f := parse("looking for something in the budget")
		assert.Nil(t, f.Location)
	})
}

func TestFilterParser_PropertyType(t *testing.T) {
	tests := []struct {
		query string
		want  *string
	}{
		{"villa or apartment", sptr(TypeVilla)},
		{"flat in jbr", sptr(TypeApartment)},
		{"studio apartment in jvc", sptr(TypeApartment)},
		{"studio in arjan", sptr(TypeStudio)},
		{"town house in damac hills", sptr(TypeTownhouse)},
		{"penthouses", sptr(TypePenthouse)},
		{"something nice", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, parse(tt.query).PropertyType)
		})
	}
}

func TestFilterParser_Status(t *testing.T) {
	f := parse("ready apartments available in jlt")
	assert.Equal(t, sptr(StatusCompleted), f.Status)
	assert.Equal(t, sptr(SaleStatusOnSale), f.SaleStatus)

	f = parse("off-plan villas in dubai south")
	assert.Equal(t, sptr(StatusPresale), f.Status)
	assert.Nil(t, f.SaleStatus)

	f = parse("projects under construction that are sold out")
	assert.Equal(t, sptr(StatusUnderConstruction), f.Status)
	assert.Equal(t, sptr(SaleStatusOutOfStock), f.SaleStatus)
}

func TestFilterParser_EmptyAndDeterministic(t *testing.T) {
	f := parse("   ")
	assert.True(t, f.IsEmpty())

	q := "2-3 bedroom villa in dubai hills between 3m and 5m"
	assert.Equal(t, parse(q), parse(q))
}

func fptr(v float64) *float64 { return &v }

func sptr(v string) *string { return &v }
