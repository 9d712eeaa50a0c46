package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"marrfa-assistant/internal/model"
)

func TestMatchedReasons(t *testing.T) {
	listing := model.PropertyListing{
		ID:             "p1",
		Location:       sptr("Dubai Marina, Dubai"),
		PriceFrom:      fptr(1_200_000),
		PriceTo:        fptr(3_000_000),
		Bedrooms:       sptr("Studio, 1 bedroom"),
		PropertyType:   sptr("Apartment"),
		CompletionYear: sptr("2023"),
	}

	tests := []struct {
		name   string
		filter model.PropertyFilter
		want   []string
	}{
		{"no filter", model.PropertyFilter{}, []string{ReasonGeneralMatch}},
		{"studio", model.PropertyFilter{Bedrooms: &model.BedroomRange{}}, []string{ReasonBedroomsMatch}},
		{"bedroom range overlap", model.PropertyFilter{Bedrooms: &model.BedroomRange{Min: 1, Max: 3}}, []string{ReasonBedroomsMatch}},
		{"bedroom miss", model.PropertyFilter{Bedrooms: &model.BedroomRange{Min: 3, Max: 4}}, []string{ReasonGeneralMatch}},
		{"type", model.PropertyFilter{PropertyType: sptr(TypeApartment)}, []string{ReasonUnitTypeMatch}},
		{"location", model.PropertyFilter{Location: sptr("Dubai Marina")}, []string{ReasonLocationMatch}},
		{"budget overlaps range", model.PropertyFilter{PriceMax: fptr(1_500_000)}, []string{ReasonPriceMatch}},
		{"budget below range", model.PropertyFilter{PriceMax: fptr(1_000_000)}, []string{ReasonGeneralMatch}},
		{"minimum above range", model.PropertyFilter{PriceMin: fptr(5_000_000)}, []string{ReasonGeneralMatch}},
		{"completed", model.PropertyFilter{Status: sptr(StatusCompleted)}, []string{ReasonStatusMatch}},
		{
			"everything",
			model.PropertyFilter{
				Bedrooms:     &model.BedroomRange{Min: 1, Max: 1},
				PropertyType: sptr(TypeApartment),
				Location:     sptr("dubai marina"),
				PriceMin:     fptr(1_000_000),
				PriceMax:     fptr(2_000_000),
			},
			[]string{ReasonBedroomsMatch, ReasonUnitTypeMatch, ReasonLocationMatch, ReasonPriceMatch},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchedReasons(listing, tt.filter))
		})
	}
}

func TestWithinBudget_SinglePrice(t *testing.T) {
	l := model.PropertyListing{PriceTo: fptr(900_000)}
	assert.True(t, withinBudget(l, model.PropertyFilter{PriceMax: fptr(1_000_000)}))
	assert.False(t, withinBudget(l, model.PropertyFilter{PriceMin: fptr(1_000_000)}))
	assert.False(t, withinBudget(model.PropertyListing{}, model.PropertyFilter{PriceMax: fptr(1)}))
}

func TestAnnotateReasons_KeepsOrder(t *testing.T) {
	items := makeListings(3)
	AnnotateReasons(items, model.PropertyFilter{})
	for i, l := range items {
		assert.Equal(t, makeListings(3)[i].ID, l.ID)
		assert.Equal(t, []string{ReasonGeneralMatch}, l.MatchedReasons)
	}
}
