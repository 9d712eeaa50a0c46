package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"marrfa-assistant/internal/config"
	"marrfa-assistant/internal/listings"
	"marrfa-assistant/internal/metrics"
	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/utils"
)

// ListingsSearcher fetches one page of listings
type ListingsSearcher interface {
	Search(ctx context.Context, params listings.Params) (*listings.Result, error)
}

// API spellings of the canonical filter values
var (
	apiStatus = map[string]string{
		StatusCompleted:         "Completed",
		StatusPresale:           "Presale",
		StatusUnderConstruction: "Under Construction",
	}
	apiSaleStatus = map[string]string{
		SaleStatusOnSale:     "On Sale",
		SaleStatusOutOfStock: "Out of Stock",
		SaleStatusAnnounced:  "Announced",
	}
)

// SearchOutcome is the result of one property search. Unavailable is set,
// with Err wrapping listings.ErrListingsUnavailable, when the API failed;
// an empty Listings with Unavailable unset means zero matches.
type SearchOutcome struct {
	Listings    []model.PropertyListing
	Total       int
	Params      listings.Params
	Unavailable bool
	Err         error
}

// PropertySearchCoordinator turns a PropertyFilter into a listings page
type PropertySearchCoordinator struct {
	client    ListingsSearcher
	perPage   int
	showLimit int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewPropertySearchCoordinator creates a coordinator over client
func NewPropertySearchCoordinator(client ListingsSearcher, cfg config.ListingsConfig, logger *zap.Logger, m *metrics.Metrics) *PropertySearchCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropertySearchCoordinator{
		client:    client,
		perPage:   cfg.PerPage,
		showLimit: cfg.ShowLimit,
		logger:    logger,
		metrics:   m,
	}
}

// BuildListingParams maps every set filter field to its API parameter.
// Unset fields are omitted.
func BuildListingParams(f model.PropertyFilter, page, perPage int) listings.Params {
	p := listings.Params{
		PriceFrom: f.PriceMin,
		PriceTo:   f.PriceMax,
		Page:      page,
		PerPage:   perPage,
	}
	if f.Location != nil {
		p.SearchQuery = *f.Location
	}
	if f.PropertyType != nil {
		p.UnitTypes = []string{utils.TitleCase(*f.PropertyType)}
	}
	if f.Bedrooms != nil {
		for n := f.Bedrooms.Min; n <= f.Bedrooms.Max; n++ {
			if n == 0 {
				p.UnitBedrooms = append(p.UnitBedrooms, "Studio")
				continue
			}
			p.UnitBedrooms = append(p.UnitBedrooms, fmt.Sprintf("%d bedroom", n))
		}
	}
	if f.Status != nil {
		if v, ok := apiStatus[*f.Status]; ok {
			p.Status = []string{v}
		}
	}
	if f.SaleStatus != nil {
		if v, ok := apiSaleStatus[*f.SaleStatus]; ok {
			p.SaleStatus = []string{v}
		}
	}
	return p
}

// Search queries the first page for f and keeps at most the show limit of
// listings, in API order, annotated with matched reasons
func (s *PropertySearchCoordinator) Search(ctx context.Context, f model.PropertyFilter) SearchOutcome {
	params := BuildListingParams(f, 1, s.perPage)
	out := SearchOutcome{Params: params}

	if s.client == nil {
		out.Unavailable = true
		out.Err = fmt.Errorf("%w: no client configured", listings.ErrListingsUnavailable)
		s.metrics.RecordListingsSearch("unavailable")
		return out
	}

	result, err := s.client.Search(ctx, params)
	if err != nil {
		if !errors.Is(err, listings.ErrListingsUnavailable) {
			err = fmt.Errorf("%w: %w", listings.ErrListingsUnavailable, err)
		}
		out.Unavailable = true
		out.Err = err
		s.metrics.RecordListingsSearch("unavailable")
		s.logger.Warn("property search unavailable", zap.Error(err))
		return out
	}

	out.Listings = result.Listings
	out.Total = result.Total
	if s.showLimit > 0 && len(out.Listings) > s.showLimit {
		out.Listings = out.Listings[:s.showLimit]
	}
	if out.Total < len(out.Listings) {
		out.Total = len(out.Listings)
	}
	AnnotateReasons(out.Listings, f)

	if len(out.Listings) == 0 {
		s.metrics.RecordListingsSearch("empty")
	} else {
		s.metrics.RecordListingsSearch("ok")
	}
	return out
}
