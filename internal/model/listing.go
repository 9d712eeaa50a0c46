package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PropertyListing is a listing normalized from the Listings API
type PropertyListing struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Location       *string  `json:"location,omitempty"`
	PriceFrom      *float64 `json:"price_from,omitempty"`
	PriceTo        *float64 `json:"price_to,omitempty"`
	Currency       string   `json:"currency"`
	Bedrooms       *string  `json:"bedrooms,omitempty"`
	PropertyType   *string  `json:"property_type,omitempty"`
	Description    *string  `json:"description,omitempty"`
	CompletionYear *string  `json:"completion_year,omitempty"`
	CoverImage     string   `json:"cover_image"`
	Images         []string `json:"images,omitempty"`
	ListingURL     *string  `json:"listing_url,omitempty"`
	MatchedReasons []string `json:"matched_reasons,omitempty"`
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	return scanJSON(value, j)
}

// JSONMap represents a JSON object field
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	return scanJSON(value, j)
}

func scanJSON(value interface{}, target interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, target)
	case string:
		return json.Unmarshal([]byte(v), target)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}
