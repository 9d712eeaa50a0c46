package model

import "encoding/json"

// Query is one user request as seen by the router
type Query struct {
	Text      string     `json:"query"`
	History   []ChatTurn `json:"history,omitempty"`
	FileText  string     `json:"file_text,omitempty"` // text already extracted from uploads
	SessionID string     `json:"session_id,omitempty"`
	RequestID string     `json:"-"`
}

// ChatTurn is a previous message in the conversation
type ChatTurn struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// ChatRequest represents a chat request body
type ChatRequest struct {
	Query      string     `json:"query"`
	SessionID  string     `json:"session_id,omitempty"`
	IsLoggedIn bool       `json:"is_logged_in"`
	History    []ChatTurn `json:"history,omitempty"`
	FileText   string     `json:"file_text,omitempty"`
}

// ToQuery converts the request body into a router query
func (r *ChatRequest) ToQuery(requestID string) Query {
	return Query{
		Text:      r.Query,
		History:   r.History,
		FileText:  r.FileText,
		SessionID: r.SessionID,
		RequestID: requestID,
	}
}

// BedroomRange is an inclusive bedroom count range; studio is 0..0
type BedroomRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// IsSingle reports whether the range is one exact count
func (b BedroomRange) IsSingle() bool {
	return b.Min == b.Max
}

// PropertyFilter represents structured search filters extracted from a query.
// A nil field means unconstrained.
type PropertyFilter struct {
	PriceMin        *float64      `json:"price_min,omitempty"`
	PriceMax        *float64      `json:"price_max,omitempty"`
	Currency        string        `json:"currency,omitempty"`
	ForeignCurrency bool          `json:"foreign_currency,omitempty"`
	Location        *string       `json:"location,omitempty"`
	LocationKnown   bool          `json:"location_known,omitempty"`
	Bedrooms        *BedroomRange `json:"bedrooms,omitempty"`
	PropertyType    *string       `json:"property_type,omitempty"`
	Status          *string       `json:"status,omitempty"`
	SaleStatus      *string       `json:"sale_status,omitempty"`
}

// IsEmpty reports whether no search constraint was extracted
func (f *PropertyFilter) IsEmpty() bool {
	return f == nil || (f.PriceMin == nil && f.PriceMax == nil && f.Location == nil &&
		f.Bedrooms == nil && f.PropertyType == nil && f.Status == nil && f.SaleStatus == nil)
}

// FeedbackRequest represents user feedback on a listing shown in a chat reply
type FeedbackRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	ListingID string `json:"listing_id" binding:"required"`
	Action    string `json:"action" binding:"required"` // click, contact, view_details
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ToMap converts the filter to a JSON object of its set fields
func (f *PropertyFilter) ToMap() JSONMap {
	if f == nil {
		return nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	var m JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
