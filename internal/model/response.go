package model

// ResponseKind tags the StructuredResponse union
type ResponseKind string

const (
	KindPropertyList ResponseKind = "property_list"
	KindAnswer       ResponseKind = "answer"
	KindRejection    ResponseKind = "rejection"
	KindError        ResponseKind = "error"
)

// Error codes carried by KindError responses
const (
	ErrorCodeListingsUnavailable = "LISTINGS_UNAVAILABLE"
	ErrorCodeLimit               = "LIMIT"
	ErrorCodeInternal            = "INTERNAL"
	ErrorCodeInvalidRequest      = "INVALID_REQUEST"
)

// StructuredResponse is the reply assembled by the router
type StructuredResponse struct {
	Kind      ResponseKind      `json:"kind"`
	Reply     string            `json:"reply"`
	Intent    Intent            `json:"intent,omitempty"`
	Method    string            `json:"method,omitempty"`
	Filter    *PropertyFilter   `json:"filter,omitempty"`
	Listings  []PropertyListing `json:"properties,omitempty"`
	Total     int               `json:"total"`
	Sources   []Source          `json:"sources,omitempty"`
	Grounded  bool              `json:"grounded"`
	ErrorCode string            `json:"error_code,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	States    []string          `json:"states,omitempty"`
	Took      int64             `json:"took_ms"` // Response time in milliseconds
}
