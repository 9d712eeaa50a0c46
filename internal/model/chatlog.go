package model

import "time"

// ChatLogEntry is one handled query as written to chat_logs
type ChatLogEntry struct {
	RequestID  string    `db:"request_id" json:"request_id"`
	SessionID  string    `db:"session_id" json:"session_id,omitempty"`
	Query      string    `db:"query_text" json:"query"`
	Intent     string    `db:"intent" json:"intent"`
	Method     string    `db:"method" json:"method"`
	Kind       string    `db:"kind" json:"kind"`
	Filters    JSONMap   `db:"filters" json:"filters,omitempty"`
	ListingIDs JSONArray `db:"listing_ids" json:"listing_ids,omitempty"`
	Total      int       `db:"total_results" json:"total"`
	Grounded   bool      `db:"grounded" json:"grounded"`
	ErrorCode  *string   `db:"error_code" json:"error_code,omitempty"`
	States     JSONArray `db:"states" json:"states,omitempty"`
	TookMS     int       `db:"response_time_ms" json:"took_ms"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

