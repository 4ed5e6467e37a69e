package model

import (
	"time"
)

// QueryEvent records one completed question/answer turn. Events are
// immutable once created.
type QueryEvent struct {
	ID                  string    `json:"id"`
	Query               string    `json:"query"`
	UserID              string    `json:"user_id"`
	UserName            string    `json:"user_name"`
	DocumentsReferenced []string  `json:"documents_referenced"`
	ResponseTimeMs      int64     `json:"response_time_ms"`
	Timestamp           time.Time `json:"timestamp"`
}

// Valid reports whether the event can take part in aggregation.
func (e QueryEvent) Valid() bool {
	return e.ResponseTimeMs >= 0 && !e.Timestamp.IsZero()
}
