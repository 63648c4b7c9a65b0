package domain

import (
	"fmt"
	"time"
)

// =============================================================================
// Audit Trail Types
// =============================================================================

// ActivityEntry is a human-readable record of something the API did.
// Entries are append-only.
type ActivityEntry struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewActivityEntry creates an activity entry. The timestamp is assigned by the store.
func NewActivityEntry(action, description string) ActivityEntry {
	return ActivityEntry{
		Action:      action,
		Description: description,
	}
}

// TrackingEntry records one API call: the endpoint, the inbound payload and
// the outbound payload, both serialized as JSON.
type TrackingEntry struct {
	ID         int64     `json:"id"`
	Endpoint   string    `json:"endpoint"`
	Request    string    `json:"request"`
	Response   string    `json:"response"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EndpointLabel formats the endpoint column as "METHOD - /path".
func EndpointLabel(method, path string) string {
	return fmt.Sprintf("%s - %s", method, path)
}
