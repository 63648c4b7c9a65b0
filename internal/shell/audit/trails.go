package audit

import (
	"log/slog"

	"github.com/artpar/roster/internal/core/domain"
	"github.com/artpar/roster/internal/shell/store"
)

// ActivityLog writes human-readable activity entries to the logs table.
type ActivityLog = Sink[domain.ActivityEntry]

// RequestTracker writes one entry per API call to the api_tracking table.
type RequestTracker = Sink[domain.TrackingEntry]

// NewActivityLog creates the activity log sink backed by s.
func NewActivityLog(s store.Store, config Config, logger *slog.Logger) *ActivityLog {
	return NewSink[domain.ActivityEntry]("activity_log", s.AppendActivity, config, logger)
}

// NewRequestTracker creates the request tracking sink backed by s.
func NewRequestTracker(s store.Store, config Config, logger *slog.Logger) *RequestTracker {
	return NewSink[domain.TrackingEntry]("request_tracker", s.AppendTracking, config, logger)
}
