package dives

import "context"

// Gateway is the narrow persistence surface the session controller operates
// against. The production implementation is Store; tests substitute stubs to
// exercise gateway-rejection failure modes.
type Gateway interface {
	// CreateDive inserts an in-progress dive row, assigning its per-job dive
	// number.
	CreateDive(ctx context.Context, dive *Dive) error
	// AppendEvent inserts a dive event row.
	AppendEvent(ctx context.Context, event *Event) error
	// CompleteDive closes a dive: end time, completed status, bottom time and
	// max depth.
	CompleteDive(ctx context.Context, diveID, endTime, bottomTime string, maxDepth float64) error
	// FindActiveDive returns the supervisor's in-progress dive, or nil when
	// none exists.
	FindActiveDive(ctx context.Context, supervisorID string) (*Dive, error)
	// ListEventsDesc returns a dive's events most recent first.
	ListEventsDesc(ctx context.Context, diveID string) ([]Event, error)
	// ListJobHistory returns a job's dives most recently created first.
	ListJobHistory(ctx context.Context, jobID string) ([]HistoryEntry, error)
	// DeleteDive removes a dive and its dependent events. Events are deleted
	// first; when that fails the dive row must be left untouched.
	DeleteDive(ctx context.Context, diveID string) error
}

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ProfileProvisioner ensures a supervisor profile row exists before dive rows
// reference it.
type ProfileProvisioner interface {
	EnsureProfile(ctx context.Context, id, username string) error
}
