package dives

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DiveStatus enumerates the lifecycle states of a dive row.
type DiveStatus string

const (
	// DiveStatusInProgress marks a dive whose session has started but not stopped.
	DiveStatusInProgress DiveStatus = "in_progress"
	// DiveStatusCompleted marks a dive whose session has been closed.
	DiveStatusCompleted DiveStatus = "completed"
)

// Bookend event types framing every session's event log.
const (
	EventTypeDiveStarted = "Dive Started"
	EventTypeDiveEnded   = "Dive Ended"
)

const (
	descriptionDiveStarted = "Commenced dive operation"
	descriptionDiveEnded   = "Completed dive operation"
)

// Wall-clock layouts used for the persisted dive row. The calendar date and
// the start/end times are stored separately because printed dive sheets show
// them as independent fields.
const (
	DateLayout      = "2006-01-02"
	ClockTimeLayout = "15:04:05"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidJobID indicates the job selection is empty or exceeds storage bounds.
	ErrInvalidJobID = errors.New("dives: invalid job id")
	// ErrInvalidDiverID indicates the diver selection is empty or exceeds storage bounds.
	ErrInvalidDiverID = errors.New("dives: invalid diver id")
	// ErrInvalidEventType indicates an event type is empty.
	ErrInvalidEventType = errors.New("dives: invalid event type")
	// ErrSessionActive indicates a session is already running for the supervisor.
	ErrSessionActive = errors.New("dives: session already active")
	// ErrNoActiveSession indicates an operation requires a running session.
	ErrNoActiveSession = errors.New("dives: no active session")
)

// JobID represents a validated job identifier.
type JobID string

// NewJobID validates raw input and returns a JobID.
func NewJobID(rawInput string) (JobID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidJobID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidJobID, maxIdentifierLength)
	}
	return JobID(trimmed), nil
}

// String returns the underlying string identifier.
func (id JobID) String() string {
	return string(id)
}

// DiverID represents a validated diver identifier.
type DiverID string

// NewDiverID validates raw input and returns a DiverID.
func NewDiverID(rawInput string) (DiverID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDiverID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidDiverID, maxIdentifierLength)
	}
	return DiverID(trimmed), nil
}

// String returns the underlying string identifier.
func (id DiverID) String() string {
	return string(id)
}

// Dive models the persisted dive row.
type Dive struct {
	ID           string     `gorm:"column:id;primaryKey;size:36;not null"`
	JobID        string     `gorm:"column:job_id;size:36;not null;index:idx_dives_job_created,priority:1"`
	DiverID      string     `gorm:"column:diver_id;size:36;not null"`
	SupervisorID string     `gorm:"column:supervisor_id;size:36;not null;index"`
	DiveNo       int64      `gorm:"column:dive_no;not null;default:0"`
	Date         string     `gorm:"column:date;size:10;not null;index"`
	StartTime    string     `gorm:"column:start_time;size:8;not null"`
	EndTime      string     `gorm:"column:end_time;size:8;not null;default:''"`
	Status       DiveStatus `gorm:"column:status;size:32;not null;index"`
	BottomTime   string     `gorm:"column:bottom_time;size:32;not null;default:''"`
	MaxDepth     float64    `gorm:"column:max_depth;not null;default:0"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime;index:idx_dives_job_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Dive) TableName() string {
	return "dives"
}

// Event models a timestamped, depth-tagged annotation attached to a dive.
type Event struct {
	ID          string    `gorm:"column:id;primaryKey;size:36;not null"`
	DiveID      string    `gorm:"column:dive_id;size:36;not null;index:idx_dive_events_dive_time,priority:1"`
	EventTime   time.Time `gorm:"column:event_time;not null;index:idx_dive_events_dive_time,priority:2"`
	EventType   string    `gorm:"column:event_type;size:190;not null"`
	Description string    `gorm:"column:description;type:text;not null;default:''"`
	Depth       float64   `gorm:"column:depth;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "dive_events"
}

// HistoryEntry summarizes a prior dive for the job history listing.
type HistoryEntry struct {
	DiveID    string
	DiveNo    int64
	Date      string
	DiverName string
	Status    DiveStatus
}

// FormatBottomTime renders a session duration as the persisted whole-minute
// string. Fractional minutes round toward negative infinity, so a manual
// completion timestamp earlier than the session start produces a negative
// count; that boundary is accepted, not clamped.
func FormatBottomTime(duration time.Duration) string {
	minutes := duration / time.Minute
	if duration < 0 && duration%time.Minute != 0 {
		minutes--
	}
	return fmt.Sprintf("%d minutes", minutes)
}
