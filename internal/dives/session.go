package dives

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingGateway      = errors.New("dives: gateway is required")
	errMissingIDProvider   = errors.New("dives: id provider is required")
	errMissingSupervisorID = errors.New("dives: supervisor id is required")
	noOpLogger             = zap.NewNop()
)

// ControllerConfig describes the dependencies of a session controller.
type ControllerConfig struct {
	Gateway         Gateway
	Profiles        ProfileProvisioner
	Clock           func() time.Time
	IDProvider      IDProvider
	Logger          *zap.Logger
	SupervisorID    string
	SupervisorEmail string
	// Notify is invoked after every dive-row mutation so callers can fan out
	// change notifications.
	Notify func(diveID string)
	// OnTick, when set, receives the elapsed seconds once per second while a
	// session is active.
	OnTick func(elapsedSeconds int64)
}

// Controller mediates the single active dive session for one supervisor. The
// persisted in-progress dive row is the source of truth; Rehydrate restores
// the in-memory state from it after a restart.
type Controller struct {
	gateway         Gateway
	profiles        ProfileProvisioner
	now             func() time.Time
	ids             IDProvider
	logger          *zap.Logger
	supervisorID    string
	supervisorEmail string
	notify          func(string)
	onTick          func(int64)

	mu           sync.Mutex
	activeDiveID string
	clock        *SessionClock
	stopTick     func()
	depth        float64
	maxDepth     float64
	eventLog     []Event
}

// NewController validates the configuration and constructs a controller with
// no active session.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Gateway == nil {
		return nil, errMissingGateway
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.SupervisorID == "" {
		return nil, errMissingSupervisorID
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Controller{
		gateway:         cfg.Gateway,
		profiles:        cfg.Profiles,
		now:             now,
		ids:             cfg.IDProvider,
		logger:          logger,
		supervisorID:    cfg.SupervisorID,
		supervisorEmail: cfg.SupervisorEmail,
		notify:          cfg.Notify,
		onTick:          cfg.OnTick,
	}, nil
}

// EventInput describes an event to append to the active session. Time and
// Depth override the current instant and the last SetDepth value when set.
type EventInput struct {
	Type        string
	Description string
	Time        *time.Time
	Depth       *float64
}

// StartSession opens a dive session: provisions the supervisor profile,
// inserts the in-progress dive row, captures the start instant and appends the
// "Dive Started" bookend. A rejected insert leaves no session active.
func (c *Controller) StartSession(ctx context.Context, rawJobID, rawDiverID string) (Dive, error) {
	jobID, err := NewJobID(rawJobID)
	if err != nil {
		return Dive{}, err
	}
	diverID, err := NewDiverID(rawDiverID)
	if err != nil {
		return Dive{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeDiveID != "" {
		return Dive{}, newServiceError(opStartSession, "session_active", ErrSessionActive)
	}

	if c.profiles != nil {
		if err := c.profiles.EnsureProfile(ctx, c.supervisorID, c.supervisorEmail); err != nil {
			c.logError(opStartSession, "profile_provisioning_failed", err)
			return Dive{}, newServiceError(opStartSession, "profile_provisioning_failed", err)
		}
	}

	diveID, err := c.ids.NewID()
	if err != nil {
		return Dive{}, newServiceError(opStartSession, "id_generation_failed", err)
	}

	startInstant := c.now()
	dive := Dive{
		ID:           diveID,
		JobID:        jobID.String(),
		DiverID:      diverID.String(),
		SupervisorID: c.supervisorID,
		Date:         startInstant.Format(DateLayout),
		StartTime:    startInstant.Format(ClockTimeLayout),
		Status:       DiveStatusInProgress,
	}
	if err := c.gateway.CreateDive(ctx, &dive); err != nil {
		c.logError(opStartSession, "dive_insert_failed", err, zap.String("job_id", dive.JobID))
		return Dive{}, newServiceError(opStartSession, "dive_insert_failed", err)
	}

	c.activeDiveID = dive.ID
	c.clock = NewSessionClock(startInstant, c.now)
	c.depth = 0
	c.maxDepth = 0
	c.eventLog = nil
	if c.onTick != nil {
		c.stopTick = c.clock.Tick(c.onTick)
	}

	// The opening bookend. A rejected append is logged but does not unwind
	// the already-started session.
	if _, err := c.appendEventLocked(ctx, EventInput{Type: EventTypeDiveStarted, Description: descriptionDiveStarted}); err != nil {
		c.logError(opStartSession, "bookend_append_failed", err, zap.String("dive_id", dive.ID))
	}

	c.notifyDiveChanged(dive.ID)
	return dive, nil
}

// LogEvent appends a timestamped, depth-tagged event to the active session.
// The local log is only updated after the persisted append succeeds.
func (c *Controller) LogEvent(ctx context.Context, input EventInput) (Event, error) {
	if input.Type == "" {
		return Event{}, fmt.Errorf("%w: empty", ErrInvalidEventType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeDiveID == "" {
		return Event{}, newServiceError(opLogEvent, "no_active_session", ErrNoActiveSession)
	}
	return c.appendEventLocked(ctx, input)
}

func (c *Controller) appendEventLocked(ctx context.Context, input EventInput) (Event, error) {
	eventID, err := c.ids.NewID()
	if err != nil {
		return Event{}, newServiceError(opLogEvent, "id_generation_failed", err)
	}

	timestamp := c.now()
	if input.Time != nil {
		timestamp = *input.Time
	}
	depth := c.depth
	if input.Depth != nil {
		depth = *input.Depth
	}

	event := Event{
		ID:          eventID,
		DiveID:      c.activeDiveID,
		EventTime:   timestamp.UTC(),
		EventType:   input.Type,
		Description: input.Description,
		Depth:       depth,
	}
	if err := c.gateway.AppendEvent(ctx, &event); err != nil {
		c.logError(opLogEvent, "event_insert_failed", err,
			zap.String("dive_id", c.activeDiveID),
			zap.String("event_type", input.Type))
		return Event{}, newServiceError(opLogEvent, "event_insert_failed", err)
	}

	if depth > c.maxDepth {
		c.maxDepth = depth
	}
	c.eventLog = append([]Event{event}, c.eventLog...)
	return event, nil
}

// SetDepth records the current working depth, clamped to >= 0. The value is
// local until the next logged event captures it.
func (c *Controller) SetDepth(value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value < 0 {
		value = 0
	}
	c.depth = value
}

// StopSession appends the "Dive Ended" bookend and completes the dive row.
// Local state is cleared only after the completion succeeds; a rejected stop
// leaves the session active for a manual retry.
func (c *Controller) StopSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeDiveID == "" {
		return newServiceError(opStopSession, "no_active_session", ErrNoActiveSession)
	}

	if _, err := c.appendEventLocked(ctx, EventInput{Type: EventTypeDiveEnded, Description: descriptionDiveEnded}); err != nil {
		return newServiceError(opStopSession, "bookend_append_failed", err)
	}

	stopInstant := c.now()
	bottomTime := FormatBottomTime(stopInstant.Sub(c.clock.Start()))
	if err := c.gateway.CompleteDive(ctx, c.activeDiveID, stopInstant.Format(ClockTimeLayout), bottomTime, c.maxDepth); err != nil {
		c.logError(opStopSession, "dive_update_failed", err, zap.String("dive_id", c.activeDiveID))
		return newServiceError(opStopSession, "dive_update_failed", err)
	}

	diveID := c.activeDiveID
	c.clearSessionLocked()
	c.notifyDiveChanged(diveID)
	return nil
}

// CompleteSessionManually closes the session with an explicit timestamp, used
// when backfilling a missed log entry. The caller is expected to have logged
// the closing event already; no bookend is appended here. A timestamp earlier
// than the captured start yields a negative bottom time, which is persisted
// as-is.
func (c *Controller) CompleteSessionManually(ctx context.Context, endInstant time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeDiveID == "" {
		return newServiceError(opCompleteManual, "no_active_session", ErrNoActiveSession)
	}

	bottomTime := FormatBottomTime(endInstant.Sub(c.clock.Start()))
	if err := c.gateway.CompleteDive(ctx, c.activeDiveID, endInstant.Format(ClockTimeLayout), bottomTime, c.maxDepth); err != nil {
		c.logError(opCompleteManual, "dive_update_failed", err, zap.String("dive_id", c.activeDiveID))
		return newServiceError(opCompleteManual, "dive_update_failed", err)
	}

	diveID := c.activeDiveID
	c.clearSessionLocked()
	c.notifyDiveChanged(diveID)
	return nil
}

// Rehydrate restores the controller from the supervisor's persisted
// in-progress dive, if one exists. The stored event log supplies both the
// display history and the recovered start instant.
func (c *Controller) Rehydrate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeDiveID != "" {
		return nil
	}

	dive, err := c.gateway.FindActiveDive(ctx, c.supervisorID)
	if err != nil {
		return newServiceError(opRehydrate, "active_dive_lookup_failed", err)
	}
	if dive == nil {
		return nil
	}

	events, err := c.gateway.ListEventsDesc(ctx, dive.ID)
	if err != nil {
		return newServiceError(opRehydrate, "events_lookup_failed", err)
	}

	startInstant, err := recoverStartInstant(dive, events)
	if err != nil {
		return newServiceError(opRehydrate, "start_instant_unparseable", err)
	}

	c.activeDiveID = dive.ID
	c.clock = NewSessionClock(startInstant, c.now)
	c.eventLog = events
	c.depth = 0
	c.maxDepth = 0
	if len(events) > 0 {
		c.depth = events[0].Depth
	}
	for _, event := range events {
		if event.Depth > c.maxDepth {
			c.maxDepth = event.Depth
		}
	}
	if c.onTick != nil {
		c.stopTick = c.clock.Tick(c.onTick)
	}

	c.logger.Info("dive session rehydrated",
		zap.String("dive_id", dive.ID),
		zap.String("supervisor_id", c.supervisorID),
		zap.Int("events", len(events)))
	return nil
}

// recoverStartInstant prefers the earliest persisted event timestamp; a dive
// without events falls back to its recorded date and start time.
func recoverStartInstant(dive *Dive, eventsDesc []Event) (time.Time, error) {
	if len(eventsDesc) > 0 {
		return eventsDesc[len(eventsDesc)-1].EventTime, nil
	}
	return time.Parse(DateLayout+" "+ClockTimeLayout, dive.Date+" "+dive.StartTime)
}

// ActiveDiveID returns the active dive identifier, or "" when no session is
// open.
func (c *Controller) ActiveDiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeDiveID
}

// Depth returns the current working depth.
func (c *Controller) Depth() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depth
}

// ElapsedSeconds returns the whole seconds since session start, or 0 when no
// session is active.
func (c *Controller) ElapsedSeconds() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock == nil {
		return 0
	}
	return c.clock.ElapsedSeconds()
}

// EventLog returns a copy of the in-memory event log in display order, most
// recent first.
func (c *Controller) EventLog() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.eventLog) == 0 {
		return nil
	}
	log := make([]Event, len(c.eventLog))
	copy(log, c.eventLog)
	return log
}

// Close cancels the elapsed ticker, if any. The persisted session state is
// untouched.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}
}

func (c *Controller) clearSessionLocked() {
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}
	c.activeDiveID = ""
	c.clock = nil
	c.depth = 0
	c.maxDepth = 0
	c.eventLog = nil
}

func (c *Controller) notifyDiveChanged(diveID string) {
	if c.notify != nil {
		c.notify(diveID)
	}
}

func (c *Controller) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("supervisor_id", c.supervisorID),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	c.logger.Error("dive session error", attrs...)
}
