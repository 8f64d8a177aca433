package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subseaops/divelog/internal/dives"
)

type startSessionRequestPayload struct {
	JobID   string `json:"job_id"`
	DiverID string `json:"diver_id"`
}

type eventPayload struct {
	ID          string  `json:"id"`
	EventTime   string  `json:"event_time"`
	EventType   string  `json:"event_type"`
	Description string  `json:"description"`
	Depth       float64 `json:"depth"`
}

type sessionStatePayload struct {
	Active         bool           `json:"active"`
	DiveID         string         `json:"dive_id,omitempty"`
	ElapsedSeconds int64          `json:"elapsed_seconds"`
	Elapsed        string         `json:"elapsed"`
	Depth          float64        `json:"depth"`
	Events         []eventPayload `json:"events"`
}

func (h *httpHandler) controllerForRequest(c *gin.Context) (*dives.Controller, bool) {
	controller, err := h.sessions.Controller(c.Request.Context(), c.GetString(userIDContextKey), c.GetString(userEmailContextKey))
	if err != nil {
		h.logger.Error("session controller unavailable", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_unavailable"})
		return nil, false
	}
	return controller, true
}

func (h *httpHandler) handleSessionState(c *gin.Context) {
	controller, ok := h.controllerForRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionStateOf(controller))
}

func (h *httpHandler) handleStartSession(c *gin.Context) {
	var request startSessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	controller, ok := h.controllerForRequest(c)
	if !ok {
		return
	}

	dive, err := controller.StartSession(c.Request.Context(), request.JobID, request.DiverID)
	if err != nil {
		switch {
		case errors.Is(err, dives.ErrInvalidJobID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "job_required"})
		case errors.Is(err, dives.ErrInvalidDiverID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "diver_required"})
		case errors.Is(err, dives.ErrSessionActive):
			c.JSON(http.StatusConflict, gin.H{"error": "session_active"})
		default:
			h.logger.Error("start session failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": serviceErrorCode(err, "start_failed")})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"dive_id":    dive.ID,
		"dive_no":    dive.DiveNo,
		"date":       dive.Date,
		"start_time": dive.StartTime,
		"status":     dive.Status,
	})
}

type logEventRequestPayload struct {
	EventType   string   `json:"event_type"`
	Description string   `json:"description"`
	EventTime   *string  `json:"event_time"`
	Depth       *float64 `json:"depth"`
}

func (h *httpHandler) handleLogEvent(c *gin.Context) {
	var request logEventRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	input := dives.EventInput{
		Type:        request.EventType,
		Description: request.Description,
		Depth:       request.Depth,
	}
	if request.EventTime != nil {
		parsed, err := time.Parse(time.RFC3339, *request.EventTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_event_time"})
			return
		}
		input.Time = &parsed
	}

	controller, ok := h.controllerForRequest(c)
	if !ok {
		return
	}

	event, err := controller.LogEvent(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, dives.ErrInvalidEventType):
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_type_required"})
		case errors.Is(err, dives.ErrNoActiveSession):
			c.JSON(http.StatusConflict, gin.H{"error": "no_active_session"})
		default:
			h.logger.Error("log event failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": serviceErrorCode(err, "log_event_failed")})
		}
		return
	}

	c.JSON(http.StatusCreated, toEventPayload(event))
}

type depthRequestPayload struct {
	Depth float64 `json:"depth"`
}

func (h *httpHandler) handleSetDepth(c *gin.Context) {
	var request depthRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	controller, ok := h.controllerForRequest(c)
	if !ok {
		return
	}

	controller.SetDepth(request.Depth)
	c.JSON(http.StatusOK, gin.H{"depth": controller.Depth()})
}

func (h *httpHandler) handleStopSession(c *gin.Context) {
	controller, ok := h.controllerForRequest(c)
	if !ok {
		return
	}

	if err := controller.StopSession(c.Request.Context()); err != nil {
		if errors.Is(err, dives.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "no_active_session"})
			return
		}
		h.logger.Error("stop session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": serviceErrorCode(err, "stop_failed")})
		return
	}

	c.Status(http.StatusNoContent)
}

type completeManuallyRequestPayload struct {
	EventTime string `json:"event_time"`
}

func (h *httpHandler) handleCompleteManually(c *gin.Context) {
	var request completeManuallyRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	endInstant, err := time.Parse(time.RFC3339, request.EventTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_event_time"})
		return
	}

	controller, ok := h.controllerForRequest(c)
	if !ok {
		return
	}

	if err := controller.CompleteSessionManually(c.Request.Context(), endInstant); err != nil {
		if errors.Is(err, dives.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "no_active_session"})
			return
		}
		h.logger.Error("manual completion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": serviceErrorCode(err, "complete_failed")})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleJobHistory(c *gin.Context) {
	entries, err := h.history.ListJobHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("job history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": serviceErrorCode(err, "history_failed")})
		return
	}

	payload := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, gin.H{
			"dive_id":    entry.DiveID,
			"dive_no":    entry.DiveNo,
			"date":       entry.Date,
			"diver_name": entry.DiverName,
			"status":     entry.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"dives": payload})
}

func (h *httpHandler) handleDeleteDive(c *gin.Context) {
	diveID := c.Param("id")
	if err := h.history.DeleteDive(c.Request.Context(), diveID); err != nil {
		h.logger.Error("dive delete failed", zap.Error(err), zap.String("dive_id", diveID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": serviceErrorCode(err, "delete_failed")})
		return
	}

	h.dispatcher.Publish(RealtimeMessage{
		EventType: RealtimeEventDiveChanged,
		DiveID:    diveID,
		Timestamp: h.clock().UTC(),
	})
	c.Status(http.StatusNoContent)
}

func sessionStateOf(controller *dives.Controller) sessionStatePayload {
	elapsedSeconds := controller.ElapsedSeconds()
	state := sessionStatePayload{
		Active:         controller.ActiveDiveID() != "",
		DiveID:         controller.ActiveDiveID(),
		ElapsedSeconds: elapsedSeconds,
		Elapsed:        dives.FormatElapsed(elapsedSeconds),
		Depth:          controller.Depth(),
		Events:         []eventPayload{},
	}
	for _, event := range controller.EventLog() {
		state.Events = append(state.Events, toEventPayload(event))
	}
	return state
}

func toEventPayload(event dives.Event) eventPayload {
	return eventPayload{
		ID:          event.ID,
		EventTime:   event.EventTime.UTC().Format(time.RFC3339),
		EventType:   event.EventType,
		Description: event.Description,
		Depth:       event.Depth,
	}
}

func serviceErrorCode(err error, fallback string) string {
	var serviceErr *dives.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return fallback
}
