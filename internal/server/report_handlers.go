package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subseaops/divelog/internal/dives"
	"github.com/subseaops/divelog/internal/reports"
)

type diveReportPayload struct {
	DiveID         string         `json:"dive_id"`
	DiveNo         int64          `json:"dive_no"`
	Date           string         `json:"date"`
	StartTime      string         `json:"start_time"`
	EndTime        string         `json:"end_time"`
	Status         string         `json:"status"`
	BottomTime     string         `json:"bottom_time"`
	MaxDepth       float64        `json:"max_depth"`
	JobName        string         `json:"job_name"`
	ClientName     string         `json:"client_name"`
	Location       string         `json:"location"`
	DiverName      string         `json:"diver_name"`
	DiverRank      string         `json:"diver_rank"`
	SupervisorName string         `json:"supervisor_name"`
	Events         []eventPayload `json:"events"`
}

func (h *httpHandler) handleDiveReport(c *gin.Context) {
	report, err := h.reports.DiveReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, reports.ErrDiveNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "dive_not_found"})
			return
		}
		h.logger.Error("dive report failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report_failed"})
		return
	}

	payload := diveReportPayload{
		DiveID:         report.Dive.ID,
		DiveNo:         report.Dive.DiveNo,
		Date:           report.Dive.Date,
		StartTime:      report.Dive.StartTime,
		EndTime:        report.Dive.EndTime,
		Status:         string(report.Dive.Status),
		BottomTime:     report.Dive.BottomTime,
		MaxDepth:       report.Dive.MaxDepth,
		JobName:        report.Job.Name,
		ClientName:     report.Job.ClientName,
		Location:       report.Job.Location,
		DiverName:      report.Diver.FullName,
		DiverRank:      report.Diver.Rank,
		SupervisorName: report.SupervisorName,
		Events:         []eventPayload{},
	}
	for _, event := range report.Events {
		payload.Events = append(payload.Events, toEventPayload(event))
	}
	c.JSON(http.StatusOK, payload)
}

type reportEventRequestPayload struct {
	EventTime   string  `json:"event_time"`
	EventType   string  `json:"event_type"`
	Description string  `json:"description"`
	Depth       float64 `json:"depth"`
}

func (h *httpHandler) handleAddReportEvent(c *gin.Context) {
	input, ok := h.bindReportEvent(c)
	if !ok {
		return
	}

	event, err := h.reports.AddEvent(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondReportEventError(c, err, "event_add_failed")
		return
	}
	c.JSON(http.StatusCreated, toEventPayload(event))
}

func (h *httpHandler) handleUpdateReportEvent(c *gin.Context) {
	input, ok := h.bindReportEvent(c)
	if !ok {
		return
	}

	if err := h.reports.UpdateEvent(c.Request.Context(), c.Param("id"), input); err != nil {
		h.respondReportEventError(c, err, "event_update_failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteReportEvent(c *gin.Context) {
	if err := h.reports.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		h.respondReportEventError(c, err, "event_delete_failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) bindReportEvent(c *gin.Context) (reports.EventInput, bool) {
	var request reportEventRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return reports.EventInput{}, false
	}
	eventTime, err := time.Parse(time.RFC3339, request.EventTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_event_time"})
		return reports.EventInput{}, false
	}
	return reports.EventInput{
		EventTime:   eventTime,
		EventType:   request.EventType,
		Description: request.Description,
		Depth:       request.Depth,
	}, true
}

func (h *httpHandler) respondReportEventError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, reports.ErrInvalidEventType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_type_required"})
	case errors.Is(err, reports.ErrDiveNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "dive_not_found"})
	case errors.Is(err, reports.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "event_not_found"})
	default:
		h.logger.Error("report event operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

type dailyDivePayload struct {
	DiveID     string `json:"dive_id"`
	DiveNo     int64  `json:"dive_no"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
	BottomTime string `json:"bottom_time"`
	JobName    string `json:"job_name"`
	DiverName  string `json:"diver_name"`
}

func (h *httpHandler) handleDailyReport(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = h.clock().Format(dives.DateLayout)
	}

	entries, err := h.reports.DailyReport(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, reports.ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		h.logger.Error("daily report failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report_failed"})
		return
	}

	payload := make([]dailyDivePayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, toDailyDivePayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "dives": payload})
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	stats, err := h.reports.Dashboard(c.Request.Context(), h.clock().Format(dives.DateLayout))
	if err != nil {
		h.logger.Error("dashboard failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard_failed"})
		return
	}

	recent := make([]dailyDivePayload, 0, len(stats.Recent))
	for _, entry := range stats.Recent {
		recent = append(recent, toDailyDivePayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{
		"active_dives": stats.ActiveDives,
		"dives_today":  stats.DivesToday,
		"active_job":   stats.ActiveJob,
		"recent":       recent,
	})
}

func (h *httpHandler) handleEventStream(c *gin.Context) {
	stream, cleanup := h.dispatcher.Subscribe(c.Request.Context())
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, gin.H{
				"dive_id":   message.DiveID,
				"timestamp": message.Timestamp.UTC().Format(time.RFC3339),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, h.clock().UTC().Format(time.RFC3339))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func toDailyDivePayload(entry reports.DailyDive) dailyDivePayload {
	return dailyDivePayload{
		DiveID:     entry.Dive.ID,
		DiveNo:     entry.Dive.DiveNo,
		StartTime:  entry.Dive.StartTime,
		EndTime:    entry.Dive.EndTime,
		Status:     string(entry.Dive.Status),
		BottomTime: entry.Dive.BottomTime,
		JobName:    entry.JobName,
		DiverName:  entry.DiverName,
	}
}
