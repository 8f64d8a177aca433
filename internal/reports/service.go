package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/subseaops/divelog/internal/divers"
	"github.com/subseaops/divelog/internal/dives"
	"github.com/subseaops/divelog/internal/jobs"
	"github.com/subseaops/divelog/internal/profiles"
)

var (
	errMissingDatabase = errors.New("reports: database handle is required")

	// ErrDiveNotFound indicates the requested dive does not exist.
	ErrDiveNotFound = errors.New("reports: dive not found")
	// ErrEventNotFound indicates the requested event does not exist.
	ErrEventNotFound = errors.New("reports: event not found")
	// ErrInvalidDate indicates the report date is not a calendar day.
	ErrInvalidDate = errors.New("reports: invalid date")
	// ErrInvalidEventType indicates an empty event type on a log edit.
	ErrInvalidEventType = errors.New("reports: event type is required")
)

// IDProvider issues identifiers for added log entries.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the report service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
}

// Service assembles printable dive reports, the daily report and the
// dashboard summary, and supports editing a recorded dive's event log.
type Service struct {
	db  *gorm.DB
	ids IDProvider
}

// NewService constructs the report service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errors.New("reports: id provider is required")
	}
	return &Service{db: cfg.Database, ids: cfg.IDProvider}, nil
}

// DiveReport is the data source for the A4 dive sheet: the dive row joined
// with its job, diver and supervisor, plus the event log in chronological
// order.
type DiveReport struct {
	Dive           dives.Dive
	Job            jobs.Job
	Diver          divers.Diver
	SupervisorName string
	Events         []dives.Event
}

// DiveReport loads the full report for a single dive.
func (s *Service) DiveReport(ctx context.Context, diveID string) (DiveReport, error) {
	var dive dives.Dive
	err := s.db.WithContext(ctx).Where("id = ?", diveID).Take(&dive).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DiveReport{}, ErrDiveNotFound
	}
	if err != nil {
		return DiveReport{}, err
	}

	report := DiveReport{Dive: dive}

	// Related rows may have been edited or removed since the dive was logged;
	// the sheet renders blanks rather than failing.
	if err := s.db.WithContext(ctx).Where("id = ?", dive.JobID).Take(&report.Job).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return DiveReport{}, err
	}
	if err := s.db.WithContext(ctx).Where("id = ?", dive.DiverID).Take(&report.Diver).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return DiveReport{}, err
	}
	var supervisor profiles.Profile
	err = s.db.WithContext(ctx).Where("id = ?", dive.SupervisorID).Take(&supervisor).Error
	if err == nil {
		report.SupervisorName = supervisor.FullName
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return DiveReport{}, err
	}

	err = s.db.WithContext(ctx).
		Where("dive_id = ?", diveID).
		Order("event_time ASC").
		Find(&report.Events).Error
	if err != nil {
		return DiveReport{}, err
	}

	return report, nil
}

// DailyDive is one entry of the daily report.
type DailyDive struct {
	Dive      dives.Dive
	JobName   string
	DiverName string
}

// DailyReport lists the dives of a calendar date ordered by dive number.
func (s *Service) DailyReport(ctx context.Context, date string) ([]DailyDive, error) {
	trimmed := strings.TrimSpace(date)
	if _, err := time.Parse(dives.DateLayout, trimmed); err != nil {
		return nil, ErrInvalidDate
	}

	var rows []dives.Dive
	err := s.db.WithContext(ctx).
		Where("date = ?", trimmed).
		Order("dive_no ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	report := make([]DailyDive, 0, len(rows))
	for _, dive := range rows {
		entry := DailyDive{Dive: dive}
		entry.JobName, entry.DiverName = s.resolveNames(ctx, dive)
		report = append(report, entry)
	}
	return report, nil
}

// DashboardStats summarizes current operations for the dashboard view.
type DashboardStats struct {
	ActiveDives int64
	DivesToday  int64
	ActiveJob   string
	Recent      []DailyDive
}

// Dashboard computes the in-progress and today counts plus the five most
// recent dives.
func (s *Service) Dashboard(ctx context.Context, today string) (DashboardStats, error) {
	var stats DashboardStats

	err := s.db.WithContext(ctx).Model(&dives.Dive{}).
		Where("status = ?", dives.DiveStatusInProgress).
		Count(&stats.ActiveDives).Error
	if err != nil {
		return DashboardStats{}, err
	}

	err = s.db.WithContext(ctx).Model(&dives.Dive{}).
		Where("date = ?", today).
		Count(&stats.DivesToday).Error
	if err != nil {
		return DashboardStats{}, err
	}

	stats.ActiveJob = "None"
	var current dives.Dive
	err = s.db.WithContext(ctx).
		Where("status = ?", dives.DiveStatusInProgress).
		Order("created_at DESC").
		Take(&current).Error
	if err == nil {
		var job jobs.Job
		if jobErr := s.db.WithContext(ctx).Where("id = ?", current.JobID).Take(&job).Error; jobErr == nil {
			stats.ActiveJob = job.Name
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return DashboardStats{}, err
	}

	var recent []dives.Dive
	err = s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(5).
		Find(&recent).Error
	if err != nil {
		return DashboardStats{}, err
	}
	for _, dive := range recent {
		entry := DailyDive{Dive: dive}
		entry.JobName, entry.DiverName = s.resolveNames(ctx, dive)
		stats.Recent = append(stats.Recent, entry)
	}

	return stats, nil
}

// EventInput carries the editable fields of a recorded log entry.
type EventInput struct {
	EventTime   time.Time
	EventType   string
	Description string
	Depth       float64
}

// AddEvent appends a backfilled entry to a recorded dive's log.
func (s *Service) AddEvent(ctx context.Context, diveID string, input EventInput) (dives.Event, error) {
	if strings.TrimSpace(input.EventType) == "" {
		return dives.Event{}, ErrInvalidEventType
	}
	var dive dives.Dive
	err := s.db.WithContext(ctx).Where("id = ?", diveID).Take(&dive).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dives.Event{}, ErrDiveNotFound
	}
	if err != nil {
		return dives.Event{}, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return dives.Event{}, err
	}
	event := dives.Event{
		ID:          id,
		DiveID:      diveID,
		EventTime:   input.EventTime.UTC(),
		EventType:   strings.TrimSpace(input.EventType),
		Description: input.Description,
		Depth:       input.Depth,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return dives.Event{}, err
	}
	return event, nil
}

// UpdateEvent rewrites a recorded log entry.
func (s *Service) UpdateEvent(ctx context.Context, eventID string, input EventInput) error {
	if strings.TrimSpace(input.EventType) == "" {
		return ErrInvalidEventType
	}
	result := s.db.WithContext(ctx).Model(&dives.Event{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"event_time":  input.EventTime.UTC(),
			"event_type":  strings.TrimSpace(input.EventType),
			"description": input.Description,
			"depth":       input.Depth,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// DeleteEvent removes a recorded log entry.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", eventID).Delete(&dives.Event{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *Service) resolveNames(ctx context.Context, dive dives.Dive) (jobName, diverName string) {
	var job jobs.Job
	if err := s.db.WithContext(ctx).Where("id = ?", dive.JobID).Take(&job).Error; err == nil {
		jobName = job.Name
	}
	var diver divers.Diver
	if err := s.db.WithContext(ctx).Where("id = ?", dive.DiverID).Take(&diver).Error; err == nil {
		diverName = diver.FullName
	}
	return jobName, diverName
}
