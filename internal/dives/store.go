package dives

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("dives: database handle is required")

// Store is the gorm-backed Gateway implementation.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store over the provided database handle.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Store{db: db}, nil
}

// CreateDive inserts the dive row, assigning the next dive number for its job.
func (s *Store) CreateDive(ctx context.Context, dive *Dive) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxDiveNo int64
		err := tx.Model(&Dive{}).
			Where("job_id = ?", dive.JobID).
			Select("COALESCE(MAX(dive_no), 0)").
			Scan(&maxDiveNo).Error
		if err != nil {
			return err
		}
		dive.DiveNo = maxDiveNo + 1
		return tx.Create(dive).Error
	})
}

// AppendEvent inserts a dive event row.
func (s *Store) AppendEvent(ctx context.Context, event *Event) error {
	return s.db.WithContext(ctx).Create(event).Error
}

// CompleteDive closes the dive row.
func (s *Store) CompleteDive(ctx context.Context, diveID, endTime, bottomTime string, maxDepth float64) error {
	result := s.db.WithContext(ctx).Model(&Dive{}).
		Where("id = ?", diveID).
		Updates(map[string]interface{}{
			"end_time":    endTime,
			"status":      DiveStatusCompleted,
			"bottom_time": bottomTime,
			"max_depth":   maxDepth,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("dives: dive %s not found", diveID)
	}
	return nil
}

// FindActiveDive returns the supervisor's most recent in-progress dive, or nil
// when no session is open.
func (s *Store) FindActiveDive(ctx context.Context, supervisorID string) (*Dive, error) {
	var dive Dive
	err := s.db.WithContext(ctx).
		Where("supervisor_id = ? AND status = ?", supervisorID, DiveStatusInProgress).
		Order("created_at DESC").
		Take(&dive).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dive, nil
}

// ListEventsDesc returns a dive's events most recent first.
func (s *Store) ListEventsDesc(ctx context.Context, diveID string) ([]Event, error) {
	var events []Event
	err := s.db.WithContext(ctx).
		Where("dive_id = ?", diveID).
		Order("event_time DESC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

type historyRow struct {
	ID       string
	DiveNo   int64
	Date     string
	Status   string
	FullName string
}

// ListJobHistory returns prior dives for a job, most recently created first,
// with the diver's name resolved.
func (s *Store) ListJobHistory(ctx context.Context, jobID string) ([]HistoryEntry, error) {
	var rows []historyRow
	err := s.db.WithContext(ctx).
		Table("dives").
		Select("dives.id AS id, dives.dive_no AS dive_no, dives.date AS date, dives.status AS status, divers.full_name AS full_name").
		Joins("LEFT JOIN divers ON divers.id = dives.diver_id").
		Where("dives.job_id = ?", jobID).
		Order("dives.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, newServiceError(opListHistory, "query_failed", err)
	}
	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, HistoryEntry{
			DiveID:    row.ID,
			DiveNo:    row.DiveNo,
			Date:      row.Date,
			DiverName: row.FullName,
			Status:    DiveStatus(row.Status),
		})
	}
	return entries, nil
}

// DeleteDive removes the dependent events and then the dive row. The deletes
// are deliberately sequential, not transactional: the cascade ordering is the
// contract, and a failed events delete must leave the dive row in place.
func (s *Store) DeleteDive(ctx context.Context, diveID string) error {
	if err := s.db.WithContext(ctx).Where("dive_id = ?", diveID).Delete(&Event{}).Error; err != nil {
		return newServiceError(opDeleteDive, "events_delete_failed", err)
	}
	if err := s.db.WithContext(ctx).Where("id = ?", diveID).Delete(&Dive{}).Error; err != nil {
		return newServiceError(opDeleteDive, "dive_delete_failed", err)
	}
	return nil
}
