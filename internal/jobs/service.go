package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("jobs: database handle is required")

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the job service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Clock      func() time.Time
}

// Service owns job CRUD.
type Service struct {
	db  *gorm.DB
	ids IDProvider
}

// NewService constructs the job service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errors.New("jobs: id provider is required")
	}
	return &Service{db: cfg.Database, ids: cfg.IDProvider}, nil
}

// JobInput carries the editable job fields.
type JobInput struct {
	Name        string
	ClientName  string
	Location    string
	Description string
	Status      string
}

// Create inserts a new job. An empty status defaults to active.
func (s *Service) Create(ctx context.Context, input JobInput) (Job, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Job{}, ErrInvalidJobName
	}
	status := JobStatusActive
	if input.Status != "" {
		parsed, err := ParseStatus(input.Status)
		if err != nil {
			return Job{}, err
		}
		status = parsed
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Job{}, err
	}
	job := Job{
		ID:          id,
		Name:        name,
		ClientName:  strings.TrimSpace(input.ClientName),
		Location:    strings.TrimSpace(input.Location),
		Description: strings.TrimSpace(input.Description),
		Status:      status,
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return Job{}, err
	}
	return job, nil
}

// Update rewrites the editable fields of an existing job.
func (s *Service) Update(ctx context.Context, id string, input JobInput) (Job, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Job{}, ErrInvalidJobName
	}
	status, err := ParseStatus(input.Status)
	if err != nil {
		return Job{}, err
	}

	result := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"job_name":    name,
			"client_name": strings.TrimSpace(input.ClientName),
			"location":    strings.TrimSpace(input.Location),
			"description": strings.TrimSpace(input.Description),
			"status":      status,
		})
	if result.Error != nil {
		return Job{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Job{}, ErrJobNotFound
	}
	return s.Get(ctx, id)
}

// Get loads a single job.
func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	var job Job
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

// List returns all jobs, most recently created first.
func (s *Service) List(ctx context.Context) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListActive returns jobs eligible for new dive sessions.
func (s *Service) ListActive(ctx context.Context) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).
		Where("status = ?", JobStatusActive).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
