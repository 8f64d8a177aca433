package jobs

import (
	"errors"
	"time"
)

// JobStatus enumerates the lifecycle states of a job.
type JobStatus string

const (
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
)

var (
	// ErrInvalidJobName indicates an empty job name.
	ErrInvalidJobName = errors.New("jobs: job name is required")
	// ErrInvalidStatus indicates an unknown job status value.
	ErrInvalidStatus = errors.New("jobs: invalid status")
	// ErrJobNotFound indicates the job row does not exist.
	ErrJobNotFound = errors.New("jobs: job not found")
)

// Job models a diving job: the contract under which dives are performed.
type Job struct {
	ID          string    `gorm:"column:id;primaryKey;size:36;not null"`
	Name        string    `gorm:"column:job_name;size:190;not null"`
	ClientName  string    `gorm:"column:client_name;size:190;not null;default:''"`
	Location    string    `gorm:"column:location;size:190;not null;default:''"`
	Description string    `gorm:"column:description;type:text;not null;default:''"`
	Status      JobStatus `gorm:"column:status;size:32;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Job) TableName() string {
	return "jobs"
}

// ParseStatus validates a raw status value.
func ParseStatus(value string) (JobStatus, error) {
	switch JobStatus(value) {
	case JobStatusActive, JobStatusCompleted, JobStatusCancelled:
		return JobStatus(value), nil
	default:
		return "", ErrInvalidStatus
	}
}
