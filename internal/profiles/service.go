package profiles

import (
	"context"
	"errors"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultRole = "supervisor"

var (
	errMissingDatabase = errors.New("profiles: database handle is required")
	// ErrInvalidProfileID indicates an empty profile identifier.
	ErrInvalidProfileID = errors.New("profiles: profile id is required")
	// ErrProfileNotFound indicates the profile row does not exist.
	ErrProfileNotFound = errors.New("profiles: profile not found")
)

// ServiceConfig describes the dependencies of the profile service.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service manages supervisor profile rows.
type Service struct {
	db    *gorm.DB
	cache sync.Map
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	return &Service{db: cfg.Database}, nil
}

// EnsureProfile idempotently provisions a profile row for the supervisor. The
// insert carries an ON CONFLICT DO NOTHING clause, so two near-simultaneous
// session starts cannot double-insert.
func (s *Service) EnsureProfile(ctx context.Context, id, username string) error {
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return ErrInvalidProfileID
	}
	if _, ok := s.cache.Load(trimmedID); ok {
		return nil
	}

	profile := Profile{
		ID:       trimmedID,
		Username: strings.TrimSpace(username),
		FullName: displayName(username),
		Role:     defaultRole,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&profile).Error
	if err != nil {
		return err
	}

	s.cache.Store(trimmedID, struct{}{})
	return nil
}

// Get loads a profile row.
func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	var profile Profile
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}
