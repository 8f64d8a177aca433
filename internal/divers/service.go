package divers

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("divers: database handle is required")

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the diver service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
}

// Service owns diver records and the ranks master list.
type Service struct {
	db  *gorm.DB
	ids IDProvider
}

// NewService constructs the diver service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errors.New("divers: id provider is required")
	}
	return &Service{db: cfg.Database, ids: cfg.IDProvider}, nil
}

// DiverInput carries the editable diver fields.
type DiverInput struct {
	FullName        string
	Rank            string
	Email           string
	Phone           string
	CertificationNo string
}

func (input DiverInput) validate() error {
	if strings.TrimSpace(input.FullName) == "" {
		return ErrInvalidDiverName
	}
	if strings.TrimSpace(input.Rank) == "" {
		return ErrInvalidRank
	}
	return nil
}

// CreateDiver inserts a new diver record.
func (s *Service) CreateDiver(ctx context.Context, input DiverInput) (Diver, error) {
	if err := input.validate(); err != nil {
		return Diver{}, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return Diver{}, err
	}
	diver := Diver{
		ID:              id,
		FullName:        strings.TrimSpace(input.FullName),
		Rank:            strings.TrimSpace(input.Rank),
		Email:           strings.TrimSpace(input.Email),
		Phone:           strings.TrimSpace(input.Phone),
		CertificationNo: strings.TrimSpace(input.CertificationNo),
	}
	if err := s.db.WithContext(ctx).Create(&diver).Error; err != nil {
		return Diver{}, err
	}
	return diver, nil
}

// UpdateDiver rewrites the editable fields of an existing diver.
func (s *Service) UpdateDiver(ctx context.Context, id string, input DiverInput) (Diver, error) {
	if err := input.validate(); err != nil {
		return Diver{}, err
	}
	result := s.db.WithContext(ctx).Model(&Diver{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"full_name":        strings.TrimSpace(input.FullName),
			"rank":             strings.TrimSpace(input.Rank),
			"email":            strings.TrimSpace(input.Email),
			"phone":            strings.TrimSpace(input.Phone),
			"certification_no": strings.TrimSpace(input.CertificationNo),
		})
	if result.Error != nil {
		return Diver{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Diver{}, ErrDiverNotFound
	}

	var diver Diver
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&diver).Error; err != nil {
		return Diver{}, err
	}
	return diver, nil
}

// ListDivers returns all divers ordered by name.
func (s *Service) ListDivers(ctx context.Context) ([]Diver, error) {
	var divers []Diver
	err := s.db.WithContext(ctx).
		Order("full_name ASC").
		Find(&divers).Error
	if err != nil {
		return nil, err
	}
	return divers, nil
}

// ListRanks returns the ranks master list ordered by name.
func (s *Service) ListRanks(ctx context.Context) ([]Rank, error) {
	var ranks []Rank
	err := s.db.WithContext(ctx).
		Order("name ASC").
		Find(&ranks).Error
	if err != nil {
		return nil, err
	}
	return ranks, nil
}

// AddRank appends a new rank to the master list. Names are unique.
func (s *Service) AddRank(ctx context.Context, name string) (Rank, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Rank{}, ErrInvalidRankName
	}
	id, err := s.ids.NewID()
	if err != nil {
		return Rank{}, err
	}
	rank := Rank{ID: id, Name: trimmed}
	if err := s.db.WithContext(ctx).Create(&rank).Error; err != nil {
		return Rank{}, err
	}
	return rank, nil
}

// DeleteRank removes a rank from the master list.
func (s *Service) DeleteRank(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Rank{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRankNotFound
	}
	return nil
}
