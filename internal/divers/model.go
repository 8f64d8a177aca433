package divers

import (
	"errors"
	"time"
)

var (
	// ErrInvalidDiverName indicates an empty diver name.
	ErrInvalidDiverName = errors.New("divers: full name is required")
	// ErrInvalidRank indicates an empty rank selection.
	ErrInvalidRank = errors.New("divers: rank is required")
	// ErrInvalidRankName indicates an empty rank name.
	ErrInvalidRankName = errors.New("divers: rank name is required")
	// ErrDiverNotFound indicates the diver row does not exist.
	ErrDiverNotFound = errors.New("divers: diver not found")
	// ErrRankNotFound indicates the rank row does not exist.
	ErrRankNotFound = errors.New("divers: rank not found")
)

// Diver models a diver record with contact and certification details.
type Diver struct {
	ID              string    `gorm:"column:id;primaryKey;size:36;not null"`
	FullName        string    `gorm:"column:full_name;size:190;not null;index"`
	Rank            string    `gorm:"column:rank;size:64;not null"`
	Email           string    `gorm:"column:email;size:320;not null;default:''"`
	Phone           string    `gorm:"column:phone;size:64;not null;default:''"`
	CertificationNo string    `gorm:"column:certification_no;size:190;not null;default:''"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Diver) TableName() string {
	return "divers"
}

// Rank is an entry in the mutable master list of diver ranks.
type Rank struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	Name      string    `gorm:"column:name;size:64;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Rank) TableName() string {
	return "ranks"
}
