package profiles

import (
	"strings"
	"time"
)

// Profile captures the supervisor record referenced by dive rows.
type Profile struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	Username  string    `gorm:"column:username;size:320;not null;default:''"`
	FullName  string    `gorm:"column:full_name;size:320;not null;default:''"`
	Role      string    `gorm:"column:role;size:32;not null;default:'supervisor'"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing supervisor profiles.
func (Profile) TableName() string {
	return "profiles"
}

// displayName derives a readable name from an email-style username.
func displayName(username string) string {
	trimmed := strings.TrimSpace(username)
	if at := strings.IndexByte(trimmed, '@'); at > 0 {
		return trimmed[:at]
	}
	return trimmed
}
