package models

import (
	"time"

	"github.com/google/uuid"
)

// Driver is a delivery driver belonging to one organization.
type Driver struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID  uuid.UUID  `gorm:"column:organization_id;type:uuid;not null"`
	FullName        string     `gorm:"column:full_name;type:text;not null"`
	Phone           *string    `gorm:"column:phone;type:text"`
	WeeklyCap       int        `gorm:"column:weekly_cap;not null;default:5"`
	PreferredRoutes []string   `gorm:"column:preferred_routes;type:jsonb;serializer:json"`
	Active          bool       `gorm:"column:active;not null;default:true"`
	DeactivatedAt   *time.Time `gorm:"column:deactivated_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
