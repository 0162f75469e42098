package models

import (
	"time"

	"github.com/google/uuid"
)

// Route is a recurring delivery route departing from a warehouse. Shift
// start is a wall-clock time in the business timezone, not an instant.
type Route struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null"`
	WarehouseID    uuid.UUID `gorm:"column:warehouse_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;type:text;not null"`
	StartHour      int       `gorm:"column:start_hour;not null"`
	StartMinute    int       `gorm:"column:start_minute;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Warehouse is the depot a route departs from.
type Warehouse struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;type:text;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
