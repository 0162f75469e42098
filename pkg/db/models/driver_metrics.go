package models

import (
	"time"

	"github.com/google/uuid"
)

// DriverMetrics is the rolling aggregate per driver. It is recomputed from
// assignment history as a whole, never incrementally patched.
type DriverMetrics struct {
	DriverID         uuid.UUID      `gorm:"column:driver_id;type:uuid;primaryKey"`
	TotalShifts      int            `gorm:"column:total_shifts;not null;default:0"`
	CompletedShifts  int            `gorm:"column:completed_shifts;not null;default:0"`
	CancelledShifts  int            `gorm:"column:cancelled_shifts;not null;default:0"`
	NoShows          int            `gorm:"column:no_shows;not null;default:0"`
	AttendanceRate   float64        `gorm:"column:attendance_rate;not null;default:0"`
	CompletionRate   float64        `gorm:"column:completion_rate;not null;default:0"`
	AvgParcels       float64        `gorm:"column:avg_parcels;not null;default:0"`
	RouteCompletions map[string]int `gorm:"column:route_completions;type:jsonb;serializer:json"`
	RecomputedAt     time.Time      `gorm:"column:recomputed_at;not null"`
}

// TableName pins the plural-exception table name.
func (DriverMetrics) TableName() string {
	return "driver_metrics"
}
