package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

// DriverHealthState is the derived eligibility state per driver. Eligibility
// is a one-way latch: once hard_stopped, only a manager reinstatement writes
// eligible back.
type DriverHealthState struct {
	DriverID                    uuid.UUID               `gorm:"column:driver_id;type:uuid;primaryKey"`
	Score                       float64                 `gorm:"column:score;not null;default:0"`
	StarTier                    int                     `gorm:"column:star_tier;not null;default:0"`
	StreakWeeks                 int                     `gorm:"column:streak_weeks;not null;default:0"`
	Flagged                     bool                    `gorm:"column:flagged;not null;default:false"`
	FlaggedAt                   *time.Time              `gorm:"column:flagged_at"`
	Eligibility                 enums.HealthEligibility `gorm:"column:eligibility;type:health_eligibility;not null;default:'eligible'"`
	RequiresManagerIntervention bool                    `gorm:"column:requires_manager_intervention;not null;default:false"`
	UpdatedAt                   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the plural-exception table name.
func (DriverHealthState) TableName() string {
	return "driver_health_states"
}
