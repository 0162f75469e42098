package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

// BidWindow is the contested-resolution unit for exactly one assignment. A
// partial unique index guarantees at most one open window per assignment.
type BidWindow struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID uuid.UUID             `gorm:"column:organization_id;type:uuid;not null"`
	AssignmentID   uuid.UUID             `gorm:"column:assignment_id;type:uuid;not null"`
	Mode           enums.BidWindowMode   `gorm:"column:mode;type:bid_window_mode;not null;default:'competitive'"`
	Status         enums.BidWindowStatus `gorm:"column:status;type:bid_window_status;not null;default:'open'"`
	OpenedAt       time.Time             `gorm:"column:opened_at;not null"`
	ClosesAt       *time.Time            `gorm:"column:closes_at"`
	ResolvedAt     *time.Time            `gorm:"column:resolved_at"`
	WinnerDriverID *uuid.UUID            `gorm:"column:winner_driver_id;type:uuid"`
	BonusPercent   *decimal.Decimal      `gorm:"column:bonus_percent;type:numeric(5,2)"`
	Bids           []Bid                 `gorm:"foreignKey:BidWindowID"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// Bid is one driver's expression of interest in one window. A driver holds
// at most one bid per window, enforced by a unique index.
type Bid struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BidWindowID uuid.UUID       `gorm:"column:bid_window_id;type:uuid;not null"`
	DriverID    uuid.UUID       `gorm:"column:driver_id;type:uuid;not null"`
	Status      enums.BidStatus `gorm:"column:status;type:bid_status;not null;default:'pending'"`
	SubmittedAt time.Time       `gorm:"column:submitted_at;not null"`
	Score       *float64        `gorm:"column:score"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
