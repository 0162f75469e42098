package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

// Assignment binds one driver to one route on one calendar date. ShiftDate
// is a business-timezone calendar date string (YYYY-MM-DD), never an
// instant. Rows are status-transitioned, never deleted.
type Assignment struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID     uuid.UUID                 `gorm:"column:organization_id;type:uuid;not null"`
	RouteID            uuid.UUID                 `gorm:"column:route_id;type:uuid;not null"`
	WarehouseID        uuid.UUID                 `gorm:"column:warehouse_id;type:uuid;not null"`
	ShiftDate          string                    `gorm:"column:shift_date;type:date;not null"`
	Status             enums.AssignmentStatus    `gorm:"column:status;type:assignment_status;not null;default:'unfilled'"`
	DriverID           *uuid.UUID                `gorm:"column:driver_id;type:uuid"`
	ConfirmedAt        *time.Time                `gorm:"column:confirmed_at"`
	ArrivedAt          *time.Time                `gorm:"column:arrived_at"`
	CompletedAt        *time.Time                `gorm:"column:completed_at"`
	CancelledAt        *time.Time                `gorm:"column:cancelled_at"`
	CancellationReason *enums.CancellationReason `gorm:"column:cancellation_reason;type:text"`
	ParcelsDelivered   *int                      `gorm:"column:parcels_delivered"`
	Route              *Route                    `gorm:"foreignKey:RouteID"`
	Windows            []BidWindow               `gorm:"foreignKey:AssignmentID"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
