package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
	"github.com/orro3790/shiftbid-backend/pkg/pagination"
)

// Repository is the persistence surface for assignment lifecycle writes.
// All mutations are guarded conditional updates: the WHERE clause re-asserts
// the precondition and implementations report rows affected so a lost race
// surfaces as zero instead of a silent overwrite.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	ListForDriver(ctx context.Context, driverID uuid.UUID, params pagination.Params) ([]models.Assignment, *pagination.Cursor, error)
	ListForDate(ctx context.Context, orgID uuid.UUID, shiftDate string) ([]models.Assignment, error)

	MarkConfirmed(ctx context.Context, id, driverID uuid.UUID, at time.Time) (int64, error)
	MarkArrived(ctx context.Context, id, driverID uuid.UUID, at time.Time) (int64, error)
	MarkCompleted(ctx context.Context, id, driverID uuid.UUID, at time.Time, parcels int) (int64, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, reason enums.CancellationReason) (int64, error)
	// UpdateParcelCount re-asserts the correction window in the WHERE clause
	// so a concurrent expiry and an edit cannot both succeed.
	UpdateParcelCount(ctx context.Context, id uuid.UUID, parcels int, completedAfter time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auditRecorder interface {
	Record(tx *gorm.DB, entry audit.Entry) error
}

// MetricsRecomputer refreshes a driver's rolling aggregates inside the
// caller's transaction after a completion or cancellation.
type MetricsRecomputer interface {
	RecomputeDriver(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error
}

// CompleteInput finishes a shift with its delivered-parcel count.
type CompleteInput struct {
	AssignmentID     uuid.UUID
	DriverID         uuid.UUID
	ParcelsDelivered int
}

// CancelInput removes a driver from a shift before completion.
type CancelInput struct {
	AssignmentID uuid.UUID
	Actor        audit.Actor
	Reason       enums.CancellationReason
}

// EditParcelsInput corrects a delivered-parcel count shortly after
// completion.
type EditParcelsInput struct {
	AssignmentID     uuid.UUID
	Actor            audit.Actor
	ParcelsDelivered int
}

// Service defines assignment lifecycle operations.
type Service interface {
	Confirm(ctx context.Context, assignmentID, driverID uuid.UUID) error
	Arrive(ctx context.Context, assignmentID, driverID uuid.UUID) error
	Complete(ctx context.Context, input CompleteInput) error
	Cancel(ctx context.Context, input CancelInput) error
	EditParcelCount(ctx context.Context, input EditParcelsInput) error
}
