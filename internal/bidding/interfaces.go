package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/internal/eligibility"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
)

// Repository is the persistence surface of the bidding engine. Writes that
// participate in a resolution must go through a WithTx-bound instance.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindWindow(ctx context.Context, id uuid.UUID) (*models.BidWindow, error)
	// FindOpenWindowForUpdate re-reads the window under a row lock with a
	// status guard. Concurrent resolution attempts serialize here; all but
	// the first see gorm.ErrRecordNotFound.
	FindOpenWindowForUpdate(ctx context.Context, id uuid.UUID) (*models.BidWindow, error)
	FindOpenWindowByAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.BidWindow, error)
	ListExpiredOpenWindows(ctx context.Context, cutoff time.Time, limit int) ([]models.BidWindow, error)
	ListOpenWindows(ctx context.Context, orgID uuid.UUID) ([]models.BidWindow, error)

	CreateWindow(ctx context.Context, window *models.BidWindow) error
	UpdateWindowResolved(ctx context.Context, id uuid.UUID, winnerDriverID uuid.UUID, resolvedAt time.Time) error
	UpdateWindowClosed(ctx context.Context, id uuid.UUID) error

	CreateBid(ctx context.Context, bid *models.Bid) error
	FindPendingBids(ctx context.Context, windowID uuid.UUID) ([]models.Bid, error)
	UpdateBidOutcome(ctx context.Context, bidID uuid.UUID, status enums.BidStatus, score float64) error

	// AssignDriver flips an unfilled assignment to scheduled for the winner.
	// The status guard makes the write a no-op when another transaction got
	// there first; implementations report that as zero rows affected.
	AssignDriver(ctx context.Context, assignmentID, driverID uuid.UUID) (int64, error)
	MarkAssignmentUnfilled(ctx context.Context, assignmentID uuid.UUID) error

	FindDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	FindMetricsForDrivers(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.DriverMetrics, error)
}

// EligibilityChecker gates pool membership before a bid is accepted.
type EligibilityChecker interface {
	Check(ctx context.Context, driverID uuid.UUID, shiftDate string) (eligibility.Decision, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auditRecorder interface {
	Record(tx *gorm.DB, entry audit.Entry) error
}

// OpenWindowInput starts bidding for one unfilled assignment.
type OpenWindowInput struct {
	AssignmentID uuid.UUID
	Mode         enums.BidWindowMode
	Actor        audit.Actor
}

// SubmitBidInput is one driver's entry into an open window.
type SubmitBidInput struct {
	WindowID uuid.UUID
	DriverID uuid.UUID
}

// ManagerAssignInput bypasses scoring for a direct assignment. Force
// overrides soft eligibility rejections (flag, weekly cap, date conflict)
// but never the hard-stop latch; the audit entry records the override.
type ManagerAssignInput struct {
	AssignmentID uuid.UUID
	DriverID     uuid.UUID
	ManagerID    uuid.UUID
	Force        bool
}

// Service defines the bidding operations.
type Service interface {
	OpenWindow(ctx context.Context, input OpenWindowInput) (*models.BidWindow, error)
	// OpenWindowInTx opens a window inside the caller's transaction so a
	// no-show cancellation and its backfill window commit together.
	OpenWindowInTx(ctx context.Context, tx *gorm.DB, input OpenWindowInput) (*models.BidWindow, error)
	SubmitBid(ctx context.Context, input SubmitBidInput) (*models.Bid, error)
	Resolve(ctx context.Context, windowID uuid.UUID, actor audit.Actor) error
	// SweepExpired applies the close policy to every open window whose
	// deadline has passed: resolve with pending bids, close unfilled once
	// shift start is gone, otherwise leave open awaiting a first bid.
	SweepExpired(ctx context.Context, now time.Time) (SweepResult, error)
	ManagerAssign(ctx context.Context, input ManagerAssignInput) error
}

// SweepResult summarizes one closer pass.
type SweepResult struct {
	Resolved int
	Closed   int
	Deferred int
}
