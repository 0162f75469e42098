package noshow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/internal/bidding"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
)

// Repository is the persistence surface for the no-show sweep.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// ListNoShowCandidates returns scheduled assignments on the given
	// business date with an assigned driver and no recorded arrival.
	ListNoShowCandidates(ctx context.Context, shiftDate string, limit int) ([]models.Assignment, error)
	// FindCandidateForUpdate re-reads a candidate under a row lock,
	// re-asserting that it is still scheduled with no arrival. A second
	// sweep run sees gorm.ErrRecordNotFound here and skips the row.
	FindCandidateForUpdate(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	CreateAssignment(ctx context.Context, assignment *models.Assignment) error
}

// WindowOpener opens the backfill window inside the sweep's transaction.
type WindowOpener interface {
	OpenWindowInTx(ctx context.Context, tx *gorm.DB, input bidding.OpenWindowInput) (*models.BidWindow, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auditRecorder interface {
	Record(tx *gorm.DB, entry audit.Entry) error
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Scanned   int
	NoShows   int
	Backfills int
}

// Service runs the daily no-show detection.
type Service interface {
	Sweep(ctx context.Context, now time.Time) (SweepResult, error)
}
