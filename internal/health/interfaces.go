package health

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
)

// Repository is the persistence surface for metrics and health state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListTerminalAssignments(ctx context.Context, driverID uuid.UUID) ([]models.Assignment, error)
	ListActiveDriverIDs(ctx context.Context) ([]uuid.UUID, error)
	FindDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	UpdateDriverWeeklyCap(ctx context.Context, driverID uuid.UUID, cap int) error

	FindMetrics(ctx context.Context, driverID uuid.UUID) (*models.DriverMetrics, error)
	UpsertMetrics(ctx context.Context, metrics *models.DriverMetrics) error

	FindHealthState(ctx context.Context, driverID uuid.UUID) (*models.DriverHealthState, error)
	UpsertHealthState(ctx context.Context, state *models.DriverHealthState) error
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

// ReinstateInput is the explicit manager action that releases the
// hard-stop latch.
type ReinstateInput struct {
	DriverID  uuid.UUID
	ManagerID uuid.UUID
}

// SweepResult summarizes one daily recompute pass.
type SweepResult struct {
	Recomputed int
	Flagged    int
	HardStops  int
}

// Service defines driver health operations. RecomputeDriver participates in
// the caller's transaction so a shift completion and its metrics refresh
// commit together.
type Service interface {
	RecomputeDriver(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error
	RecomputeAll(ctx context.Context, now time.Time) (SweepResult, error)
	Reinstate(ctx context.Context, input ReinstateInput) error
}
