// Package eligibility decides bid-pool membership for a (driver, shift
// date) pair. Checks run in a fixed order and short-circuit on the first
// failure; every rejection carries a specific reason code.
package eligibility

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/pkg/bizclock"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
)

// Repository is the read surface the gate needs.
type Repository interface {
	FindDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	FindHealthState(ctx context.Context, driverID uuid.UUID) (*models.DriverHealthState, error)
	// CountAssignmentsInRange counts scheduled/active/completed assignments
	// for the driver over [fromDate, toDate).
	CountAssignmentsInRange(ctx context.Context, driverID uuid.UUID, fromDate, toDate string) (int64, error)
	// HasAssignmentOnDate reports whether the driver already holds a
	// non-cancelled assignment for the calendar date.
	HasAssignmentOnDate(ctx context.Context, driverID uuid.UUID, date string) (bool, error)
}

// Decision is the gate's outcome. Reason is set only when Eligible is false.
type Decision struct {
	Eligible bool
	Reason   enums.EligibilityReason
}

// Gate evaluates pool membership.
type Gate struct {
	repo  Repository
	clock *bizclock.Clock
}

// NewGate wires the gate's dependencies.
func NewGate(repo Repository, clock *bizclock.Clock) (*Gate, error) {
	if repo == nil {
		return nil, fmt.Errorf("eligibility repository required")
	}
	if clock == nil {
		return nil, fmt.Errorf("business clock required")
	}
	return &Gate{repo: repo, clock: clock}, nil
}

// Check evaluates the ordered rules for one driver and shift date.
func (g *Gate) Check(ctx context.Context, driverID uuid.UUID, shiftDate string) (Decision, error) {
	driver, err := g.repo.FindDriver(ctx, driverID)
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}

	health, err := g.repo.FindHealthState(ctx, driverID)
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver health state")
	}

	if health.Flagged {
		return Decision{Reason: enums.EligibilityReasonDriverFlagged}, nil
	}
	if health.Eligibility != enums.HealthEligible {
		return Decision{Reason: enums.EligibilityReasonPoolIneligible}, nil
	}

	weekStart, weekEnd, err := g.clock.WeekBounds(shiftDate)
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shift date")
	}
	count, err := g.repo.CountAssignmentsInRange(ctx, driverID, weekStart, weekEnd)
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count weekly assignments")
	}
	if count >= int64(driver.WeeklyCap) {
		return Decision{Reason: enums.EligibilityReasonWeeklyCapReached}, nil
	}

	conflict, err := g.repo.HasAssignmentOnDate(ctx, driverID, shiftDate)
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check date conflict")
	}
	if conflict {
		return Decision{Reason: enums.EligibilityReasonDateConflict}, nil
	}

	return Decision{Eligible: true}, nil
}

// Err converts an ineligible decision into the typed error surfaced to
// callers. Eligible decisions return nil.
func (d Decision) Err() error {
	if d.Eligible {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeEligibility, "driver not eligible for this shift").
		WithDetails(map[string]any{"reason": d.Reason.String()})
}
