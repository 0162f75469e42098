// Package noshow detects drivers who never arrived for their shift,
// vacates the assignment, and opens an emergency backfill window. The
// sweep is idempotent: the row lock re-asserts the assignment is still a
// candidate and the outbox dedupes the notification per assignment, so a
// second run for the same date is a no-op.
package noshow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/internal/bidding"
	"github.com/orro3790/shiftbid-backend/pkg/bizclock"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
	"github.com/orro3790/shiftbid-backend/pkg/outbox/payloads"
)

const sweepBatchSize = 200

type service struct {
	repo    Repository
	tx      txRunner
	windows WindowOpener
	outbox  outboxPublisher
	auditor auditRecorder
	clock   *bizclock.Clock
	policy  config.PolicyConfig
	logg    *logger.Logger
}

// NewService builds the no-show sweep with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	windows WindowOpener,
	outboxSvc outboxPublisher,
	auditor auditRecorder,
	clock *bizclock.Clock,
	policy config.PolicyConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("noshow repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if windows == nil {
		return nil, fmt.Errorf("window opener required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if clock == nil {
		return nil, fmt.Errorf("business clock required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		windows: windows,
		outbox:  outboxSvc,
		auditor: auditor,
		clock:   clock,
		policy:  policy,
		logg:    logg,
	}, nil
}

func (s *service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	today := s.clock.Today(now)
	candidates, err := s.repo.ListNoShowCandidates(ctx, today, sweepBatchSize)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list no-show candidates")
	}

	var errs []error
	for _, candidate := range candidates {
		result.Scanned++

		if candidate.Route == nil {
			continue
		}
		shiftStart, err := s.clock.InstantAt(candidate.ShiftDate, candidate.Route.StartHour, candidate.Route.StartMinute, 0)
		if err != nil {
			continue
		}
		deadline := shiftStart.Add(s.policy.ArrivalGrace)
		if deadline.After(now) {
			// The arrival window is still open for this shift.
			continue
		}

		assignmentID := candidate.ID
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			assignment, err := repo.FindCandidateForUpdate(ctx, assignmentID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// Arrived, cancelled, or already swept since listing.
					return nil
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock assignment")
			}
			assignment.Route = candidate.Route

			affected, err := repo.MarkNoShow(ctx, assignment.ID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark no-show")
			}
			if affected == 0 {
				return nil
			}

			driverID := *assignment.DriverID
			entry := audit.Entry{
				OrganizationID: assignment.OrganizationID,
				EntityType:     enums.AggregateAssignment,
				EntityID:       assignment.ID,
				Action:         enums.AuditNoShowCancelled,
				Actor:          audit.SystemActor(),
				Context: map[string]any{
					"driver_id": driverID.String(),
					"deadline":  deadline,
				},
			}
			if err := s.auditor.Record(tx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record no-show audit")
			}

			// The cancelled row is retained for audit; a fresh unfilled
			// assignment carries the same shift forward for backfill.
			replacement := &models.Assignment{
				OrganizationID: assignment.OrganizationID,
				RouteID:        assignment.RouteID,
				WarehouseID:    assignment.WarehouseID,
				ShiftDate:      assignment.ShiftDate,
				Status:         enums.AssignmentStatusUnfilled,
			}
			if err := repo.CreateAssignment(ctx, replacement); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create backfill assignment")
			}

			window, err := s.windows.OpenWindowInTx(ctx, tx, bidding.OpenWindowInput{
				AssignmentID: replacement.ID,
				Mode:         enums.BidWindowModeEmergency,
				Actor:        audit.SystemActor(),
			})
			if err != nil {
				return err
			}

			event := outbox.DomainEvent{
				EventType:     enums.EventAssignmentNoShow,
				AggregateType: enums.AggregateAssignment,
				AggregateID:   assignment.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{OrganizationID: &assignment.OrganizationID, Role: enums.ActorRoleSystem},
				Data: payloads.NoShowEvent{
					AssignmentID: assignment.ID,
					DriverID:     driverID,
					RouteID:      assignment.RouteID,
					ShiftDate:    assignment.ShiftDate,
					Deadline:     deadline,
					NewWindowID:  &window.ID,
				},
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit no-show event")
			}

			result.NoShows++
			result.Backfills++
			return nil
		})
		if err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "assignment_id", assignmentID.String())
				s.logg.Error(logCtx, "no-show sweep failed for assignment", err)
			}
			errs = append(errs, fmt.Errorf("assignment %s: %w", assignmentID, err))
		}
	}

	return result, multierr.Combine(errs...)
}
