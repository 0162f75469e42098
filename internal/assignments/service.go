// Package assignments owns the driver-shift lifecycle after a driver is
// bound: confirmation, arrival check-in, completion, cancellation, and the
// short-lived parcel-count correction window.
package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
	"github.com/orro3790/shiftbid-backend/pkg/outbox/payloads"
)

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	auditor auditRecorder
	metrics MetricsRecomputer
	policy  config.PolicyConfig
	nowFn   func() time.Time
}

// NewService builds the assignments service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	auditor auditRecorder,
	metrics MetricsRecomputer,
	policy config.PolicyConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics recomputer required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		auditor: auditor,
		metrics: metrics,
		policy:  policy,
		nowFn:   time.Now,
	}, nil
}

func (s *service) Confirm(ctx context.Context, assignmentID, driverID uuid.UUID) error {
	if assignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if driverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "driver identity missing")
	}

	now := s.nowFn()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := s.loadOwned(ctx, repo, assignmentID, driverID)
		if err != nil {
			return err
		}

		affected, err := repo.MarkConfirmed(ctx, assignmentID, driverID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm assignment")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment cannot be confirmed in current state")
		}

		entry := audit.Entry{
			OrganizationID: assignment.OrganizationID,
			EntityType:     enums.AggregateAssignment,
			EntityID:       assignment.ID,
			Action:         enums.AuditAssignmentConfirmed,
			Actor:          audit.Actor{Role: enums.ActorRoleDriver, ID: &driverID},
		}
		return s.auditor.Record(tx, entry)
	})
}

func (s *service) Arrive(ctx context.Context, assignmentID, driverID uuid.UUID) error {
	if assignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if driverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "driver identity missing")
	}

	now := s.nowFn()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := s.loadOwned(ctx, repo, assignmentID, driverID)
		if err != nil {
			return err
		}

		affected, err := repo.MarkArrived(ctx, assignmentID, driverID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record arrival")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "arrival only applies to scheduled assignments")
		}

		entry := audit.Entry{
			OrganizationID: assignment.OrganizationID,
			EntityType:     enums.AggregateAssignment,
			EntityID:       assignment.ID,
			Action:         enums.AuditAssignmentArrived,
			Actor:          audit.Actor{Role: enums.ActorRoleDriver, ID: &driverID},
		}
		return s.auditor.Record(tx, entry)
	})
}

func (s *service) Complete(ctx context.Context, input CompleteInput) error {
	if input.AssignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.DriverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "driver identity missing")
	}
	if input.ParcelsDelivered < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "parcel count cannot be negative")
	}

	now := s.nowFn()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := s.loadOwned(ctx, repo, input.AssignmentID, input.DriverID)
		if err != nil {
			return err
		}

		affected, err := repo.MarkCompleted(ctx, input.AssignmentID, input.DriverID, now, input.ParcelsDelivered)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete assignment")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only active assignments can be completed")
		}

		actor := audit.Actor{Role: enums.ActorRoleDriver, ID: &input.DriverID}
		entry := audit.Entry{
			OrganizationID: assignment.OrganizationID,
			EntityType:     enums.AggregateAssignment,
			EntityID:       assignment.ID,
			Action:         enums.AuditAssignmentCompleted,
			Actor:          actor,
			Context:        map[string]any{"parcels_delivered": input.ParcelsDelivered},
		}
		if err := s.auditor.Record(tx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record completion audit")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventShiftCompleted,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         actorRef(actor, assignment.OrganizationID),
			Data: payloads.ShiftCompletedEvent{
				AssignmentID:     assignment.ID,
				DriverID:         input.DriverID,
				RouteID:          assignment.RouteID,
				ShiftDate:        assignment.ShiftDate,
				ParcelsDelivered: input.ParcelsDelivered,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shift completed")
		}

		return s.metrics.RecomputeDriver(ctx, tx, input.DriverID)
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.AssignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if !input.Actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cancellation reason")
	}

	now := s.nowFn()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := repo.FindByID(ctx, input.AssignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if input.Actor.Role == enums.ActorRoleDriver {
			if input.Actor.ID == nil || assignment.DriverID == nil || *assignment.DriverID != *input.Actor.ID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "assignment does not belong to driver")
			}
		}

		affected, err := repo.MarkCancelled(ctx, input.AssignmentID, now, input.Reason)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel assignment")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment cannot be cancelled in current state")
		}

		entry := audit.Entry{
			OrganizationID: assignment.OrganizationID,
			EntityType:     enums.AggregateAssignment,
			EntityID:       assignment.ID,
			Action:         enums.AuditAssignmentCancelled,
			Actor:          input.Actor,
			Context:        map[string]any{"reason": input.Reason.String()},
		}
		if err := s.auditor.Record(tx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cancellation audit")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventShiftCancelled,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         actorRef(input.Actor, assignment.OrganizationID),
			Data: map[string]any{
				"assignmentId": assignment.ID.String(),
				"shiftDate":    assignment.ShiftDate,
				"reason":       input.Reason.String(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shift cancelled")
		}

		if assignment.DriverID != nil {
			return s.metrics.RecomputeDriver(ctx, tx, *assignment.DriverID)
		}
		return nil
	})
}

func (s *service) EditParcelCount(ctx context.Context, input EditParcelsInput) error {
	if input.AssignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if !input.Actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.ParcelsDelivered < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "parcel count cannot be negative")
	}

	now := s.nowFn()
	completedAfter := now.Add(-s.policy.ParcelEditWindow)
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := repo.FindByID(ctx, input.AssignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if input.Actor.Role == enums.ActorRoleDriver {
			if input.Actor.ID == nil || assignment.DriverID == nil || *assignment.DriverID != *input.Actor.ID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "assignment does not belong to driver")
			}
		}
		before := assignment.ParcelsDelivered

		affected, err := repo.UpdateParcelCount(ctx, input.AssignmentID, input.ParcelsDelivered, completedAfter)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update parcel count")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "parcel correction window has expired")
		}

		entry := audit.Entry{
			OrganizationID: assignment.OrganizationID,
			EntityType:     enums.AggregateAssignment,
			EntityID:       assignment.ID,
			Action:         enums.AuditParcelCountEdited,
			Actor:          input.Actor,
			Before:         map[string]any{"parcels_delivered": before},
			After:          map[string]any{"parcels_delivered": input.ParcelsDelivered},
		}
		if err := s.auditor.Record(tx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record parcel audit")
		}

		if assignment.DriverID != nil {
			return s.metrics.RecomputeDriver(ctx, tx, *assignment.DriverID)
		}
		return nil
	})
}

func (s *service) loadOwned(ctx context.Context, repo Repository, assignmentID, driverID uuid.UUID) (*models.Assignment, error) {
	assignment, err := repo.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment.DriverID == nil || *assignment.DriverID != driverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "assignment does not belong to driver")
	}
	return assignment, nil
}

func actorRef(actor audit.Actor, orgID uuid.UUID) *outbox.ActorRef {
	ref := &outbox.ActorRef{
		OrganizationID: &orgID,
		Role:           actor.Role,
	}
	if actor.ID != nil {
		ref.SubjectID = *actor.ID
	}
	return ref
}
