// Package health recomputes driver metrics from assignment history and
// derives the flagging state that feeds the eligibility gate. Metrics are
// always recalculated from scratch, never incrementally patched, so a
// missed update can never leave a permanently skewed rate.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/pkg/bizclock"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
	"github.com/orro3790/shiftbid-backend/pkg/outbox/payloads"
)

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	auditor auditRecorder
	clock   *bizclock.Clock
	policy  config.PolicyConfig
	logg    *logger.Logger
	nowFn   func() time.Time
}

// NewService builds the health service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	auditor auditRecorder,
	clock *bizclock.Clock,
	policy config.PolicyConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("health repository required")
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
	if clock == nil {
		return nil, fmt.Errorf("business clock required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		auditor: auditor,
		clock:   clock,
		policy:  policy,
		logg:    logg,
		nowFn:   time.Now,
	}, nil
}

func (s *service) RecomputeDriver(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error {
	_, err := s.recomputeLocked(ctx, tx, driverID, s.nowFn(), false)
	return err
}

type recomputeOutcome struct {
	newlyFlagged  bool
	newlyHardStop bool
	metrics       models.DriverMetrics
	state         models.DriverHealthState
}

// recomputeLocked rebuilds metrics and flagging state inside tx. The
// weekly flag (adjustWeekly) additionally moves the weekly cap and streak,
// which only the daily sweep is allowed to do.
func (s *service) recomputeLocked(ctx context.Context, tx *gorm.DB, driverID uuid.UUID, now time.Time, adjustWeekly bool) (recomputeOutcome, error) {
	var outcome recomputeOutcome
	repo := s.repo.WithTx(tx)

	driver, err := repo.FindDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return outcome, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
		}
		return outcome, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}

	history, err := repo.ListTerminalAssignments(ctx, driverID)
	if err != nil {
		return outcome, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment history")
	}

	metrics := buildMetrics(driverID, history, now)
	if err := repo.UpsertMetrics(ctx, &metrics); err != nil {
		return outcome, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write driver metrics")
	}

	prev, err := repo.FindHealthState(ctx, driverID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return outcome, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load health state")
		}
		prev = &models.DriverHealthState{DriverID: driverID, Eligibility: enums.HealthEligible}
	}

	state := *prev
	state.DriverID = driverID
	state.Score = 0.6*metrics.AttendanceRate + 0.4*metrics.CompletionRate
	state.StarTier = starTier(state.Score)

	threshold := s.policy.AttendanceFlagThreshold
	if metrics.TotalShifts < s.policy.NewDriverGraceShifts {
		threshold = s.policy.NewDriverFlagThreshold
	}
	shouldFlag := metrics.TotalShifts > 0 && metrics.AttendanceRate < threshold
	if shouldFlag && !prev.Flagged {
		state.Flagged = true
		flaggedAt := now
		state.FlaggedAt = &flaggedAt
		outcome.newlyFlagged = true
	}
	if !shouldFlag {
		state.Flagged = false
		state.FlaggedAt = nil
	}

	// The latch: a hard-stopped driver stays hard-stopped no matter what
	// the fresh numbers say. Only Reinstate writes eligible back.
	if prev.Eligibility != enums.HealthHardStopped {
		pastGrace := metrics.TotalShifts >= s.policy.NewDriverGraceShifts
		if pastGrace && metrics.AttendanceRate < s.policy.HardStopAttendanceFloor {
			state.Eligibility = enums.HealthHardStopped
			state.RequiresManagerIntervention = true
			outcome.newlyHardStop = true
		}
	}

	if adjustWeekly {
		if err := s.applyWeeklyAdjustments(ctx, repo, tx, driver, &metrics, &state, prev, now); err != nil {
			return outcome, err
		}
	}

	if err := repo.UpsertHealthState(ctx, &state); err != nil {
		return outcome, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write health state")
	}

	if outcome.newlyFlagged {
		if err := s.recordTransition(ctx, tx, driver, &metrics, &state, enums.AuditDriverFlagged, enums.EventDriverFlagged); err != nil {
			return outcome, err
		}
	}
	if outcome.newlyHardStop {
		if err := s.recordTransition(ctx, tx, driver, &metrics, &state, enums.AuditDriverHardStopped, enums.EventDriverHardStopped); err != nil {
			return outcome, err
		}
	}

	outcome.metrics = metrics
	outcome.state = state
	return outcome, nil
}

// applyWeeklyAdjustments moves the weekly cap and streak once per business
// week, on the configured week-start day. Tying cap movement to the week
// boundary keeps repeated daily sweeps from compounding a single sustained
// flag into a runaway reduction.
func (s *service) applyWeeklyAdjustments(ctx context.Context, repo Repository, tx *gorm.DB, driver *models.Driver, metrics *models.DriverMetrics, state *models.DriverHealthState, prev *models.DriverHealthState, now time.Time) error {
	today := s.clock.Today(now)
	dow, err := s.clock.DayOfWeek(today)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve business date")
	}
	if dow != s.policy.WeekStartDay {
		return nil
	}

	if state.Flagged {
		state.StreakWeeks = 0
	} else {
		state.StreakWeeks = prev.StreakWeeks + 1
	}

	newCap := driver.WeeklyCap
	switch {
	case state.Flagged && state.FlaggedAt != nil &&
		now.Sub(*state.FlaggedAt) > time.Duration(s.policy.FlagGraceWeeks)*7*24*time.Hour:
		newCap--
	case metrics.TotalShifts >= s.policy.NewDriverGraceShifts &&
		metrics.AttendanceRate >= s.policy.RewardAttendance &&
		metrics.CompletionRate >= s.policy.RewardCompletion:
		newCap++
	}
	if newCap < s.policy.WeeklyCapMin {
		newCap = s.policy.WeeklyCapMin
	}
	if newCap > s.policy.WeeklyCapMax {
		newCap = s.policy.WeeklyCapMax
	}
	if newCap == driver.WeeklyCap {
		return nil
	}

	if err := repo.UpdateDriverWeeklyCap(ctx, driver.ID, newCap); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update weekly cap")
	}
	entry := audit.Entry{
		OrganizationID: driver.OrganizationID,
		EntityType:     enums.AggregateDriver,
		EntityID:       driver.ID,
		Action:         enums.AuditWeeklyCapChanged,
		Actor:          audit.SystemActor(),
		Before:         map[string]any{"weekly_cap": driver.WeeklyCap},
		After:          map[string]any{"weekly_cap": newCap},
	}
	if err := s.auditor.Record(tx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cap audit")
	}
	driver.WeeklyCap = newCap
	return nil
}

func (s *service) recordTransition(ctx context.Context, tx *gorm.DB, driver *models.Driver, metrics *models.DriverMetrics, state *models.DriverHealthState, action enums.AuditAction, eventType enums.OutboxEventType) error {
	entry := audit.Entry{
		OrganizationID: driver.OrganizationID,
		EntityType:     enums.AggregateDriver,
		EntityID:       driver.ID,
		Action:         action,
		Actor:          audit.SystemActor(),
		After:          state,
	}
	if err := s.auditor.Record(tx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record health audit")
	}

	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDriver,
		AggregateID:   driver.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{OrganizationID: &driver.OrganizationID, Role: enums.ActorRoleSystem},
		Data: payloads.DriverHealthEvent{
			DriverID:       driver.ID,
			AttendanceRate: metrics.AttendanceRate,
			CompletionRate: metrics.CompletionRate,
			WeeklyCap:      driver.WeeklyCap,
			Eligibility:    state.Eligibility.String(),
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) RecomputeAll(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	driverIDs, err := s.repo.ListActiveDriverIDs(ctx)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active drivers")
	}

	for _, driverID := range driverIDs {
		id := driverID
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			outcome, err := s.recomputeLocked(ctx, tx, id, now, true)
			if err != nil {
				return err
			}
			result.Recomputed++
			if outcome.newlyFlagged {
				result.Flagged++
			}
			if outcome.newlyHardStop {
				result.HardStops++
			}
			return nil
		})
		if err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithDriverID(ctx, id.String())
				s.logg.Error(logCtx, "driver recompute failed", err)
			}
			continue
		}
	}

	return result, nil
}

func (s *service) Reinstate(ctx context.Context, input ReinstateInput) error {
	if input.DriverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if input.ManagerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "manager identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		driver, err := repo.FindDriver(ctx, input.DriverID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
		}

		state, err := repo.FindHealthState(ctx, input.DriverID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "driver has no health state to reinstate")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load health state")
		}
		if state.Eligibility == enums.HealthEligible && !state.Flagged {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "driver is already eligible")
		}
		before := *state

		state.Eligibility = enums.HealthEligible
		state.RequiresManagerIntervention = false
		state.Flagged = false
		state.FlaggedAt = nil
		if err := repo.UpsertHealthState(ctx, state); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write health state")
		}

		actor := audit.Actor{Role: enums.ActorRoleManager, ID: &input.ManagerID}
		entry := audit.Entry{
			OrganizationID: driver.OrganizationID,
			EntityType:     enums.AggregateDriver,
			EntityID:       driver.ID,
			Action:         enums.AuditDriverReinstated,
			Actor:          actor,
			Before:         before,
			After:          state,
		}
		if err := s.auditor.Record(tx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reinstatement audit")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDriverReinstated,
			AggregateType: enums.AggregateDriver,
			AggregateID:   driver.ID,
			Version:       1,
			Actor: &outbox.ActorRef{
				SubjectID:      input.ManagerID,
				OrganizationID: &driver.OrganizationID,
				Role:           enums.ActorRoleManager,
			},
			Data: payloads.DriverHealthEvent{
				DriverID:    driver.ID,
				WeeklyCap:   driver.WeeklyCap,
				Eligibility: state.Eligibility.String(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

// buildMetrics folds a driver's terminal assignment history into the
// rolling aggregate row.
func buildMetrics(driverID uuid.UUID, history []models.Assignment, now time.Time) models.DriverMetrics {
	metrics := models.DriverMetrics{
		DriverID:         driverID,
		RouteCompletions: make(map[string]int),
		RecomputedAt:     now,
	}

	parcelTotal := 0
	parcelShifts := 0
	for _, assignment := range history {
		metrics.TotalShifts++
		switch assignment.Status {
		case enums.AssignmentStatusCompleted:
			metrics.CompletedShifts++
			metrics.RouteCompletions[assignment.RouteID.String()]++
			if assignment.ParcelsDelivered != nil {
				parcelTotal += *assignment.ParcelsDelivered
				parcelShifts++
			}
		case enums.AssignmentStatusCancelled:
			metrics.CancelledShifts++
			if assignment.CancellationReason != nil && *assignment.CancellationReason == enums.CancellationReasonNoShow {
				metrics.NoShows++
			}
		}
	}

	if metrics.TotalShifts > 0 {
		metrics.AttendanceRate = float64(metrics.TotalShifts-metrics.NoShows) / float64(metrics.TotalShifts)
		metrics.CompletionRate = float64(metrics.CompletedShifts) / float64(metrics.TotalShifts)
	}
	if parcelShifts > 0 {
		metrics.AvgParcels = float64(parcelTotal) / float64(parcelShifts)
	}
	return metrics
}

func starTier(score float64) int {
	switch {
	case score >= 0.9:
		return 5
	case score >= 0.8:
		return 4
	case score >= 0.7:
		return 3
	case score >= 0.6:
		return 2
	case score >= 0.5:
		return 1
	default:
		return 0
	}
}
