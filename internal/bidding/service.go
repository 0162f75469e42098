// Package bidding runs the contested-shift lifecycle: window opening,
// bid intake, and the atomic resolution transaction that picks exactly
// one winner per window no matter how many workers race it.
package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/internal/scoring"
	"github.com/orro3790/shiftbid-backend/pkg/bizclock"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	dbpkg "github.com/orro3790/shiftbid-backend/pkg/db"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
	"github.com/orro3790/shiftbid-backend/pkg/outbox/payloads"
)

const sweepBatchSize = 100

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	auditor auditRecorder
	gate    EligibilityChecker
	scorer  *scoring.Engine
	clock   *bizclock.Clock
	policy  config.PolicyConfig
	logg    *logger.Logger
	nowFn   func() time.Time
}

// NewService builds the bidding service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	auditor auditRecorder,
	gate EligibilityChecker,
	scorer *scoring.Engine,
	clock *bizclock.Clock,
	policy config.PolicyConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bidding repository required")
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
	if gate == nil {
		return nil, fmt.Errorf("eligibility checker required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scoring engine required")
	}
	if clock == nil {
		return nil, fmt.Errorf("business clock required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		auditor: auditor,
		gate:    gate,
		scorer:  scorer,
		clock:   clock,
		policy:  policy,
		logg:    logg,
		nowFn:   time.Now,
	}, nil
}

func (s *service) now() time.Time {
	return s.nowFn()
}

// shiftStartAt converts the assignment's calendar date plus the route's
// wall-clock start into an instant in the business timezone.
func (s *service) shiftStartAt(assignment *models.Assignment) (time.Time, error) {
	if assignment.Route == nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeInternal, "assignment route not loaded")
	}
	return s.clock.InstantAt(assignment.ShiftDate, assignment.Route.StartHour, assignment.Route.StartMinute, 0)
}

func (s *service) OpenWindow(ctx context.Context, input OpenWindowInput) (*models.BidWindow, error) {
	var created *models.BidWindow
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		window, err := s.OpenWindowInTx(ctx, tx, input)
		if err != nil {
			return err
		}
		created = window
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) OpenWindowInTx(ctx context.Context, tx *gorm.DB, input OpenWindowInput) (*models.BidWindow, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid bid window mode")
	}
	if !input.Actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	now := s.now()
	repo := s.repo.WithTx(tx)

	assignment, err := repo.FindAssignment(ctx, input.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment.Status != enums.AssignmentStatusUnfilled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only unfilled assignments accept bid windows")
	}

	shiftStart, err := s.shiftStartAt(assignment)
	if err != nil {
		return nil, err
	}
	started := !shiftStart.After(now)
	if started && input.Mode != enums.BidWindowModeEmergency {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shift start already passed")
	}

	window := &models.BidWindow{
		OrganizationID: assignment.OrganizationID,
		AssignmentID:   assignment.ID,
		Mode:           input.Mode,
		Status:         enums.BidWindowStatusOpen,
		OpenedAt:       now,
	}
	switch {
	case input.Mode == enums.BidWindowModeEmergency:
		bonus := decimal.NewFromFloat(s.policy.EmergencyBonusPercent)
		window.BonusPercent = &bonus
		// Emergency windows take the first bid. For a shift still ahead the
		// deadline is its start; a backfill for an in-progress shift has no
		// deadline at all.
		if !started {
			window.ClosesAt = &shiftStart
		}
	default:
		closesAt := s.windowDeadline(now, shiftStart)
		window.ClosesAt = &closesAt
	}

	if err := repo.CreateWindow(ctx, window); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_bid_windows_open_assignment") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "assignment already has an open bid window")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid window")
	}

	entry := audit.Entry{
		OrganizationID: assignment.OrganizationID,
		EntityType:     enums.AggregateBidWindow,
		EntityID:       window.ID,
		Action:         enums.AuditWindowOpened,
		Actor:          input.Actor,
		After:          window,
	}
	if err := s.auditor.Record(tx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record window audit")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventWindowOpened,
		AggregateType: enums.AggregateBidWindow,
		AggregateID:   window.ID,
		Version:       1,
		Actor:         actorRef(input.Actor, assignment.OrganizationID),
		Data: payloads.WindowOpenedEvent{
			BidWindowID:  window.ID,
			AssignmentID: assignment.ID,
			RouteID:      assignment.RouteID,
			ShiftDate:    assignment.ShiftDate,
			Mode:         window.Mode.String(),
			ClosesAt:     window.ClosesAt,
			BonusPercent: bonusString(window.BonusPercent),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit window opened")
	}

	return window, nil
}

// windowDeadline applies the duration policy: windows keep the default
// duration while the shift is comfortably far away, otherwise they run
// right up to shift start.
func (s *service) windowDeadline(now, shiftStart time.Time) time.Time {
	if shiftStart.Sub(now) > s.policy.WindowNearStartThreshold {
		deadline := now.Add(s.policy.WindowDefaultDuration)
		if deadline.Before(shiftStart) {
			return deadline
		}
	}
	return shiftStart
}

func (s *service) SubmitBid(ctx context.Context, input SubmitBidInput) (*models.Bid, error) {
	if input.WindowID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window id required")
	}
	if input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "driver identity missing")
	}

	now := s.now()
	var created *models.Bid
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		window, err := repo.FindOpenWindowForUpdate(ctx, input.WindowID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "bidding is closed for this window")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock bid window")
		}

		assignment, err := repo.FindAssignment(ctx, window.AssignmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		shiftStart, err := s.shiftStartAt(assignment)
		if err != nil {
			return err
		}
		// Emergency backfill windows keep taking bids after shift start.
		if !shiftStart.After(now) && window.Mode != enums.BidWindowModeEmergency {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shift start already passed")
		}

		decision, err := s.gate.Check(ctx, input.DriverID, assignment.ShiftDate)
		if err != nil {
			return err
		}
		if !decision.Eligible {
			return decision.Err()
		}

		bid := &models.Bid{
			BidWindowID: window.ID,
			DriverID:    input.DriverID,
			Status:      enums.BidStatusPending,
			SubmittedAt: now,
		}
		if err := repo.CreateBid(ctx, bid); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_bids_window_driver") {
				return pkgerrors.New(pkgerrors.CodeConflict, "driver already bid on this window")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
		}

		entry := audit.Entry{
			OrganizationID: assignment.OrganizationID,
			EntityType:     enums.AggregateBid,
			EntityID:       bid.ID,
			Action:         enums.AuditBidSubmitted,
			Actor:          audit.Actor{Role: enums.ActorRoleDriver, ID: &input.DriverID},
			After:          bid,
		}
		if err := s.auditor.Record(tx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record bid audit")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventBidSubmitted,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID,
			Version:       1,
			Actor:         actorRef(audit.Actor{Role: enums.ActorRoleDriver, ID: &input.DriverID}, assignment.OrganizationID),
			Data: payloads.BidSubmittedEvent{
				BidID:       bid.ID,
				BidWindowID: window.ID,
				DriverID:    input.DriverID,
				SubmittedAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit bid submitted")
		}

		// Emergency windows assign first come first served; a window whose
		// deadline already lapsed with no bids resolves on this first bid.
		deadlineLapsed := window.ClosesAt != nil && !window.ClosesAt.After(now)
		if window.Mode == enums.BidWindowModeEmergency || deadlineLapsed {
			if err := s.resolveLocked(ctx, tx, window, assignment, audit.SystemActor(), now); err != nil {
				return err
			}
		}

		created = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Resolve(ctx context.Context, windowID uuid.UUID, actor audit.Actor) error {
	if windowID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "window id required")
	}
	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		window, err := repo.FindOpenWindowForUpdate(ctx, windowID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "window already resolved or closed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock bid window")
		}
		assignment, err := repo.FindAssignment(ctx, window.AssignmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}

		bids, err := repo.FindPendingBids(ctx, window.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending bids")
		}
		if len(bids) == 0 {
			return s.closeUnfilledLocked(ctx, tx, window, assignment, actor, now)
		}
		return s.resolveLocked(ctx, tx, window, assignment, actor, now)
	})
}

// resolveLocked runs the resolution on a window already locked by the
// caller's transaction. It scores every pending bid, picks the winner
// deterministically, flips bids and the assignment, and records the full
// candidate breakdown for dispute transparency.
func (s *service) resolveLocked(ctx context.Context, tx *gorm.DB, window *models.BidWindow, assignment *models.Assignment, actor audit.Actor, now time.Time) error {
	repo := s.repo.WithTx(tx)

	bids, err := repo.FindPendingBids(ctx, window.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending bids")
	}
	if len(bids) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no pending bids to resolve")
	}

	var ranked []scoring.Candidate
	if window.Mode == enums.BidWindowModeEmergency {
		ranked = firstComeOrder(bids)
	} else {
		ranked, err = s.scoreBids(ctx, repo, assignment, bids)
		if err != nil {
			return err
		}
	}

	winner := ranked[0]
	bidByDriver := make(map[uuid.UUID]models.Bid, len(bids))
	for _, bid := range bids {
		bidByDriver[bid.DriverID] = bid
	}

	losers := make([]uuid.UUID, 0, len(ranked)-1)
	candidates := make([]payloads.CandidateScore, 0, len(ranked))
	for i, candidate := range ranked {
		bid := bidByDriver[candidate.DriverID]
		status := enums.BidStatusLost
		if i == 0 {
			status = enums.BidStatusWon
		} else {
			losers = append(losers, candidate.DriverID)
		}
		if err := repo.UpdateBidOutcome(ctx, bid.ID, status, candidate.Breakdown.Total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bid outcome")
		}
		candidates = append(candidates, payloads.CandidateScore{
			DriverID:    candidate.DriverID,
			Attendance:  candidate.Breakdown.Attendance,
			Familiarity: candidate.Breakdown.Familiarity,
			Completion:  candidate.Breakdown.Completion,
			Preference:  candidate.Breakdown.Preference,
			Total:       candidate.Breakdown.Total,
			SubmittedAt: candidate.SubmittedAt,
		})
	}

	if err := repo.UpdateWindowResolved(ctx, window.ID, winner.DriverID, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve window")
	}
	affected, err := repo.AssignDriver(ctx, assignment.ID, winner.DriverID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign winning driver")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment no longer accepts a winner")
	}

	entry := audit.Entry{
		OrganizationID: assignment.OrganizationID,
		EntityType:     enums.AggregateBidWindow,
		EntityID:       window.ID,
		Action:         enums.AuditWindowResolved,
		Actor:          actor,
		Context: map[string]any{
			"winner_driver_id": winner.DriverID.String(),
			"candidates":       candidates,
		},
	}
	if err := s.auditor.Record(tx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record resolution audit")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventWindowResolved,
		AggregateType: enums.AggregateBidWindow,
		AggregateID:   window.ID,
		Version:       1,
		Actor:         actorRef(actor, assignment.OrganizationID),
		Data: payloads.WindowResolvedEvent{
			BidWindowID:    window.ID,
			AssignmentID:   assignment.ID,
			ShiftDate:      assignment.ShiftDate,
			WinnerDriverID: winner.DriverID,
			LoserDriverIDs: losers,
			Candidates:     candidates,
			ResolvedAt:     now,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

// scoreBids loads metrics for every bidder and ranks them. Missing metric
// rows score zero on every component rather than failing the resolution.
func (s *service) scoreBids(ctx context.Context, repo Repository, assignment *models.Assignment, bids []models.Bid) ([]scoring.Candidate, error) {
	driverIDs := make([]uuid.UUID, 0, len(bids))
	for _, bid := range bids {
		driverIDs = append(driverIDs, bid.DriverID)
	}
	metricsByDriver, err := repo.FindMetricsForDrivers(ctx, driverIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver metrics")
	}

	routeKey := assignment.RouteID.String()
	candidates := make([]scoring.Candidate, 0, len(bids))
	for _, bid := range bids {
		metrics := metricsByDriver[bid.DriverID]
		preferred, err := s.routePreferred(ctx, repo, bid.DriverID, routeKey)
		if err != nil {
			return nil, err
		}
		breakdown := s.scorer.Score(scoring.Inputs{
			DriverID:         bid.DriverID,
			AttendanceRate:   metrics.AttendanceRate,
			CompletionRate:   metrics.CompletionRate,
			RouteCompletions: metrics.RouteCompletions[routeKey],
			RoutePreferred:   preferred,
		})
		candidates = append(candidates, scoring.Candidate{
			DriverID:    bid.DriverID,
			SubmittedAt: bid.SubmittedAt,
			Breakdown:   breakdown,
		})
	}
	return scoring.Rank(candidates), nil
}

func (s *service) routePreferred(ctx context.Context, repo Repository, driverID uuid.UUID, routeKey string) (bool, error) {
	driver, err := repo.FindDriver(ctx, driverID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}
	for i, route := range driver.PreferredRoutes {
		if i >= s.policy.PreferredRouteTopN {
			break
		}
		if route == routeKey {
			return true, nil
		}
	}
	return false, nil
}

// firstComeOrder ranks emergency bids by submission time alone, driver id
// breaking exact timestamp ties.
func firstComeOrder(bids []models.Bid) []scoring.Candidate {
	candidates := make([]scoring.Candidate, 0, len(bids))
	for _, bid := range bids {
		candidates = append(candidates, scoring.Candidate{
			DriverID:    bid.DriverID,
			SubmittedAt: bid.SubmittedAt,
			Breakdown:   scoring.Breakdown{},
		})
	}
	return scoring.Rank(candidates)
}

func (s *service) closeUnfilledLocked(ctx context.Context, tx *gorm.DB, window *models.BidWindow, assignment *models.Assignment, actor audit.Actor, now time.Time) error {
	repo := s.repo.WithTx(tx)

	if err := repo.UpdateWindowClosed(ctx, window.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close window")
	}
	if err := repo.MarkAssignmentUnfilled(ctx, assignment.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark assignment unfilled")
	}

	entry := audit.Entry{
		OrganizationID: assignment.OrganizationID,
		EntityType:     enums.AggregateBidWindow,
		EntityID:       window.ID,
		Action:         enums.AuditWindowClosed,
		Actor:          actor,
		Context:        map[string]any{"reason": "no_bids"},
	}
	if err := s.auditor.Record(tx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record close audit")
	}

	closedEvent := outbox.DomainEvent{
		EventType:     enums.EventWindowClosed,
		AggregateType: enums.AggregateBidWindow,
		AggregateID:   window.ID,
		Version:       1,
		Actor:         actorRef(actor, assignment.OrganizationID),
		Data: payloads.WindowClosedEvent{
			BidWindowID:  window.ID,
			AssignmentID: assignment.ID,
			ShiftDate:    assignment.ShiftDate,
			Reason:       "no_bids",
			ClosedAt:     now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, closedEvent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit window closed")
	}

	unfilledEvent := outbox.DomainEvent{
		EventType:     enums.EventAssignmentUnfilled,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   assignment.ID,
		Version:       1,
		Actor:         actorRef(actor, assignment.OrganizationID),
		Data: payloads.WindowClosedEvent{
			BidWindowID:  window.ID,
			AssignmentID: assignment.ID,
			ShiftDate:    assignment.ShiftDate,
			Reason:       "no_bids",
			ClosedAt:     now,
		},
	}
	return s.outbox.EmitIfNotExists(ctx, tx, unfilledEvent)
}

func (s *service) SweepExpired(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	windows, err := s.repo.ListExpiredOpenWindows(ctx, now, sweepBatchSize)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired windows")
	}

	var errs []error
	for _, candidate := range windows {
		windowID := candidate.ID
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			window, err := repo.FindOpenWindowForUpdate(ctx, windowID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// Another worker handled it between listing and locking.
					return nil
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock bid window")
			}
			assignment, err := repo.FindAssignment(ctx, window.AssignmentID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
			}

			bids, err := repo.FindPendingBids(ctx, window.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending bids")
			}
			if len(bids) > 0 {
				if err := s.resolveLocked(ctx, tx, window, assignment, audit.SystemActor(), now); err != nil {
					return err
				}
				result.Resolved++
				return nil
			}

			shiftStart, err := s.shiftStartAt(assignment)
			if err != nil {
				return err
			}
			if shiftStart.After(now) {
				// Zero bids but the shift is still ahead: defer the close so
				// the first arriving bid can take it.
				result.Deferred++
				return nil
			}
			if err := s.closeUnfilledLocked(ctx, tx, window, assignment, audit.SystemActor(), now); err != nil {
				return err
			}
			result.Closed++
			return nil
		})
		if err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "bid_window_id", windowID.String())
				s.logg.Error(logCtx, "window sweep failed", err)
			}
			errs = append(errs, fmt.Errorf("window %s: %w", windowID, err))
		}
	}

	return result, multierr.Combine(errs...)
}

func (s *service) ManagerAssign(ctx context.Context, input ManagerAssignInput) error {
	if input.AssignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.DriverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if input.ManagerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "manager identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := repo.FindAssignment(ctx, input.AssignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if assignment.Status != enums.AssignmentStatusUnfilled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment already has a driver")
		}

		decision, err := s.gate.Check(ctx, input.DriverID, assignment.ShiftDate)
		if err != nil {
			return err
		}
		if !decision.Eligible {
			// Force overrides soft rejections (flag, weekly cap, date
			// conflict) for emergency coverage. The hard-stop latch is
			// released only by reinstatement, never by an override.
			if !input.Force || decision.Reason == enums.EligibilityReasonPoolIneligible {
				return decision.Err()
			}
		}

		// A direct assignment supersedes any open window; its pending bids
		// all lose.
		var windowID *uuid.UUID
		window, err := repo.FindOpenWindowByAssignment(ctx, assignment.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open window")
		}
		if window != nil {
			locked, err := repo.FindOpenWindowForUpdate(ctx, window.ID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "window resolved concurrently")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock bid window")
			}
			bids, err := repo.FindPendingBids(ctx, locked.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending bids")
			}
			for _, bid := range bids {
				if err := repo.UpdateBidOutcome(ctx, bid.ID, enums.BidStatusLost, 0); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bid outcome")
				}
			}
			if err := repo.UpdateWindowClosed(ctx, locked.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close window")
			}
			windowID = &locked.ID
		}

		affected, err := repo.AssignDriver(ctx, assignment.ID, input.DriverID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment no longer accepts a driver")
		}

		actor := audit.Actor{Role: enums.ActorRoleManager, ID: &input.ManagerID}
		entry := audit.Entry{
			OrganizationID: assignment.OrganizationID,
			EntityType:     enums.AggregateAssignment,
			EntityID:       assignment.ID,
			Action:         enums.AuditManagerAssigned,
			Actor:          actor,
			Context: map[string]any{
				"driver_id": input.DriverID.String(),
				"forced":    input.Force,
			},
		}
		if err := s.auditor.Record(tx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record assignment audit")
		}

		eventWindowID := uuid.Nil
		if windowID != nil {
			eventWindowID = *windowID
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventAssignmentManual,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         actorRef(actor, assignment.OrganizationID),
			Data: payloads.ManualAssignmentEvent{
				BidWindowID:  eventWindowID,
				AssignmentID: assignment.ID,
				DriverID:     input.DriverID,
				ManagerID:    input.ManagerID,
				Forced:       input.Force,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
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

func bonusString(bonus *decimal.Decimal) *string {
	if bonus == nil {
		return nil
	}
	s := bonus.StringFixed(2)
	return &s
}
