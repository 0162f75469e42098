package eligibility

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/pkg/bizclock"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

type stubGateRepo struct {
	driver      *models.Driver
	health      *models.DriverHealthState
	weekCount   int64
	hasConflict bool

	countedFrom string
	countedTo   string
}

func (s *stubGateRepo) FindDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	return s.driver, nil
}

func (s *stubGateRepo) FindHealthState(ctx context.Context, driverID uuid.UUID) (*models.DriverHealthState, error) {
	return s.health, nil
}

func (s *stubGateRepo) CountAssignmentsInRange(ctx context.Context, driverID uuid.UUID, fromDate, toDate string) (int64, error) {
	s.countedFrom = fromDate
	s.countedTo = toDate
	return s.weekCount, nil
}

func (s *stubGateRepo) HasAssignmentOnDate(ctx context.Context, driverID uuid.UUID, date string) (bool, error) {
	return s.hasConflict, nil
}

func newGateFixture(t *testing.T) (*Gate, *stubGateRepo) {
	t.Helper()
	repo := &stubGateRepo{
		driver: &models.Driver{ID: uuid.New(), WeeklyCap: 5},
		health: &models.DriverHealthState{Eligibility: enums.HealthEligible},
	}
	clock, err := bizclock.New("America/New_York", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gate, err := NewGate(repo, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return gate, repo
}

func TestCheckEligible(t *testing.T) {
	gate, _ := newGateFixture(t)
	decision, err := gate.Check(context.Background(), uuid.New(), "2026-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Eligible {
		t.Fatalf("expected eligible, got reason %s", decision.Reason)
	}
	if decision.Err() != nil {
		t.Fatal("eligible decision must not produce an error")
	}
}

func TestCheckFlaggedShortCircuits(t *testing.T) {
	gate, repo := newGateFixture(t)
	repo.health.Flagged = true
	repo.health.Eligibility = enums.HealthHardStopped // later rules must not run
	repo.weekCount = 99

	decision, err := gate.Check(context.Background(), uuid.New(), "2026-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Reason != enums.EligibilityReasonDriverFlagged {
		t.Fatalf("expected driver_flagged, got %s", decision.Reason)
	}
}

func TestCheckHardStoppedPool(t *testing.T) {
	gate, repo := newGateFixture(t)
	repo.health.Eligibility = enums.HealthHardStopped

	decision, err := gate.Check(context.Background(), uuid.New(), "2026-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Reason != enums.EligibilityReasonPoolIneligible {
		t.Fatalf("expected pool_ineligible, got %s", decision.Reason)
	}
}

func TestCheckWeeklyCap(t *testing.T) {
	gate, repo := newGateFixture(t)
	repo.weekCount = 5

	decision, err := gate.Check(context.Background(), uuid.New(), "2026-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Reason != enums.EligibilityReasonWeeklyCapReached {
		t.Fatalf("expected weekly_cap_reached, got %s", decision.Reason)
	}
	// 2026-06-10 is a Wednesday; the Sunday-anchored week is [06-07, 06-14).
	if repo.countedFrom != "2026-06-07" || repo.countedTo != "2026-06-14" {
		t.Fatalf("unexpected week bounds %s..%s", repo.countedFrom, repo.countedTo)
	}
}

func TestCheckDateConflict(t *testing.T) {
	gate, repo := newGateFixture(t)
	repo.hasConflict = true

	decision, err := gate.Check(context.Background(), uuid.New(), "2026-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Reason != enums.EligibilityReasonDateConflict {
		t.Fatalf("expected date_conflict, got %s", decision.Reason)
	}
	if decision.Err() == nil {
		t.Fatal("ineligible decision must produce an error")
	}
}
