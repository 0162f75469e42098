package noshow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/internal/bidding"
	"github.com/orro3790/shiftbid-backend/pkg/bizclock"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
)

type stubNoShowRepo struct {
	rows map[uuid.UUID]*models.Assignment
}

func newStubNoShowRepo() *stubNoShowRepo {
	return &stubNoShowRepo{rows: make(map[uuid.UUID]*models.Assignment)}
}

func (s *stubNoShowRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubNoShowRepo) ListNoShowCandidates(ctx context.Context, shiftDate string, limit int) ([]models.Assignment, error) {
	var candidates []models.Assignment
	for _, row := range s.rows {
		if row.ShiftDate == shiftDate && row.Status == enums.AssignmentStatusScheduled &&
			row.DriverID != nil && row.ArrivedAt == nil {
			candidates = append(candidates, *row)
		}
	}
	return candidates, nil
}

func (s *stubNoShowRepo) FindCandidateForUpdate(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	row, ok := s.rows[id]
	if !ok || row.Status != enums.AssignmentStatusScheduled || row.ArrivedAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (s *stubNoShowRepo) MarkNoShow(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	row := s.rows[id]
	if row == nil || row.Status != enums.AssignmentStatusScheduled || row.ArrivedAt != nil {
		return 0, nil
	}
	reason := enums.CancellationReasonNoShow
	row.Status = enums.AssignmentStatusCancelled
	row.CancelledAt = &at
	row.CancellationReason = &reason
	return 1, nil
}

func (s *stubNoShowRepo) CreateAssignment(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	s.rows[assignment.ID] = assignment
	return nil
}

type stubWindowOpener struct {
	opened []bidding.OpenWindowInput
}

func (s *stubWindowOpener) OpenWindowInTx(ctx context.Context, tx *gorm.DB, input bidding.OpenWindowInput) (*models.BidWindow, error) {
	s.opened = append(s.opened, input)
	return &models.BidWindow{
		ID:           uuid.New(),
		AssignmentID: input.AssignmentID,
		Mode:         input.Mode,
		Status:       enums.BidWindowStatusOpen,
	}, nil
}

type stubNoShowOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubNoShowOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range s.events {
		if existing.EventType == event.EventType &&
			existing.AggregateType == event.AggregateType &&
			existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	s.events = append(s.events, event)
	return nil
}

type stubNoShowAudit struct {
	entries []audit.Entry
}

func (s *stubNoShowAudit) Record(tx *gorm.DB, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type noshowFixture struct {
	svc     Service
	repo    *stubNoShowRepo
	windows *stubWindowOpener
	outbox  *stubNoShowOutbox
	audit   *stubNoShowAudit
	now     time.Time
	loc     *time.Location
}

func newNoShowFixture(t *testing.T) *noshowFixture {
	t.Helper()

	clock, err := bizclock.New("America/New_York", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	policy := config.PolicyConfig{ArrivalGrace: 30 * time.Minute}
	repo := newStubNoShowRepo()
	windows := &stubWindowOpener{}
	outboxStub := &stubNoShowOutbox{}
	auditStub := &stubNoShowAudit{}

	svc, err := NewService(repo, stubTxRunner{}, windows, outboxStub, auditStub, clock, policy, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10:00 on the shift date; sweep runs after morning arrival deadlines.
	now := time.Date(2026, 6, 10, 10, 0, 0, 0, clock.Location())
	return &noshowFixture{svc: svc, repo: repo, windows: windows, outbox: outboxStub, audit: auditStub, now: now, loc: clock.Location()}
}

func (f *noshowFixture) seedScheduled(startHour int, arrived bool) *models.Assignment {
	driverID := uuid.New()
	assignment := &models.Assignment{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		RouteID:        uuid.New(),
		WarehouseID:    uuid.New(),
		ShiftDate:      "2026-06-10",
		Status:         enums.AssignmentStatusScheduled,
		DriverID:       &driverID,
		Route:          &models.Route{StartHour: startHour},
	}
	assignment.Route.ID = assignment.RouteID
	if arrived {
		at := f.now.Add(-time.Hour)
		assignment.ArrivedAt = &at
	}
	f.repo.rows[assignment.ID] = assignment
	return assignment
}

func TestSweepCancelsNoShowAndBackfills(t *testing.T) {
	f := newNoShowFixture(t)
	assignment := f.seedScheduled(8, false) // deadline 08:30, now 10:00

	result, err := f.svc.Sweep(context.Background(), f.now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NoShows != 1 || result.Backfills != 1 {
		t.Fatalf("expected one no-show with backfill, got %+v", result)
	}
	if assignment.Status != enums.AssignmentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", assignment.Status)
	}
	if assignment.CancellationReason == nil || *assignment.CancellationReason != enums.CancellationReasonNoShow {
		t.Fatal("expected no_show cancellation reason")
	}
	if len(f.windows.opened) != 1 || f.windows.opened[0].Mode != enums.BidWindowModeEmergency {
		t.Fatal("expected an emergency backfill window")
	}
	if f.windows.opened[0].AssignmentID == assignment.ID {
		t.Fatal("backfill window must target the replacement assignment, not the cancelled row")
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventAssignmentNoShow {
		t.Fatal("expected assignment_no_show event")
	}
}

func TestSweepSkipsWithinGrace(t *testing.T) {
	f := newNoShowFixture(t)
	f.seedScheduled(10, false) // deadline 10:30, now 10:00

	result, err := f.svc.Sweep(context.Background(), f.now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NoShows != 0 {
		t.Fatalf("grace period still open, expected zero no-shows, got %+v", result)
	}
}

func TestSweepSkipsArrivedDrivers(t *testing.T) {
	f := newNoShowFixture(t)
	f.seedScheduled(8, true)

	result, err := f.svc.Sweep(context.Background(), f.now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NoShows != 0 {
		t.Fatalf("arrived driver must not be swept, got %+v", result)
	}
}

func TestSweepIdempotent(t *testing.T) {
	f := newNoShowFixture(t)
	f.seedScheduled(8, false)

	if _, err := f.svc.Sweep(context.Background(), f.now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.Sweep(context.Background(), f.now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.NoShows != 0 || second.Backfills != 0 {
		t.Fatalf("second sweep must be a no-op, got %+v", second)
	}
	if len(f.windows.opened) != 1 {
		t.Fatalf("expected exactly one backfill window, got %d", len(f.windows.opened))
	}
	if len(f.outbox.events) != 1 {
		t.Fatalf("expected exactly one no-show event, got %d", len(f.outbox.events))
	}
}
