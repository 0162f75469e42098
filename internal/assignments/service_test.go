package assignments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
	"github.com/orro3790/shiftbid-backend/pkg/pagination"
)

type stubAssignmentRepo struct {
	rows map[uuid.UUID]*models.Assignment
}

func newStubAssignmentRepo() *stubAssignmentRepo {
	return &stubAssignmentRepo{rows: make(map[uuid.UUID]*models.Assignment)}
}

func (s *stubAssignmentRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAssignmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (s *stubAssignmentRepo) ListForDriver(ctx context.Context, driverID uuid.UUID, params pagination.Params) ([]models.Assignment, *pagination.Cursor, error) {
	var rows []models.Assignment
	for _, row := range s.rows {
		if row.DriverID != nil && *row.DriverID == driverID {
			rows = append(rows, *row)
		}
	}
	return rows, nil, nil
}

func (s *stubAssignmentRepo) ListForDate(ctx context.Context, orgID uuid.UUID, shiftDate string) ([]models.Assignment, error) {
	var rows []models.Assignment
	for _, row := range s.rows {
		if row.OrganizationID == orgID && row.ShiftDate == shiftDate {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *stubAssignmentRepo) MarkConfirmed(ctx context.Context, id, driverID uuid.UUID, at time.Time) (int64, error) {
	row := s.rows[id]
	if row == nil || row.DriverID == nil || *row.DriverID != driverID ||
		row.Status != enums.AssignmentStatusScheduled || row.ConfirmedAt != nil {
		return 0, nil
	}
	row.ConfirmedAt = &at
	return 1, nil
}

func (s *stubAssignmentRepo) MarkArrived(ctx context.Context, id, driverID uuid.UUID, at time.Time) (int64, error) {
	row := s.rows[id]
	if row == nil || row.DriverID == nil || *row.DriverID != driverID ||
		row.Status != enums.AssignmentStatusScheduled {
		return 0, nil
	}
	row.ArrivedAt = &at
	row.Status = enums.AssignmentStatusActive
	return 1, nil
}

func (s *stubAssignmentRepo) MarkCompleted(ctx context.Context, id, driverID uuid.UUID, at time.Time, parcels int) (int64, error) {
	row := s.rows[id]
	if row == nil || row.DriverID == nil || *row.DriverID != driverID ||
		row.Status != enums.AssignmentStatusActive {
		return 0, nil
	}
	row.CompletedAt = &at
	row.Status = enums.AssignmentStatusCompleted
	row.ParcelsDelivered = &parcels
	return 1, nil
}

func (s *stubAssignmentRepo) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, reason enums.CancellationReason) (int64, error) {
	row := s.rows[id]
	if row == nil || (row.Status != enums.AssignmentStatusScheduled && row.Status != enums.AssignmentStatusActive) {
		return 0, nil
	}
	row.CancelledAt = &at
	row.Status = enums.AssignmentStatusCancelled
	row.CancellationReason = &reason
	return 1, nil
}

func (s *stubAssignmentRepo) UpdateParcelCount(ctx context.Context, id uuid.UUID, parcels int, completedAfter time.Time) (int64, error) {
	row := s.rows[id]
	if row == nil || row.Status != enums.AssignmentStatusCompleted ||
		row.CompletedAt == nil || !row.CompletedAt.After(completedAfter) {
		return 0, nil
	}
	row.ParcelsDelivered = &parcels
	return 1, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubAuditRecorder struct {
	entries []audit.Entry
}

func (s *stubAuditRecorder) Record(tx *gorm.DB, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

type stubRecomputer struct {
	recomputed []uuid.UUID
}

func (s *stubRecomputer) RecomputeDriver(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error {
	s.recomputed = append(s.recomputed, driverID)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fixture struct {
	svc     *service
	repo    *stubAssignmentRepo
	outbox  *stubOutboxPublisher
	audit   *stubAuditRecorder
	metrics *stubRecomputer
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newStubAssignmentRepo()
	outboxStub := &stubOutboxPublisher{}
	auditStub := &stubAuditRecorder{}
	metrics := &stubRecomputer{}
	policy := config.PolicyConfig{ParcelEditWindow: 24 * time.Hour}

	svc, err := NewService(repo, stubTxRunner{}, outboxStub, auditStub, metrics, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	impl := svc.(*service)
	now := time.Date(2026, 6, 10, 20, 0, 0, 0, time.UTC)
	impl.nowFn = func() time.Time { return now }

	return &fixture{svc: impl, repo: repo, outbox: outboxStub, audit: auditStub, metrics: metrics, now: now}
}

func (f *fixture) seed(status enums.AssignmentStatus, driverID uuid.UUID) *models.Assignment {
	id := driverID
	assignment := &models.Assignment{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		RouteID:        uuid.New(),
		ShiftDate:      "2026-06-10",
		Status:         status,
		DriverID:       &id,
	}
	f.repo.rows[assignment.ID] = assignment
	return assignment
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	driverID := uuid.New()
	assignment := f.seed(enums.AssignmentStatusScheduled, driverID)

	if err := f.svc.Confirm(context.Background(), assignment.ID, driverID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.ConfirmedAt == nil {
		t.Fatal("expected confirmation timestamp")
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Action != enums.AuditAssignmentConfirmed {
		t.Fatal("expected confirmation audit entry")
	}
}

func TestConfirmTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	driverID := uuid.New()
	assignment := f.seed(enums.AssignmentStatusScheduled, driverID)

	if err := f.svc.Confirm(context.Background(), assignment.ID, driverID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := f.svc.Confirm(context.Background(), assignment.ID, driverID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestConfirmWrongDriverForbidden(t *testing.T) {
	f := newFixture(t)
	assignment := f.seed(enums.AssignmentStatusScheduled, uuid.New())

	err := f.svc.Confirm(context.Background(), assignment.ID, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestArriveTransitionsToActive(t *testing.T) {
	f := newFixture(t)
	driverID := uuid.New()
	assignment := f.seed(enums.AssignmentStatusScheduled, driverID)

	if err := f.svc.Arrive(context.Background(), assignment.ID, driverID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.Status != enums.AssignmentStatusActive || assignment.ArrivedAt == nil {
		t.Fatalf("expected active assignment with arrival, got %s", assignment.Status)
	}
}

func TestCompleteEmitsEventAndRecomputes(t *testing.T) {
	f := newFixture(t)
	driverID := uuid.New()
	assignment := f.seed(enums.AssignmentStatusActive, driverID)

	err := f.svc.Complete(context.Background(), CompleteInput{
		AssignmentID:     assignment.ID,
		DriverID:         driverID,
		ParcelsDelivered: 142,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.Status != enums.AssignmentStatusCompleted {
		t.Fatalf("expected completed, got %s", assignment.Status)
	}
	if assignment.ParcelsDelivered == nil || *assignment.ParcelsDelivered != 142 {
		t.Fatal("expected parcel count persisted")
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventShiftCompleted {
		t.Fatal("expected shift_completed event")
	}
	if len(f.metrics.recomputed) != 1 || f.metrics.recomputed[0] != driverID {
		t.Fatal("expected metrics recompute for the driver")
	}
}

func TestCompleteRequiresActive(t *testing.T) {
	f := newFixture(t)
	driverID := uuid.New()
	assignment := f.seed(enums.AssignmentStatusScheduled, driverID)

	err := f.svc.Complete(context.Background(), CompleteInput{
		AssignmentID:     assignment.ID,
		DriverID:         driverID,
		ParcelsDelivered: 10,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelByDriver(t *testing.T) {
	f := newFixture(t)
	driverID := uuid.New()
	assignment := f.seed(enums.AssignmentStatusScheduled, driverID)

	err := f.svc.Cancel(context.Background(), CancelInput{
		AssignmentID: assignment.ID,
		Actor:        audit.Actor{Role: enums.ActorRoleDriver, ID: &driverID},
		Reason:       enums.CancellationReasonDriverCancelled,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.Status != enums.AssignmentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", assignment.Status)
	}
	if assignment.CancellationReason == nil || *assignment.CancellationReason != enums.CancellationReasonDriverCancelled {
		t.Fatal("expected cancellation reason persisted")
	}
	if len(f.metrics.recomputed) != 1 {
		t.Fatal("cancellation should trigger a metrics recompute")
	}
}

func TestCancelForeignAssignmentForbidden(t *testing.T) {
	f := newFixture(t)
	assignment := f.seed(enums.AssignmentStatusScheduled, uuid.New())
	other := uuid.New()

	err := f.svc.Cancel(context.Background(), CancelInput{
		AssignmentID: assignment.ID,
		Actor:        audit.Actor{Role: enums.ActorRoleDriver, ID: &other},
		Reason:       enums.CancellationReasonDriverCancelled,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestEditParcelCountInsideWindow(t *testing.T) {
	f := newFixture(t)
	driverID := uuid.New()
	assignment := f.seed(enums.AssignmentStatusCompleted, driverID)
	completedAt := f.now.Add(-2 * time.Hour)
	assignment.CompletedAt = &completedAt
	original := 100
	assignment.ParcelsDelivered = &original

	err := f.svc.EditParcelCount(context.Background(), EditParcelsInput{
		AssignmentID:     assignment.ID,
		Actor:            audit.Actor{Role: enums.ActorRoleDriver, ID: &driverID},
		ParcelsDelivered: 105,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *assignment.ParcelsDelivered != 105 {
		t.Fatalf("expected corrected count, got %d", *assignment.ParcelsDelivered)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Action != enums.AuditParcelCountEdited {
		t.Fatal("expected parcel edit audit entry with before/after")
	}
}

func TestEditParcelCountExpiredWindow(t *testing.T) {
	f := newFixture(t)
	driverID := uuid.New()
	assignment := f.seed(enums.AssignmentStatusCompleted, driverID)
	completedAt := f.now.Add(-25 * time.Hour)
	assignment.CompletedAt = &completedAt

	err := f.svc.EditParcelCount(context.Background(), EditParcelsInput{
		AssignmentID:     assignment.ID,
		Actor:            audit.Actor{Role: enums.ActorRoleDriver, ID: &driverID},
		ParcelsDelivered: 105,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
