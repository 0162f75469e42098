package bidding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/internal/eligibility"
	"github.com/orro3790/shiftbid-backend/internal/scoring"
	"github.com/orro3790/shiftbid-backend/pkg/bizclock"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
)

type dbTxRunner struct {
	db *gorm.DB
}

func (r dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupResolutionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	statements := []string{
		`CREATE TABLE routes (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  warehouse_id TEXT NOT NULL,
  name TEXT NOT NULL,
  start_hour INTEGER NOT NULL,
  start_minute INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE assignments (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  route_id TEXT NOT NULL,
  warehouse_id TEXT NOT NULL,
  shift_date TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'unfilled',
  driver_id TEXT,
  confirmed_at DATETIME,
  arrived_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  cancellation_reason TEXT,
  parcels_delivered INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE bid_windows (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  assignment_id TEXT NOT NULL,
  mode TEXT NOT NULL DEFAULT 'competitive',
  status TEXT NOT NULL DEFAULT 'open',
  opened_at DATETIME NOT NULL,
  closes_at DATETIME,
  resolved_at DATETIME,
  winner_driver_id TEXT,
  bonus_percent NUMERIC,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE bids (
  id TEXT PRIMARY KEY,
  bid_window_id TEXT NOT NULL,
  driver_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  submitted_at DATETIME NOT NULL,
  score REAL,
  created_at DATETIME
);`,
		`CREATE TABLE drivers (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  full_name TEXT NOT NULL,
  phone TEXT,
  weekly_cap INTEGER NOT NULL DEFAULT 5,
  preferred_routes TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  deactivated_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE driver_metrics (
  driver_id TEXT PRIMARY KEY,
  total_shifts INTEGER NOT NULL DEFAULT 0,
  completed_shifts INTEGER NOT NULL DEFAULT 0,
  cancelled_shifts INTEGER NOT NULL DEFAULT 0,
  no_shows INTEGER NOT NULL DEFAULT 0,
  attendance_rate REAL NOT NULL DEFAULT 0,
  completion_rate REAL NOT NULL DEFAULT 0,
  avg_parcels REAL NOT NULL DEFAULT 0,
  route_completions TEXT,
  recomputed_at DATETIME NOT NULL
);`,
		`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
		`CREATE TABLE audit_log (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  entity_type TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  action TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  actor_id TEXT,
  before TEXT,
  after TEXT,
  context TEXT,
  created_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newResolutionService(t *testing.T, db *gorm.DB, now time.Time) Service {
	t.Helper()

	clock, err := bizclock.New("America/New_York", 0)
	require.NoError(t, err)
	policy := config.PolicyConfig{
		WindowDefaultDuration:    4 * time.Hour,
		WindowNearStartThreshold: 4 * time.Hour,
		FamiliarityCap:           20,
		PreferredRouteTopN:       3,
	}
	gate := &stubEligibility{decision: eligibility.Decision{Eligible: true}}

	svc, err := NewService(
		NewRepository(db),
		dbTxRunner{db: db},
		outbox.NewService(outbox.NewRepository(db), nil),
		audit.NewRecorder(),
		gate,
		scoring.NewEngine(policy.FamiliarityCap),
		clock,
		policy,
		nil,
	)
	require.NoError(t, err)

	impl := svc.(*service)
	impl.nowFn = func() time.Time { return now }
	return impl
}

func seedContestedWindow(t *testing.T, db *gorm.DB, now time.Time) (windowID, assignmentID, strongDriverID uuid.UUID) {
	t.Helper()

	orgID := uuid.New()
	route := &models.Route{
		OrganizationID: orgID,
		WarehouseID:    uuid.New(),
		Name:           "Harbor Loop",
		StartHour:      18,
	}
	route.ID = uuid.New()
	require.NoError(t, db.Create(route).Error)

	assignment := &models.Assignment{
		OrganizationID: orgID,
		RouteID:        route.ID,
		WarehouseID:    route.WarehouseID,
		ShiftDate:      "2026-06-10",
		Status:         enums.AssignmentStatusUnfilled,
		CreatedAt:      now.Add(-time.Hour),
		UpdatedAt:      now.Add(-time.Hour),
	}
	assignment.ID = uuid.New()
	require.NoError(t, db.Create(assignment).Error)

	strong := &models.Driver{OrganizationID: orgID, FullName: "Strong Driver", PreferredRoutes: []string{route.ID.String()}}
	strong.ID = uuid.New()
	weak := &models.Driver{OrganizationID: orgID, FullName: "Weak Driver"}
	weak.ID = uuid.New()
	require.NoError(t, db.Create(strong).Error)
	require.NoError(t, db.Create(weak).Error)

	require.NoError(t, db.Create(&models.DriverMetrics{
		DriverID:         strong.ID,
		TotalShifts:      20,
		CompletedShifts:  19,
		AttendanceRate:   0.95,
		CompletionRate:   0.95,
		RouteCompletions: map[string]int{route.ID.String(): 10},
		RecomputedAt:     now,
	}).Error)
	require.NoError(t, db.Create(&models.DriverMetrics{
		DriverID:        weak.ID,
		TotalShifts:     10,
		CompletedShifts: 5,
		AttendanceRate:  0.50,
		CompletionRate:  0.50,
		RecomputedAt:    now,
	}).Error)

	closesAt := now.Add(-time.Minute)
	window := &models.BidWindow{
		OrganizationID: orgID,
		AssignmentID:   assignment.ID,
		Mode:           enums.BidWindowModeCompetitive,
		Status:         enums.BidWindowStatusOpen,
		OpenedAt:       now.Add(-2 * time.Hour),
		ClosesAt:       &closesAt,
	}
	window.ID = uuid.New()
	require.NoError(t, db.Create(window).Error)

	for i, driverID := range []uuid.UUID{strong.ID, weak.ID} {
		bid := &models.Bid{
			BidWindowID: window.ID,
			DriverID:    driverID,
			Status:      enums.BidStatusPending,
			SubmittedAt: now.Add(time.Duration(i-10) * time.Minute),
		}
		bid.ID = uuid.New()
		require.NoError(t, db.Create(bid).Error)
	}

	return window.ID, assignment.ID, strong.ID
}

func TestResolveConcurrentAttemptsSingleWinner(t *testing.T) {
	db := setupResolutionTestDB(t)
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	svc := newResolutionService(t, db, now)
	windowID, assignmentID, strongDriverID := seedContestedWindow(t, db, now)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			errs[slot] = svc.Resolve(context.Background(), windowID, audit.SystemActor())
		}(i)
	}
	wg.Wait()

	var committed, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, committed, "exactly one resolution attempt must commit")
	assert.Equal(t, attempts-1, conflicted)

	var window models.BidWindow
	require.NoError(t, db.Where("id = ?", windowID).First(&window).Error)
	assert.Equal(t, enums.BidWindowStatusResolved, window.Status)
	require.NotNil(t, window.WinnerDriverID)
	assert.Equal(t, strongDriverID, *window.WinnerDriverID)
	require.NotNil(t, window.ResolvedAt)

	var assignment models.Assignment
	require.NoError(t, db.Where("id = ?", assignmentID).First(&assignment).Error)
	assert.Equal(t, enums.AssignmentStatusScheduled, assignment.Status)
	require.NotNil(t, assignment.DriverID)
	assert.Equal(t, strongDriverID, *assignment.DriverID)

	var won, pending int64
	require.NoError(t, db.Model(&models.Bid{}).Where("bid_window_id = ? AND status = ?", windowID, enums.BidStatusWon).Count(&won).Error)
	require.NoError(t, db.Model(&models.Bid{}).Where("bid_window_id = ? AND status = ?", windowID, enums.BidStatusPending).Count(&pending).Error)
	assert.Equal(t, int64(1), won)
	assert.Equal(t, int64(0), pending)

	var resolvedEvents int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventWindowResolved, windowID).
		Count(&resolvedEvents).Error)
	assert.Equal(t, int64(1), resolvedEvents, "resolution must emit exactly one event")
}
