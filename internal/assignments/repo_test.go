package assignments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	"github.com/orro3790/shiftbid-backend/pkg/pagination"
)

func setupAssignmentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	routes := `
CREATE TABLE IF NOT EXISTS routes (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  warehouse_id TEXT NOT NULL,
  name TEXT NOT NULL,
  start_hour INTEGER NOT NULL,
  start_minute INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	assignments := `
CREATE TABLE IF NOT EXISTS assignments (
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
);`
	require.NoError(t, db.Exec(routes).Error)
	require.NoError(t, db.Exec(assignments).Error)
	return db
}

func newRoute(t *testing.T, db *gorm.DB, orgID uuid.UUID, name string) *models.Route {
	t.Helper()

	route := &models.Route{
		OrganizationID: orgID,
		WarehouseID:    uuid.New(),
		Name:           name,
		StartHour:      9,
	}
	route.ID = uuid.New()
	require.NoError(t, db.Create(route).Error)
	return route
}

func newAssignment(t *testing.T, db *gorm.DB, route *models.Route, shiftDate string, status enums.AssignmentStatus, driverID *uuid.UUID, created time.Time) *models.Assignment {
	t.Helper()

	assignment := &models.Assignment{
		OrganizationID: route.OrganizationID,
		RouteID:        route.ID,
		WarehouseID:    route.WarehouseID,
		ShiftDate:      shiftDate,
		Status:         status,
		DriverID:       driverID,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	assignment.ID = uuid.New()
	require.NoError(t, db.Create(assignment).Error)
	return assignment
}

func TestRepositoryListForDriver_pagination(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	repo := NewRepository(db)

	orgID := uuid.New()
	route := newRoute(t, db, orgID, "North Loop")
	driverID := uuid.New()
	otherDriver := uuid.New()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	older := newAssignment(t, db, route, "2026-06-02", enums.AssignmentStatusCompleted, &driverID, base.Add(-time.Hour))
	newer := newAssignment(t, db, route, "2026-06-03", enums.AssignmentStatusScheduled, &driverID, base)
	newAssignment(t, db, route, "2026-06-03", enums.AssignmentStatusScheduled, &otherDriver, base)

	rows, next, err := repo.ListForDriver(context.Background(), driverID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, next)
	assert.Equal(t, newer.ID, rows[0].ID)
	require.NotNil(t, rows[0].Route)
	assert.Equal(t, "North Loop", rows[0].Route.Name)

	second, last, err := repo.ListForDriver(context.Background(), driverID, pagination.Params{
		Limit:  1,
		Cursor: pagination.EncodeCursor(*next),
	})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, older.ID, second[0].ID)
	assert.Nil(t, last)
}

func TestRepositoryListForDate_scopedToOrg(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	repo := NewRepository(db)

	orgID := uuid.New()
	route := newRoute(t, db, orgID, "South Loop")
	foreignRoute := newRoute(t, db, uuid.New(), "Other Org")
	driverID := uuid.New()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	match := newAssignment(t, db, route, "2026-06-10", enums.AssignmentStatusScheduled, &driverID, base)
	newAssignment(t, db, route, "2026-06-11", enums.AssignmentStatusUnfilled, nil, base)
	newAssignment(t, db, foreignRoute, "2026-06-10", enums.AssignmentStatusUnfilled, nil, base)

	rows, err := repo.ListForDate(context.Background(), orgID, "2026-06-10")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, match.ID, rows[0].ID)
	require.NotNil(t, rows[0].Route)
	assert.Equal(t, "South Loop", rows[0].Route.Name)
}

func TestRepositoryMarkConfirmed_guarded(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	repo := NewRepository(db)

	orgID := uuid.New()
	route := newRoute(t, db, orgID, "East Loop")
	driverID := uuid.New()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	assignment := newAssignment(t, db, route, "2026-06-10", enums.AssignmentStatusScheduled, &driverID, base)

	affected, err := repo.MarkConfirmed(context.Background(), assignment.ID, driverID, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// Already confirmed: the guard makes a second confirm a no-op.
	affected, err = repo.MarkConfirmed(context.Background(), assignment.ID, driverID, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	// Wrong driver never matches.
	affected, err = repo.MarkConfirmed(context.Background(), assignment.ID, uuid.New(), base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}
