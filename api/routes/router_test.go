package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/internal/assignments"
	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/internal/bidding"
	"github.com/orro3790/shiftbid-backend/internal/health"
	"github.com/orro3790/shiftbid-backend/internal/notifications"
	pkgAuth "github.com/orro3790/shiftbid-backend/pkg/auth"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
	"github.com/orro3790/shiftbid-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubBiddingService struct{}

func (stubBiddingService) OpenWindow(ctx context.Context, input bidding.OpenWindowInput) (*models.BidWindow, error) {
	return &models.BidWindow{}, nil
}

func (stubBiddingService) OpenWindowInTx(ctx context.Context, tx *gorm.DB, input bidding.OpenWindowInput) (*models.BidWindow, error) {
	return &models.BidWindow{}, nil
}

func (stubBiddingService) SubmitBid(ctx context.Context, input bidding.SubmitBidInput) (*models.Bid, error) {
	return &models.Bid{}, nil
}

func (stubBiddingService) Resolve(ctx context.Context, windowID uuid.UUID, actor audit.Actor) error {
	return nil
}

func (stubBiddingService) SweepExpired(ctx context.Context, now time.Time) (bidding.SweepResult, error) {
	return bidding.SweepResult{}, nil
}

func (stubBiddingService) ManagerAssign(ctx context.Context, input bidding.ManagerAssignInput) error {
	return nil
}

type stubBiddingRepo struct{}

func (s *stubBiddingRepo) WithTx(tx *gorm.DB) bidding.Repository { return s }

func (s *stubBiddingRepo) FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBiddingRepo) FindWindow(ctx context.Context, id uuid.UUID) (*models.BidWindow, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBiddingRepo) FindOpenWindowForUpdate(ctx context.Context, id uuid.UUID) (*models.BidWindow, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBiddingRepo) FindOpenWindowByAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.BidWindow, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBiddingRepo) ListExpiredOpenWindows(ctx context.Context, cutoff time.Time, limit int) ([]models.BidWindow, error) {
	return nil, nil
}

func (s *stubBiddingRepo) ListOpenWindows(ctx context.Context, orgID uuid.UUID) ([]models.BidWindow, error) {
	return []models.BidWindow{}, nil
}

func (s *stubBiddingRepo) CreateWindow(ctx context.Context, window *models.BidWindow) error {
	return nil
}

func (s *stubBiddingRepo) UpdateWindowResolved(ctx context.Context, id uuid.UUID, winnerDriverID uuid.UUID, resolvedAt time.Time) error {
	return nil
}

func (s *stubBiddingRepo) UpdateWindowClosed(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *stubBiddingRepo) CreateBid(ctx context.Context, bid *models.Bid) error {
	return nil
}

func (s *stubBiddingRepo) FindPendingBids(ctx context.Context, windowID uuid.UUID) ([]models.Bid, error) {
	return nil, nil
}

func (s *stubBiddingRepo) UpdateBidOutcome(ctx context.Context, bidID uuid.UUID, status enums.BidStatus, score float64) error {
	return nil
}

func (s *stubBiddingRepo) AssignDriver(ctx context.Context, assignmentID, driverID uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubBiddingRepo) MarkAssignmentUnfilled(ctx context.Context, assignmentID uuid.UUID) error {
	return nil
}

func (s *stubBiddingRepo) FindDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBiddingRepo) FindMetricsForDrivers(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.DriverMetrics, error) {
	return map[uuid.UUID]models.DriverMetrics{}, nil
}

type stubAssignmentsService struct{}

func (stubAssignmentsService) Confirm(ctx context.Context, assignmentID, driverID uuid.UUID) error {
	return nil
}

func (stubAssignmentsService) Arrive(ctx context.Context, assignmentID, driverID uuid.UUID) error {
	return nil
}

func (stubAssignmentsService) Complete(ctx context.Context, input assignments.CompleteInput) error {
	return nil
}

func (stubAssignmentsService) Cancel(ctx context.Context, input assignments.CancelInput) error {
	return nil
}

func (stubAssignmentsService) EditParcelCount(ctx context.Context, input assignments.EditParcelsInput) error {
	return nil
}

type stubAssignmentsRepo struct{}

func (s *stubAssignmentsRepo) WithTx(tx *gorm.DB) assignments.Repository { return s }

func (s *stubAssignmentsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAssignmentsRepo) ListForDriver(ctx context.Context, driverID uuid.UUID, params pagination.Params) ([]models.Assignment, *pagination.Cursor, error) {
	return []models.Assignment{}, nil, nil
}

func (s *stubAssignmentsRepo) ListForDate(ctx context.Context, orgID uuid.UUID, shiftDate string) ([]models.Assignment, error) {
	return []models.Assignment{}, nil
}

func (s *stubAssignmentsRepo) MarkConfirmed(ctx context.Context, id, driverID uuid.UUID, at time.Time) (int64, error) {
	return 0, nil
}

func (s *stubAssignmentsRepo) MarkArrived(ctx context.Context, id, driverID uuid.UUID, at time.Time) (int64, error) {
	return 0, nil
}

func (s *stubAssignmentsRepo) MarkCompleted(ctx context.Context, id, driverID uuid.UUID, at time.Time, parcels int) (int64, error) {
	return 0, nil
}

func (s *stubAssignmentsRepo) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, reason enums.CancellationReason) (int64, error) {
	return 0, nil
}

func (s *stubAssignmentsRepo) UpdateParcelCount(ctx context.Context, id uuid.UUID, parcels int, completedAfter time.Time) (int64, error) {
	return 0, nil
}

type stubHealthService struct{}

func (stubHealthService) RecomputeDriver(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error {
	return nil
}

func (stubHealthService) RecomputeAll(ctx context.Context, now time.Time) (health.SweepResult, error) {
	return health.SweepResult{}, nil
}

func (stubHealthService) Reinstate(ctx context.Context, input health.ReinstateInput) error {
	return nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		stubPinger{},
		stubBiddingService{},
		&stubBiddingRepo{},
		stubAssignmentsService{},
		&stubAssignmentsRepo{},
		stubHealthService{},
		stubNotificationsService{},
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		SubjectID:      uuid.New(),
		OrganizationID: uuid.New(),
		Role:           role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleDriver))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for private ping got %d", resp.Code)
	}
}

func TestManagerGroupRequiresManagerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	driver := httptest.NewRequest(http.MethodGet, "/api/v1/manager/assignments?date=2026-06-10", nil)
	driver.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleDriver))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, driver)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for driver got %d", resp.Code)
	}

	manager := httptest.NewRequest(http.MethodGet, "/api/v1/manager/assignments?date=2026-06-10", nil)
	manager.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleManager))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, manager)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for manager got %d", resp.Code)
	}
}

func TestDriverWindowsListSucceeds(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/windows", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleDriver))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 listing windows got %d", resp.Code)
	}
}

func TestSubmitBidReturnsCreated(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/windows/"+uuid.NewString()+"/bids", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleDriver))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for bid got %d", resp.Code)
	}
}

func TestManagerAssignmentsRequiresDate(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/manager/assignments", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleManager))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without date got %d", resp.Code)
	}
}

func TestNotificationsListSucceeds(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleDriver))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 listing notifications got %d", resp.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(testConfig())

	live := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, live)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for live got %d", resp.Code)
	}

	ready := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, ready)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ready got %d", resp.Code)
	}
}
