package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bidding repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Preload("Route").
		Where("id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindWindow(ctx context.Context, id uuid.UUID) (*models.BidWindow, error) {
	var window models.BidWindow
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&window).Error
	if err != nil {
		return nil, err
	}
	return &window, nil
}

func (r *repository) FindOpenWindowForUpdate(ctx context.Context, id uuid.UUID) (*models.BidWindow, error) {
	var window models.BidWindow
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ? AND status = ?", id, enums.BidWindowStatusOpen).
		First(&window).Error
	if err != nil {
		return nil, err
	}
	return &window, nil
}

func (r *repository) FindOpenWindowByAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.BidWindow, error) {
	var window models.BidWindow
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND status = ?", assignmentID, enums.BidWindowStatusOpen).
		First(&window).Error
	if err != nil {
		return nil, err
	}
	return &window, nil
}

func (r *repository) ListExpiredOpenWindows(ctx context.Context, cutoff time.Time, limit int) ([]models.BidWindow, error) {
	var windows []models.BidWindow
	err := r.db.WithContext(ctx).
		Where("status = ? AND closes_at IS NOT NULL AND closes_at <= ?", enums.BidWindowStatusOpen, cutoff).
		Order("closes_at ASC").
		Limit(limit).
		Find(&windows).Error
	if err != nil {
		return nil, err
	}
	return windows, nil
}

func (r *repository) ListOpenWindows(ctx context.Context, orgID uuid.UUID) ([]models.BidWindow, error) {
	var windows []models.BidWindow
	err := r.db.WithContext(ctx).
		Joins("JOIN assignments ON assignments.id = bid_windows.assignment_id").
		Where("bid_windows.status = ? AND assignments.organization_id = ?", enums.BidWindowStatusOpen, orgID).
		Order("bid_windows.opened_at ASC").
		Find(&windows).Error
	if err != nil {
		return nil, err
	}
	return windows, nil
}

func (r *repository) CreateWindow(ctx context.Context, window *models.BidWindow) error {
	return r.db.WithContext(ctx).Create(window).Error
}

func (r *repository) UpdateWindowResolved(ctx context.Context, id uuid.UUID, winnerDriverID uuid.UUID, resolvedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.BidWindow{}).
		Where("id = ? AND status = ?", id, enums.BidWindowStatusOpen).
		Updates(map[string]any{
			"status":           enums.BidWindowStatusResolved,
			"winner_driver_id": winnerDriverID,
			"resolved_at":      resolvedAt,
		}).Error
}

func (r *repository) UpdateWindowClosed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.BidWindow{}).
		Where("id = ? AND status = ?", id, enums.BidWindowStatusOpen).
		Update("status", enums.BidWindowStatusClosed).Error
}

func (r *repository) CreateBid(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *repository) FindPendingBids(ctx context.Context, windowID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("bid_window_id = ? AND status = ?", windowID, enums.BidStatusPending).
		Order("submitted_at ASC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) UpdateBidOutcome(ctx context.Context, bidID uuid.UUID, status enums.BidStatus, score float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ?", bidID).
		Updates(map[string]any{"status": status, "score": score}).Error
}

func (r *repository) AssignDriver(ctx context.Context, assignmentID, driverID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ?", assignmentID, enums.AssignmentStatusUnfilled).
		Updates(map[string]any{
			"driver_id": driverID,
			"status":    enums.AssignmentStatusScheduled,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) MarkAssignmentUnfilled(ctx context.Context, assignmentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ?", assignmentID).
		Updates(map[string]any{
			"driver_id": nil,
			"status":    enums.AssignmentStatusUnfilled,
		}).Error
}

func (r *repository) FindDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.WithContext(ctx).
		Where("id = ?", driverID).
		First(&driver).Error
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *repository) FindMetricsForDrivers(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.DriverMetrics, error) {
	byDriver := make(map[uuid.UUID]models.DriverMetrics, len(driverIDs))
	if len(driverIDs) == 0 {
		return byDriver, nil
	}
	var rows []models.DriverMetrics
	err := r.db.WithContext(ctx).
		Where("driver_id IN ?", driverIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		byDriver[row.DriverID] = row
	}
	return byDriver, nil
}
