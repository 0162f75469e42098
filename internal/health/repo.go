package health

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

var terminalStatuses = []enums.AssignmentStatus{
	enums.AssignmentStatusCompleted,
	enums.AssignmentStatusCancelled,
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a health repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListTerminalAssignments(ctx context.Context, driverID uuid.UUID) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.db.WithContext(ctx).
		Where("driver_id = ? AND status IN ?", driverID, terminalStatuses).
		Order("shift_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActiveDriverIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("active = ?", true).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
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

func (r *repository) UpdateDriverWeeklyCap(ctx context.Context, driverID uuid.UUID, cap int) error {
	return r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ?", driverID).
		Update("weekly_cap", cap).Error
}

func (r *repository) FindMetrics(ctx context.Context, driverID uuid.UUID) (*models.DriverMetrics, error) {
	var metrics models.DriverMetrics
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		First(&metrics).Error
	if err != nil {
		return nil, err
	}
	return &metrics, nil
}

func (r *repository) UpsertMetrics(ctx context.Context, metrics *models.DriverMetrics) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "driver_id"}},
			UpdateAll: true,
		}).
		Create(metrics).Error
}

func (r *repository) FindHealthState(ctx context.Context, driverID uuid.UUID) (*models.DriverHealthState, error) {
	var state models.DriverHealthState
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *repository) UpsertHealthState(ctx context.Context, state *models.DriverHealthState) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "driver_id"}},
			UpdateAll: true,
		}).
		Create(state).Error
}
