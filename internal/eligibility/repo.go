package eligibility

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

var countedStatuses = []enums.AssignmentStatus{
	enums.AssignmentStatusScheduled,
	enums.AssignmentStatusActive,
	enums.AssignmentStatusCompleted,
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the gate's read-only repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
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

func (r *repository) FindHealthState(ctx context.Context, driverID uuid.UUID) (*models.DriverHealthState, error) {
	var state models.DriverHealthState
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		First(&state).Error
	if err != nil {
		// Drivers without a health row yet start eligible and unflagged.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.DriverHealthState{
				DriverID:    driverID,
				Eligibility: enums.HealthEligible,
			}, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *repository) CountAssignmentsInRange(ctx context.Context, driverID uuid.UUID, fromDate, toDate string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("driver_id = ? AND status IN ? AND shift_date >= ? AND shift_date < ?",
			driverID, countedStatuses, fromDate, toDate).
		Count(&count).Error
	return count, err
}

func (r *repository) HasAssignmentOnDate(ctx context.Context, driverID uuid.UUID, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("driver_id = ? AND shift_date = ? AND status IN ?",
			driverID, date, countedStatuses).
		Count(&count).Error
	return count > 0, err
}
