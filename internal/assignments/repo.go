package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	"github.com/orro3790/shiftbid-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an assignments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
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

func (r *repository) ListForDriver(ctx context.Context, driverID uuid.UUID, params pagination.Params) ([]models.Assignment, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)

	query := r.db.WithContext(ctx).
		Preload("Route").
		Where("driver_id = ?", driverID).
		Order("created_at DESC, id DESC").
		Limit(limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Assignment
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	pageSize := pagination.NormalizeLimit(params.Limit)
	var next *pagination.Cursor
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

func (r *repository) ListForDate(ctx context.Context, orgID uuid.UUID, shiftDate string) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.db.WithContext(ctx).
		Preload("Route").
		Where("organization_id = ? AND shift_date = ?", orgID, shiftDate).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkConfirmed(ctx context.Context, id, driverID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND driver_id = ? AND status = ? AND confirmed_at IS NULL",
			id, driverID, enums.AssignmentStatusScheduled).
		Update("confirmed_at", at)
	return result.RowsAffected, result.Error
}

func (r *repository) MarkArrived(ctx context.Context, id, driverID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND driver_id = ? AND status = ?",
			id, driverID, enums.AssignmentStatusScheduled).
		Updates(map[string]any{
			"arrived_at": at,
			"status":     enums.AssignmentStatusActive,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) MarkCompleted(ctx context.Context, id, driverID uuid.UUID, at time.Time, parcels int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND driver_id = ? AND status = ?",
			id, driverID, enums.AssignmentStatusActive).
		Updates(map[string]any{
			"completed_at":      at,
			"status":            enums.AssignmentStatusCompleted,
			"parcels_delivered": parcels,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, reason enums.CancellationReason) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status IN ?",
			id, []enums.AssignmentStatus{enums.AssignmentStatusScheduled, enums.AssignmentStatusActive}).
		Updates(map[string]any{
			"cancelled_at":        at,
			"status":              enums.AssignmentStatusCancelled,
			"cancellation_reason": reason,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateParcelCount(ctx context.Context, id uuid.UUID, parcels int, completedAfter time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ? AND completed_at > ?",
			id, enums.AssignmentStatusCompleted, completedAfter).
		Update("parcels_delivered", parcels)
	return result.RowsAffected, result.Error
}
