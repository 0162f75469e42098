package noshow

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

// NewRepository builds a no-show repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListNoShowCandidates(ctx context.Context, shiftDate string, limit int) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.db.WithContext(ctx).
		Preload("Route").
		Where("shift_date = ? AND status = ? AND driver_id IS NOT NULL AND arrived_at IS NULL",
			shiftDate, enums.AssignmentStatusScheduled).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindCandidateForUpdate(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ? AND status = ? AND arrived_at IS NULL", id, enums.AssignmentStatusScheduled).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) MarkNoShow(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ? AND arrived_at IS NULL", id, enums.AssignmentStatusScheduled).
		Updates(map[string]any{
			"status":              enums.AssignmentStatusCancelled,
			"cancelled_at":        at,
			"cancellation_reason": enums.CancellationReasonNoShow,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}
