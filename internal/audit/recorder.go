// Package audit appends immutable audit records inside the caller's
// transaction so every externally visible state change commits together
// with the record documenting it.
package audit

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

// Actor identifies who caused a change.
type Actor struct {
	Role enums.ActorRole
	ID   *uuid.UUID
}

// SystemActor is the automated actor used by sweeps and schedulers.
func SystemActor() Actor {
	return Actor{Role: enums.ActorRoleSystem}
}

// Entry is one change to record. Before/After/Context are marshalled to
// JSON; nil values are stored as SQL nulls.
type Entry struct {
	OrganizationID uuid.UUID
	EntityType     enums.OutboxAggregateType
	EntityID       uuid.UUID
	Action         enums.AuditAction
	Actor          Actor
	Before         any
	After          any
	Context        any
}

// Recorder writes audit log rows.
type Recorder struct{}

// NewRecorder builds a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record inserts the entry using the provided transaction.
func (r *Recorder) Record(tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.EntityID == uuid.Nil {
		return errors.New("entity id required")
	}
	if !entry.Actor.Role.IsValid() {
		return errors.New("actor role required")
	}

	row := models.AuditLogEntry{
		OrganizationID: entry.OrganizationID,
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		Action:         entry.Action,
		ActorRole:      entry.Actor.Role,
		ActorID:        entry.Actor.ID,
	}

	var err error
	if row.Before, err = marshalField(entry.Before); err != nil {
		return err
	}
	if row.After, err = marshalField(entry.After); err != nil {
		return err
	}
	if row.Context, err = marshalField(entry.Context); err != nil {
		return err
	}

	return tx.Create(&row).Error
}

func marshalField(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
