package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

// AuditLogEntry is an immutable record of a state change, written in the
// same transaction as the change it documents. Context carries extra
// transparency data such as every candidate's score at resolution.
type AuditLogEntry struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID uuid.UUID                 `gorm:"column:organization_id;type:uuid;not null"`
	EntityType     enums.OutboxAggregateType `gorm:"column:entity_type;type:text;not null"`
	EntityID       uuid.UUID                 `gorm:"column:entity_id;type:uuid;not null"`
	Action         enums.AuditAction         `gorm:"column:action;type:text;not null"`
	ActorRole      enums.ActorRole           `gorm:"column:actor_role;type:text;not null"`
	ActorID        *uuid.UUID                `gorm:"column:actor_id;type:uuid"`
	Before         json.RawMessage           `gorm:"column:before;type:jsonb"`
	After          json.RawMessage           `gorm:"column:after;type:jsonb"`
	Context        json.RawMessage           `gorm:"column:context;type:jsonb"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table name.
func (AuditLogEntry) TableName() string {
	return "audit_log"
}
