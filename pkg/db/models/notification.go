package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

// Notification stores in-app notification payloads for drivers and managers.
type Notification struct {
	ID             uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID uuid.UUID              `gorm:"type:uuid;not null"`
	RecipientID    uuid.UUID              `gorm:"type:uuid;not null"`
	RecipientRole  enums.ActorRole        `gorm:"type:text;not null"`
	Type           enums.NotificationType `gorm:"type:notification_type;not null"`
	Title          string                 `gorm:"type:text;not null"`
	Message        string                 `gorm:"type:text;not null"`
	ReadAt         *time.Time             `gorm:"type:timestamptz"`
	CreatedAt      time.Time              `gorm:"type:timestamptz;default:now()"`
}
