package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/pkg/enums"
)

// AccessTokenClaims is the typed identity minted by the external auth layer.
// The core trusts this identity but re-validates ownership and eligibility
// itself.
type AccessTokenClaims struct {
	SubjectID      uuid.UUID       `json:"subject_id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Role           enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
