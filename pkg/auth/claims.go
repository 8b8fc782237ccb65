package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/craftandcart/storefront-backend/pkg/enums"
)

// AccessTokenClaims is the typed JWT presented by storefront clients.
// Tokens are minted by the identity service; this API only verifies them.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Email  string     `json:"email,omitempty"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}
