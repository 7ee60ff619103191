package dto

import (
	"time"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateOperatorRequest payload.
type CreateOperatorRequest struct {
	Name     string              `json:"name"`
	Email    string              `json:"email"`
	Password string              `json:"password"`
	Role     domain.OperatorRole `json:"role"`
}

// OperatorResponse describes an operator account.
type OperatorResponse struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Email  string              `json:"email"`
	Role   domain.OperatorRole `json:"role"`
	Active bool                `json:"active"`
}

// TokenResponse wraps an issued access token.
type TokenResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Operator    OperatorResponse `json:"operator"`
}
