package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobticket-service/internal/api/dto"
	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/service"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

// OperatorAuth is the login and provisioning surface of the auth service.
type OperatorAuth interface {
	Login(ctx context.Context, email, password string) (*domain.Operator, string, time.Time, error)
	CreateOperator(ctx context.Context, in service.OperatorInput) (*domain.Operator, error)
}

// AuthHandler serves operator login and account provisioning.
type AuthHandler struct {
	auth OperatorAuth
}

// NewAuthHandler constructs handler.
func NewAuthHandler(auth OperatorAuth) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login POST /auth/operators/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	operator, token, exp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
		Operator:    operatorResponse(operator),
	}})
}

// CreateOperator POST /admin/operators.
func (h *AuthHandler) CreateOperator(c *fiber.Ctx) error {
	var req dto.CreateOperatorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	operator, err := h.auth.CreateOperator(c.UserContext(), service.OperatorInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.OperatorRole(strings.ToUpper(string(req.Role))),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": operatorResponse(operator)})
}

func operatorResponse(op *domain.Operator) dto.OperatorResponse {
	return dto.OperatorResponse{
		ID:     op.ID,
		Name:   op.Name,
		Email:  op.Email,
		Role:   op.Role,
		Active: op.Active,
	}
}
