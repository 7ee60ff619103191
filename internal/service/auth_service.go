package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/auth"
	"github.com/spec-kit/jobticket-service/internal/config"
	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/repository"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

// AuthService coordinates operator login and provisioning.
type AuthService struct {
	operators  repository.OperatorRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, operators repository.OperatorRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	return &AuthService{
		operators:  operators,
		tokenMgr:   tokens,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// OperatorInput describes a new operator account.
type OperatorInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.OperatorRole
}

// CreateOperator provisions an operator account.
func (s *AuthService) CreateOperator(ctx context.Context, in OperatorInput) (*domain.Operator, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || len(in.Password) < 8 {
		return nil, apperrors.NewValidationError("invalid operator", map[string]any{
			"email":    "required",
			"password": "at least 8 characters",
		})
	}
	switch in.Role {
	case domain.OperatorRoleOperator, domain.OperatorRoleAdmin, domain.OperatorRoleBackend:
	default:
		return nil, apperrors.NewValidationError("invalid operator", map[string]any{"role": "unknown role"})
	}

	if _, err := s.operators.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	operator := &domain.Operator{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		Active:       true,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, err
	}
	return operator, nil
}

// Login authenticates an operator and returns a role-bearing token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Operator, string, time.Time, error) {
	operator, err := s.operators.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if !operator.Active {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := auth.ComparePassword(operator.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	if auth.NeedsRehash(operator.PasswordHash, s.bcryptCost) {
		if hash, err := auth.HashPassword(password, s.bcryptCost); err == nil {
			operator.PasswordHash = hash
			if err := s.operators.Update(ctx, operator); err != nil {
				s.logger.Warn("password rehash not saved", zap.String("operator_id", operator.ID), zap.Error(err))
			}
		}
	}

	token, exp, err := s.tokenMgr.GenerateToken(operator.ID, operator.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return operator, token, exp, nil
}
