package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/repository"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Operator *domain.Operator
	Role     domain.OperatorRole
}

// OperatorID returns the caller's operator id, "" for the print backend.
func (p *Principal) OperatorID() string {
	if p == nil || p.Operator == nil {
		return ""
	}
	return p.Operator.ID
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens       *TokenManager
	operators    repository.OperatorRepository
	backendToken string
}

// NewAuthMiddleware constructs middleware. backendToken, when set, is a
// static bearer token accepted for the print backend status feed.
func NewAuthMiddleware(tokens *TokenManager, operators repository.OperatorRepository, backendToken string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, operators: operators, backendToken: backendToken}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}

	if m.backendToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(m.backendToken)) == 1 {
		c.Locals(principalKey, &Principal{Role: domain.OperatorRoleBackend})
		return c.Next()
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	operator, err := m.operators.GetByID(c.UserContext(), claims.OperatorID())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("operator not found")
		}
		return apperrors.MapError(err)
	}
	if !operator.Active {
		return apperrors.NewUnauthorized("operator inactive")
	}

	c.Locals(principalKey, &Principal{Operator: operator, Role: operator.Role})
	return c.Next()
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return parts[1], nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
