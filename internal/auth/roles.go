package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobticket-service/internal/domain"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.OperatorRole) fiber.Handler {
	allowedSet := make(map[domain.OperatorRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireOperator admits human operators and admins.
func RequireOperator() fiber.Handler {
	return RequireRole(domain.OperatorRoleOperator, domain.OperatorRoleAdmin)
}

// RequireBackend admits the print backend status feed.
func RequireBackend() fiber.Handler {
	return RequireRole(domain.OperatorRoleBackend)
}
