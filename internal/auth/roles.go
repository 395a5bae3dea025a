package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AhmadRadith/jycc-sub001/internal/policy"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

// RequireOperation rejects callers whose role is not granted op.
// Ticket-dependent checks still run in the service layer.
func RequireOperation(rbac *policy.RBAC, op policy.Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		if !rbac.Allowed(identity.Role, op) {
			return apperrors.NewAccessDenied("role " + identity.Role.String() + " may not " + string(op))
		}
		return c.Next()
	}
}
