package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

const (
	identityKey = "auth_identity"
	// TokenCookie is read when no Authorization header is present.
	TokenCookie = "token"
)

// AuthMiddleware resolves the caller identity from the request credential.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := credential(c)
	if err != nil {
		return err
	}

	identity, err := m.tokens.Resolve(raw)
	if err != nil {
		return apperrors.NewUnauthenticated("invalid token")
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

func credential(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.NewUnauthenticated("invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie := strings.TrimSpace(c.Cookies(TokenCookie)); cookie != "" {
		return cookie, nil
	}
	return "", apperrors.NewUnauthenticated("missing credentials")
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}
