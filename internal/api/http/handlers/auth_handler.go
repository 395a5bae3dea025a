package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/AhmadRadith/jycc-sub001/internal/api/dto"
	"github.com/AhmadRadith/jycc-sub001/internal/auth"
	"github.com/AhmadRadith/jycc-sub001/internal/service"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

// AuthHandler exposes login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login. The token is returned in the body and set
// as the session cookie.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperrors.NewInvalidInput("username and password required", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.TokenCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{
			Token:     result.Token,
			ExpiresAt: result.ExpiresAt,
			Identity:  dto.NewIdentityResponse(result.Identity),
		},
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityResponse(viewer)})
}
