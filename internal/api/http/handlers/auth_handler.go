package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fxp-labs/support-bridge/internal/api/dto"
	"github.com/fxp-labs/support-bridge/internal/auth"
	"github.com/fxp-labs/support-bridge/internal/config"
	apperrors "github.com/fxp-labs/support-bridge/pkg/util"
)

// AuthHandler issues operator tokens. Credentials are checked here,
// at the control-surface boundary, not in the bridge core.
type AuthHandler struct {
	tokens *auth.TokenManager
	cfg    config.AuthConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(tokens *auth.TokenManager, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{tokens: tokens, cfg: cfg}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.Password == "" {
		return apperrors.NewValidationError("name and password required", nil)
	}
	if h.cfg.OperatorPasswordHash == "" {
		return apperrors.NewUnauthorized("operator login not configured")
	}
	if req.Name != h.cfg.OperatorName {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(h.cfg.OperatorPasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{Token: token, ExpiresAt: expiresAt}})
}
