package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// AuthHandler exposes registration and login endpoints.
type AuthHandler struct {
	identity *service.IdentityService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(identity *service.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

// Register handles POST /api/identity/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	issued, err := h.identity.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}

	return c.JSON(dto.NewTokenResponse(issued))
}

// Login handles POST /api/identity/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	issued, err := h.identity.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}

	return c.JSON(dto.NewTokenResponse(issued))
}

// Me handles GET /api/identity/me for bearer-authenticated callers.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	claims := make([]dto.ClaimResponse, 0, len(principal.Claims))
	for _, claim := range principal.Claims {
		claims = append(claims, dto.ClaimResponse{Type: claim.Type, Value: claim.Value})
	}

	return c.JSON(dto.UserTokenResponse{
		ID:     principal.User.ID,
		Email:  principal.User.Email,
		Claims: claims,
	})
}

// mapAuthError translates service failure kinds into boundary errors. The
// collapsed credential failures stay collapsed here.
func mapAuthError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewInvalidCredentials()
	case errors.Is(err, service.ErrAccountNotPermitted):
		return apperrors.NewAccountNotPermitted()
	case errors.Is(err, service.ErrEmailTaken):
		return apperrors.NewValidationError("email already registered", nil)
	case errors.Is(err, service.ErrInvalidEmail):
		return apperrors.NewValidationError("a valid email is required", nil)
	case errors.Is(err, service.ErrWeakPassword):
		return apperrors.NewValidationError("password does not meet requirements", nil)
	default:
		return apperrors.MapError(err)
	}
}
