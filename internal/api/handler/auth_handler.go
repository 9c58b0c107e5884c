package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// TokenSigner mints a bearer token for subject with role.
type TokenSigner func(subject, role string) (string, error)

type AuthHandler struct {
	authService ports.AuthService
	signToken   TokenSigner
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// WithTokens makes Login return a bearer token signed by sign.
func (h *AuthHandler) WithTokens(sign TokenSigner) *AuthHandler {
	h.signToken = sign
	return h
}

// Login verifies an identity's secret against its authorization record.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Identity and secret"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /api/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	identity, err := domain.NormalizeIdentity(req.Identity)
	if err != nil {
		return err
	}

	result, err := h.authService.Login(c.Request().Context(), identity, req.Secret)
	if err != nil {
		return err
	}

	resp := toLoginResponse(result)
	if h.signToken != nil {
		token, err := h.signToken(result.Identity.String(), result.Role.String())
		if err != nil {
			return fmt.Errorf("sign login token: %w", err)
		}
		resp.Token = token
	}
	return c.JSON(http.StatusOK, resp)
}

// RegisterUser creates the authorization record for an identity.
//
// @Summary      Register a user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerUserRequest  true  "User registration details"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/users [post]
func (h *AuthHandler) RegisterUser(c echo.Context) error {
	subject, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req registerUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	identity, err := domain.NormalizeIdentity(req.Identity)
	if err != nil {
		return err
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return err
	}

	rec, err := h.authService.RegisterUser(c.Request().Context(), identity, req.DisplayName, req.Secret, role)
	if err != nil {
		return err
	}

	h.log.Info().
		Str("identity", rec.Identity.String()).
		Str("role", rec.Role.String()).
		Str("registered_by", subject).
		Msg("user registered")
	return c.JSON(http.StatusCreated, toUserResponse(rec))
}
