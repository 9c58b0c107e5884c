package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// statusByKind maps each taxonomy sentinel to its HTTP status. The first
// match wins.
var statusByKind = []struct {
	err  error
	code int
}{
	{domain.ErrMissingField, http.StatusBadRequest},
	{domain.ErrInvalidReference, http.StatusBadRequest},
	{domain.ErrInvalidIdentity, http.StatusBadRequest},
	{domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
	{domain.ErrDuplicateCertificate, http.StatusConflict},
	{domain.ErrUserExists, http.StatusConflict},
	{domain.ErrStorageFailure, http.StatusBadGateway},
	{domain.ErrBlobNotFound, http.StatusNotFound},
	{domain.ErrCertificateNotFound, http.StatusNotFound},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrInvalidSecret, http.StatusUnauthorized},
	{domain.ErrInvalidProof, http.StatusUnauthorized},
	{domain.ErrNoAccounts, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrUnknownRole, http.StatusUnprocessableEntity},
	{domain.ErrNetworkMismatch, http.StatusPreconditionFailed},
	{domain.ErrGatewayUnavailable, http.StatusServiceUnavailable},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"success": false, "message": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Success: false, Message: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, body limit, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusRequestEntityTooLarge {
			return he.Code, domain.UserMessage(domain.ErrPayloadTooLarge)
		}
		if he.Code >= http.StatusInternalServerError && he.Internal != nil {
			log.Warn().
				Err(he.Internal).
				Str("stage", string(domain.StageOf(he.Internal))).
				Str("path", c.Path()).
				Msg("request failed")
		}
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	for _, k := range statusByKind {
		if errors.Is(err, k.err) {
			if k.code >= http.StatusInternalServerError {
				log.Warn().
					Err(err).
					Str("stage", string(domain.StageOf(err))).
					Str("path", c.Path()).
					Msg("dependency failure")
			}
			return k.code, domain.UserMessage(err)
		}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, domain.GenericMessage
}
