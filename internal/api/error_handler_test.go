package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

func renderError(t *testing.T, err error) (int, errorResponse) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return rec.Code, resp
}

func TestHTTPErrorHandler_Taxonomy(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.AtStage(domain.StageValidation, fmt.Errorf("%w: certificateId", domain.ErrMissingField)), http.StatusBadRequest},
		{domain.AtStage(domain.StageValidation, domain.ErrPayloadTooLarge), http.StatusRequestEntityTooLarge},
		{domain.AtStage(domain.StageLink, domain.ErrDuplicateCertificate), http.StatusConflict},
		{domain.AtStage(domain.StageStore, domain.Wrap(domain.ErrStorageFailure, errors.New("disk full"))), http.StatusBadGateway},
		{domain.AtStage(domain.StageStore, domain.ErrBlobNotFound), http.StatusNotFound},
		{domain.ErrCertificateNotFound, http.StatusNotFound},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrInvalidSecret, http.StatusUnauthorized},
		{domain.ErrUnknownRole, http.StatusUnprocessableEntity},
		{domain.ErrGatewayUnavailable, http.StatusServiceUnavailable},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrUserExists, http.StatusConflict},
		{domain.ErrInvalidReference, http.StatusBadRequest},
		{domain.ErrNetworkMismatch, http.StatusPreconditionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			code, resp := renderError(t, tc.err)
			if code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, code)
			}
			if resp.Success {
				t.Fatalf("success must be false")
			}
			if resp.Message != domain.UserMessage(tc.err) {
				t.Fatalf("expected %q, got %q", domain.UserMessage(tc.err), resp.Message)
			}
		})
	}
}

func TestHTTPErrorHandler_DuplicateIsNotStorageFailure(t *testing.T) {
	_, dup := renderError(t, domain.ErrDuplicateCertificate)
	_, store := renderError(t, domain.Wrap(domain.ErrStorageFailure, errors.New("io")))
	if dup.Message == store.Message {
		t.Fatalf("duplicate and storage failure share message %q", dup.Message)
	}
}

func TestHTTPErrorHandler_UnexpectedError(t *testing.T) {
	code, resp := renderError(t, errors.New("boom"))
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
	if resp.Message != "Something went wrong!" {
		t.Fatalf("internal detail leaked: %q", resp.Message)
	}
}

func TestHTTPErrorHandler_EchoError(t *testing.T) {
	code, resp := renderError(t, echo.NewHTTPError(http.StatusTooManyRequests, "slow down"))
	if code != http.StatusTooManyRequests || resp.Message != "slow down" {
		t.Fatalf("unexpected %d %q", code, resp.Message)
	}

	code, resp = renderError(t, echo.ErrStatusRequestEntityTooLarge)
	if code != http.StatusRequestEntityTooLarge || resp.Message != domain.UserMessage(domain.ErrPayloadTooLarge) {
		t.Fatalf("unexpected %d %q", code, resp.Message)
	}
}
