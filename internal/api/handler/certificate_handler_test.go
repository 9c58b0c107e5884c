package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type stubCertificateService struct {
	storeFn       func(ctx context.Context, input ports.RegisterCertificateInput) (domain.BlobReference, error)
	registerFn    func(ctx context.Context, input ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error)
	retrieveFn    func(ctx context.Context, ref domain.BlobReference) ([]byte, error)
	lookupFn      func(ctx context.Context, id string) (*domain.CertificateRecord, error)
	byCertFn      func(ctx context.Context, id string) (*domain.CertificateRecord, []byte, error)
	verifyProofFn func(ctx context.Context, token string) (*domain.CertificateRecord, error)
}

func (s *stubCertificateService) Store(ctx context.Context, input ports.RegisterCertificateInput) (domain.BlobReference, error) {
	return s.storeFn(ctx, input)
}

func (s *stubCertificateService) Register(ctx context.Context, input ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
	return s.registerFn(ctx, input)
}

func (s *stubCertificateService) Retrieve(ctx context.Context, ref domain.BlobReference) ([]byte, error) {
	return s.retrieveFn(ctx, ref)
}

func (s *stubCertificateService) Lookup(ctx context.Context, id string) (*domain.CertificateRecord, error) {
	return s.lookupFn(ctx, id)
}

func (s *stubCertificateService) RetrieveByCertificate(ctx context.Context, id string) (*domain.CertificateRecord, []byte, error) {
	return s.byCertFn(ctx, id)
}

func (s *stubCertificateService) VerifyProof(ctx context.Context, token string) (*domain.CertificateRecord, error) {
	return s.verifyProofFn(ctx, token)
}

type stubIssuer struct {
	issueFn func(ctx context.Context, identity domain.Identity, input ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error)
}

func (s *stubIssuer) Issue(ctx context.Context, identity domain.Identity, input ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
	return s.issueFn(ctx, identity, input)
}

func multipartUpload(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if image != nil {
		part, err := w.CreateFormFile(imageField, "certificate.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return body, w.FormDataContentType()
}

func uploadContext(t *testing.T, e *echo.Echo, fields map[string]string, image []byte) (echo.Context, *httptest.ResponseRecorder) {
	body, contentType := multipartUpload(t, fields, image)
	req := httptest.NewRequest(http.MethodPost, "/api/certificate", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// issueContext builds a request as it looks after the Auth middleware ran.
func issueContext(t *testing.T, e *echo.Echo, subject, role string) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := uploadContext(t, e, validFields(), pngPixel)
	if subject != "" {
		c.Set("subject", subject)
		c.Set("role", role)
	}
	return c, rec
}

func validFields() map[string]string {
	return map[string]string{
		"certificateId": "CERT-001",
		"studentName":   "Ada Lovelace",
		"courseName":    "Analytical Engines",
		"issueDate":     "2024-05-01",
	}
}

func TestCertificateHandler_Upload_Success(t *testing.T) {
	e := newTestEcho()
	ref, _ := domain.ComputeReference(pngPixel)
	stub := &stubCertificateService{
		storeFn: func(ctx context.Context, input ports.RegisterCertificateInput) (domain.BlobReference, error) {
			if input.CertificateID != "CERT-001" || input.StudentName != "Ada Lovelace" || input.IssueDate != "2024-05-01" {
				t.Fatalf("unexpected input: %+v", input)
			}
			if !bytes.Equal(input.Image, pngPixel) {
				t.Fatalf("image bytes not forwarded intact")
			}
			return ref, nil
		},
		registerFn: func(context.Context, ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
			t.Fatalf("anonymous uploads must not link a record")
			return nil, nil
		},
	}
	handler := NewCertificateHandler(stub, 5<<20)

	c, rec := uploadContext(t, e, validFields(), pngPixel)
	if err := handler.Upload(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	want := map[string]any{
		"success":  true,
		"message":  "Certificate stored successfully",
		"ipfsHash": ref.String(),
	}
	if len(body) != len(want) {
		t.Fatalf("unexpected fields: %v", body)
	}
	for k, v := range want {
		if body[k] != v {
			t.Fatalf("%s = %v, want %v", k, body[k], v)
		}
	}
}

func TestCertificateHandler_Upload_MissingField(t *testing.T) {
	e := newTestEcho()
	stub := &stubCertificateService{
		storeFn: func(context.Context, ports.RegisterCertificateInput) (domain.BlobReference, error) {
			t.Fatalf("service should not be called")
			return "", nil
		},
	}
	fields := validFields()
	delete(fields, "courseName")

	c, _ := uploadContext(t, e, fields, pngPixel)
	err := NewCertificateHandler(stub, 5<<20).Upload(c)
	if !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestCertificateHandler_Upload_MissingImageReachesWorkflow(t *testing.T) {
	e := newTestEcho()
	stub := &stubCertificateService{
		storeFn: func(ctx context.Context, input ports.RegisterCertificateInput) (domain.BlobReference, error) {
			if input.Image != nil {
				t.Fatalf("expected nil image")
			}
			return "", domain.AtStage(domain.StageValidation, domain.ErrMissingField)
		},
	}
	c, _ := uploadContext(t, e, validFields(), nil)
	err := NewCertificateHandler(stub, 5<<20).Upload(c)
	if !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestCertificateHandler_Upload_TooLarge(t *testing.T) {
	e := newTestEcho()
	stub := &stubCertificateService{
		storeFn: func(context.Context, ports.RegisterCertificateInput) (domain.BlobReference, error) {
			t.Fatalf("service should not be called")
			return "", nil
		},
	}
	c, _ := uploadContext(t, e, validFields(), bytes.Repeat([]byte{0xff}, 65))
	err := NewCertificateHandler(stub, 64).Upload(c)
	if !errors.Is(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestCertificateHandler_Issue_Success(t *testing.T) {
	e := newTestEcho()
	ref, _ := domain.ComputeReference(pngPixel)
	want, _ := domain.NormalizeIdentity("0x00000000000000000000000000000000000000aa")
	issuer := &stubIssuer{
		issueFn: func(ctx context.Context, identity domain.Identity, input ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
			if identity != want {
				t.Fatalf("identity not normalized: %s", identity)
			}
			if input.CertificateID != "CERT-001" || !bytes.Equal(input.Image, pngPixel) {
				t.Fatalf("unexpected input: %+v", input)
			}
			return &ports.RegisterCertificateResult{CertificateID: input.CertificateID, BlobReference: ref, Proof: "tok"}, nil
		},
	}
	handler := NewCertificateHandler(&stubCertificateService{}, 5<<20).WithIssuer(issuer)

	c, rec := issueContext(t, e, " 0X00000000000000000000000000000000000000AA ", "teacher")
	if err := handler.Issue(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp issueCertificateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Success || resp.Message != "Certificate issued successfully" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if resp.IPFSHash != ref.String() || resp.CertificateID != "CERT-001" || resp.Proof != "tok" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestCertificateHandler_Issue_RequiresClaims(t *testing.T) {
	e := newTestEcho()
	issuer := &stubIssuer{
		issueFn: func(context.Context, domain.Identity, ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
			t.Fatalf("issuer should not be called")
			return nil, nil
		},
	}
	c, _ := issueContext(t, e, "", "")
	err := NewCertificateHandler(&stubCertificateService{}, 5<<20).WithIssuer(issuer).Issue(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestCertificateHandler_Issue_SubjectNotAnIdentity(t *testing.T) {
	e := newTestEcho()
	issuer := &stubIssuer{
		issueFn: func(context.Context, domain.Identity, ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
			t.Fatalf("issuer should not be called")
			return nil, nil
		},
	}
	c, _ := issueContext(t, e, "ops team", "admin")
	err := NewCertificateHandler(&stubCertificateService{}, 5<<20).WithIssuer(issuer).Issue(c)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCertificateHandler_Issue_PropagatesWorkflowErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"student", domain.AtStage(domain.StageAuthorization, domain.ErrForbidden)},
		{"duplicate", domain.AtStage(domain.StageLink, domain.ErrDuplicateCertificate)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			issuer := &stubIssuer{
				issueFn: func(context.Context, domain.Identity, ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
					return nil, tt.err
				},
			}
			c, _ := issueContext(t, e, "0x00000000000000000000000000000000000000aa", "student")
			err := NewCertificateHandler(&stubCertificateService{}, 5<<20).WithIssuer(issuer).Issue(c)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestCertificateHandler_Issue_DisabledWithoutIssuer(t *testing.T) {
	e := newTestEcho()
	c, _ := issueContext(t, e, "0x00000000000000000000000000000000000000aa", "teacher")
	err := NewCertificateHandler(&stubCertificateService{}, 5<<20).Issue(c)
	if !errors.Is(err, echo.ErrNotFound) {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestCertificateHandler_Retrieve_SniffsContentType(t *testing.T) {
	e := newTestEcho()
	ref, _ := domain.ComputeReference(pngPixel)
	stub := &stubCertificateService{
		retrieveFn: func(ctx context.Context, got domain.BlobReference) ([]byte, error) {
			if got != ref {
				t.Fatalf("unexpected ref %s", got)
			}
			return pngPixel, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/certificate/"+ref.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("ref")
	c.SetParamValues(ref.String())

	if err := NewCertificateHandler(stub, 0).Retrieve(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), pngPixel) {
		t.Fatalf("body differs from stored bytes")
	}
	if rec.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag")
	}
}

func TestCertificateHandler_Retrieve_FallbackContentType(t *testing.T) {
	e := newTestEcho()
	stub := &stubCertificateService{
		retrieveFn: func(context.Context, domain.BlobReference) ([]byte, error) {
			return []byte("plain bytes"), nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("ref")
	c.SetParamValues("bafkreiexample")

	if err := NewCertificateHandler(stub, 0).Retrieve(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/*" {
		t.Fatalf("expected image/* fallback, got %q", ct)
	}
}

func TestCertificateHandler_Retrieve_NotModified(t *testing.T) {
	e := newTestEcho()
	ref, _ := domain.ComputeReference(pngPixel)
	stub := &stubCertificateService{
		retrieveFn: func(context.Context, domain.BlobReference) ([]byte, error) { return pngPixel, nil },
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", `"`+ref.String()+`"`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("ref")
	c.SetParamValues(ref.String())

	if err := NewCertificateHandler(stub, 0).Retrieve(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rec.Code)
	}
}

func TestCertificateHandler_Retrieve_NotFound(t *testing.T) {
	e := newTestEcho()
	stub := &stubCertificateService{
		retrieveFn: func(context.Context, domain.BlobReference) ([]byte, error) {
			return nil, domain.AtStage(domain.StageStore, domain.ErrBlobNotFound)
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("ref")
	c.SetParamValues("bafkreiexample")

	err := NewCertificateHandler(stub, 0).Retrieve(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T %v", err, err)
	}
	if he.Code != http.StatusInternalServerError || he.Message != "Certificate image not found" {
		t.Fatalf("unexpected error: %d %v", he.Code, he.Message)
	}
	if !errors.Is(he.Internal, domain.ErrBlobNotFound) {
		t.Fatalf("cause lost: %v", he.Internal)
	}
}

func TestCertificateHandler_Retrieve_StorageFailure(t *testing.T) {
	e := newTestEcho()
	stub := &stubCertificateService{
		retrieveFn: func(context.Context, domain.BlobReference) ([]byte, error) {
			return nil, domain.AtStage(domain.StageStore, domain.ErrStorageFailure)
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("ref")
	c.SetParamValues("bafkreiexample")

	err := NewCertificateHandler(stub, 0).Retrieve(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError || he.Message != "Error retrieving certificate" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCertificateHandler_Get(t *testing.T) {
	e := newTestEcho()
	rec0 := &domain.CertificateRecord{
		CertificateID: "CERT-001",
		StudentName:   "Ada Lovelace",
		CourseName:    "Analytical Engines",
		IssueDate:     "2024-05-01",
		BlobReference: "bafkreiexample",
		CreatedAt:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	stub := &stubCertificateService{
		lookupFn: func(ctx context.Context, id string) (*domain.CertificateRecord, error) {
			if id != "CERT-001" {
				return nil, domain.ErrCertificateNotFound
			}
			return rec0, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("CERT-001")

	if err := NewCertificateHandler(stub, 0).Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp certificateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.IPFSHash != "bafkreiexample" || resp.Links.Image != "/api/certificate/bafkreiexample" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestCertificateHandler_Image(t *testing.T) {
	e := newTestEcho()
	stub := &stubCertificateService{
		byCertFn: func(ctx context.Context, id string) (*domain.CertificateRecord, []byte, error) {
			return &domain.CertificateRecord{CertificateID: id, BlobReference: "bafkreiexample"}, pngPixel, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("CERT-001")

	if err := NewCertificateHandler(stub, 0).Image(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Header().Get(echo.HeaderContentType) != "image/png" {
		t.Fatalf("unexpected content type %q", rec.Header().Get(echo.HeaderContentType))
	}
}

func TestCertificateHandler_VerifyProof_Invalid(t *testing.T) {
	e := newTestEcho()
	stub := &stubCertificateService{
		verifyProofFn: func(context.Context, string) (*domain.CertificateRecord, error) {
			return nil, domain.ErrInvalidProof
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues("garbage")

	if err := NewCertificateHandler(stub, 0).VerifyProof(c); !errors.Is(err, domain.ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof, got %v", err)
	}
}
