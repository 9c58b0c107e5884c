package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// imageField is the multipart part carrying the certificate image.
const imageField = "certificateImage"

// CertificateHandler handles HTTP requests for certificate upload,
// retrieval and verification.
type CertificateHandler struct {
	service       ports.CertificateService
	issuer        ports.CertificateIssuer
	maxImageBytes int64
}

func NewCertificateHandler(service ports.CertificateService, maxImageBytes int64) *CertificateHandler {
	return &CertificateHandler{service: service, maxImageBytes: maxImageBytes}
}

// WithIssuer enables Issue.
func (h *CertificateHandler) WithIssuer(issuer ports.CertificateIssuer) *CertificateHandler {
	h.issuer = issuer
	return h
}

// Upload stores a certificate image. Nothing is linked to the certificate id;
// the returned hash is handed to an issuing client.
//
// @Summary      Upload a certificate image
// @Tags         certificates
// @Accept       mpfd
// @Produce      json
// @Param        certificateImage  formData  file    true  "Certificate image (max 5MB)"
// @Param        certificateId     formData  string  true  "Certificate id"
// @Param        studentName       formData  string  true  "Student name"
// @Param        courseName        formData  string  true  "Course name"
// @Param        issueDate         formData  string  true  "Issue date"
// @Success      200               {object}  uploadCertificateResponse
// @Failure      400               {object}  errorResponse
// @Failure      413               {object}  errorResponse
// @Failure      429               {object}  errorResponse
// @Failure      502               {object}  errorResponse
// @Router       /api/certificate [post]
func (h *CertificateHandler) Upload(c echo.Context) error {
	input, err := h.bindUpload(c)
	if err != nil {
		return err
	}

	ref, err := h.service.Store(c.Request().Context(), input)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toUploadResponse(ref))
}

// Issue stores a certificate image and links it to its certificate id on
// behalf of the authenticated teacher.
//
// @Summary      Issue a certificate
// @Tags         certificates
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        certificateImage  formData  file    true  "Certificate image (max 5MB)"
// @Param        certificateId     formData  string  true  "Certificate id"
// @Param        studentName       formData  string  true  "Student name"
// @Param        courseName        formData  string  true  "Course name"
// @Param        issueDate         formData  string  true  "Issue date"
// @Success      201               {object}  issueCertificateResponse
// @Failure      400               {object}  errorResponse
// @Failure      401               {object}  errorResponse
// @Failure      403               {object}  errorResponse
// @Failure      404               {object}  errorResponse
// @Failure      409               {object}  errorResponse
// @Failure      413               {object}  errorResponse
// @Failure      502               {object}  errorResponse
// @Router       /api/certificates [post]
func (h *CertificateHandler) Issue(c echo.Context) error {
	if h.issuer == nil {
		return echo.ErrNotFound
	}
	subject, err := ctxClaims(c)
	if err != nil {
		return err
	}
	identity, err := domain.NormalizeIdentity(subject)
	if err != nil {
		return fmt.Errorf("%w: token subject is not an identity", domain.ErrForbidden)
	}

	input, err := h.bindUpload(c)
	if err != nil {
		return err
	}

	result, err := h.issuer.Issue(c.Request().Context(), identity, input)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toIssueResponse(result))
}

func (h *CertificateHandler) bindUpload(c echo.Context) (ports.RegisterCertificateInput, error) {
	var form uploadCertificateForm
	if err := c.Bind(&form); err != nil {
		return ports.RegisterCertificateInput{}, err
	}
	if err := c.Validate(&form); err != nil {
		return ports.RegisterCertificateInput{}, err
	}

	image, err := h.readImage(c)
	if err != nil {
		return ports.RegisterCertificateInput{}, err
	}

	return ports.RegisterCertificateInput{
		CertificateID: form.CertificateID,
		StudentName:   form.StudentName,
		CourseName:    form.CourseName,
		IssueDate:     form.IssueDate,
		Image:         image,
	}, nil
}

// readImage returns the uploaded image, or nil when the part is absent so
// the workflow can report every missing field at once.
func (h *CertificateHandler) readImage(c echo.Context) ([]byte, error) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart payload")
	}
	if h.maxImageBytes > 0 && fh.Size > h.maxImageBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	r := io.Reader(f)
	if h.maxImageBytes > 0 {
		r = io.LimitReader(f, h.maxImageBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if h.maxImageBytes > 0 && int64(len(data)) > h.maxImageBytes {
		return nil, domain.ErrPayloadTooLarge
	}
	return data, nil
}

// Retrieve streams the raw image stored under a content reference. Every
// failure is a 500 carrying the message of its error kind.
//
// @Summary      Retrieve a certificate image
// @Tags         certificates
// @Produce      image/png,image/jpeg,image/gif,image/webp
// @Param        ref  path      string  true  "Content reference"
// @Success      200  {file}    binary
// @Failure      500  {object}  errorResponse
// @Router       /api/certificate/{ref} [get]
func (h *CertificateHandler) Retrieve(c echo.Context) error {
	ref := domain.BlobReference(c.Param("ref"))
	data, err := h.service.Retrieve(c.Request().Context(), ref)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, retrievalMessage(err)).SetInternal(err)
	}
	return writeImage(c, ref, data)
}

func retrievalMessage(err error) string {
	if errors.Is(err, domain.ErrStorageFailure) {
		return "Error retrieving certificate"
	}
	return domain.UserMessage(err)
}

// Get returns the record linked to a certificate id.
//
// @Summary      Look up a certificate
// @Tags         certificates
// @Produce      json
// @Param        id   path      string  true  "Certificate id"
// @Success      200  {object}  certificateResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/certificates/{id} [get]
func (h *CertificateHandler) Get(c echo.Context) error {
	rec, err := h.service.Lookup(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCertificateResponse(rec))
}

// Image returns the image linked to a certificate id.
//
// @Summary      Retrieve a certificate image by id
// @Tags         certificates
// @Produce      image/png,image/jpeg,image/gif,image/webp
// @Param        id   path      string  true  "Certificate id"
// @Success      200  {file}    binary
// @Failure      404  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /api/certificates/{id}/image [get]
func (h *CertificateHandler) Image(c echo.Context) error {
	rec, data, err := h.service.RetrieveByCertificate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return writeImage(c, rec.BlobReference, data)
}

// VerifyProof checks a proof token against the ledger.
//
// @Summary      Verify a certificate proof
// @Tags         certificates
// @Produce      json
// @Param        token  path      string  true  "Proof token"
// @Success      200    {object}  certificateResponse
// @Failure      401    {object}  errorResponse
// @Failure      404    {object}  errorResponse
// @Router       /api/proofs/{token} [get]
func (h *CertificateHandler) VerifyProof(c echo.Context) error {
	rec, err := h.service.VerifyProof(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCertificateResponse(rec))
}

// writeImage renders stored bytes with a sniffed image content type. Stored
// content never changes for a reference, so it is cacheable forever.
func writeImage(c echo.Context, ref domain.BlobReference, data []byte) error {
	etag := `"` + ref.String() + `"`
	h := c.Response().Header()
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	h.Set("ETag", etag)
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, imageContentType(data), data)
}

func imageContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/*"
}
