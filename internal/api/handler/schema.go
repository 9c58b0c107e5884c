package handler

import (
	"time"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// errorResponse documents the failure envelope rendered by the API error
// handler.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- Request / Response types ---

// uploadCertificateForm is bound from the multipart upload. The image part is
// read separately.
type uploadCertificateForm struct {
	CertificateID string `form:"certificateId" validate:"required"`
	StudentName   string `form:"studentName"   validate:"required"`
	CourseName    string `form:"courseName"    validate:"required"`
	IssueDate     string `form:"issueDate"     validate:"required"`
}

type uploadCertificateResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	IPFSHash string `json:"ipfsHash"`
}

type issueCertificateResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	IPFSHash      string `json:"ipfsHash"`
	CertificateID string `json:"certificateId"`
	Proof         string `json:"proof,omitempty"`
}

type certificateResponse struct {
	Success       bool      `json:"success"`
	CertificateID string    `json:"certificateId"`
	StudentName   string    `json:"studentName"`
	CourseName    string    `json:"courseName"`
	IssueDate     string    `json:"issueDate"`
	IPFSHash      string    `json:"ipfsHash"`
	IssuedBy      string    `json:"issuedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Links         certLinks `json:"_links"`
}

type certLinks struct {
	Image string `json:"image"`
}

type loginRequest struct {
	Identity string `json:"identity" validate:"required"`
	Secret   string `json:"secret"   validate:"required"`
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Identity string `json:"identity"`
	Role     uint8  `json:"role"`
	RoleName string `json:"roleName"`
	Redirect string `json:"redirect"`
	// Token is a bearer token for the issuing routes, empty when token
	// signing is disabled.
	Token string `json:"token,omitempty"`
}

type registerUserRequest struct {
	Identity    string `json:"identity"    validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
	Secret      string `json:"secret"      validate:"required,min=8"`
	Role        string `json:"role"        validate:"required,oneof=0 1 student teacher"`
}

type userResponse struct {
	Success     bool      `json:"success"`
	Identity    string    `json:"identity"`
	DisplayName string    `json:"displayName"`
	Role        uint8     `json:"role"`
	RoleName    string    `json:"roleName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// --- Service result → HTTP response ---

func toUploadResponse(ref domain.BlobReference) uploadCertificateResponse {
	return uploadCertificateResponse{
		Success:  true,
		Message:  "Certificate stored successfully",
		IPFSHash: ref.String(),
	}
}

func toIssueResponse(r *ports.RegisterCertificateResult) issueCertificateResponse {
	return issueCertificateResponse{
		Success:       true,
		Message:       "Certificate issued successfully",
		IPFSHash:      r.BlobReference.String(),
		CertificateID: r.CertificateID,
		Proof:         r.Proof,
	}
}

func toCertificateResponse(rec *domain.CertificateRecord) certificateResponse {
	return certificateResponse{
		Success:       true,
		CertificateID: rec.CertificateID,
		StudentName:   rec.StudentName,
		CourseName:    rec.CourseName,
		IssueDate:     rec.IssueDate,
		IPFSHash:      rec.BlobReference.String(),
		IssuedBy:      rec.IssuedBy.String(),
		CreatedAt:     rec.CreatedAt.UTC(),
		Links: certLinks{
			Image: "/api/certificate/" + rec.BlobReference.String(),
		},
	}
}

func toLoginResponse(r *ports.LoginResult) loginResponse {
	return loginResponse{
		Success:  r.Success,
		Identity: r.Identity.String(),
		Role:     uint8(r.Role),
		RoleName: r.Role.String(),
		Redirect: r.Redirect,
	}
}

func toUserResponse(rec *domain.AuthorizationRecord) userResponse {
	return userResponse{
		Success:     true,
		Identity:    rec.Identity.String(),
		DisplayName: rec.DisplayName,
		Role:        uint8(rec.Role),
		RoleName:    rec.Role.String(),
		CreatedAt:   rec.CreatedAt.UTC(),
	}
}
