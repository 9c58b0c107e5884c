package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// DefaultMaxImageBytes is the upload limit used when none is configured.
const DefaultMaxImageBytes = 5 << 20

// CertificateService implements the store-then-link registration workflow
// and the public retrieval workflow.
type CertificateService struct {
	store         ports.BlobStore
	ledger        ports.CertificateLedger
	proofs        *ProofSigner
	maxImageBytes int64
	metrics       ports.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

func NewCertificateService(store ports.BlobStore, ledger ports.CertificateLedger, proofs *ProofSigner, maxImageBytes int64, logger zerolog.Logger) *CertificateService {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &CertificateService{
		store:         store,
		ledger:        ledger,
		proofs:        proofs,
		maxImageBytes: maxImageBytes,
		metrics:       nopMetrics{},
		logger:        logger,
		now:           time.Now,
	}
}

// WithMetrics reports workflow outcomes to m.
func (s *CertificateService) WithMetrics(m ports.Metrics) *CertificateService {
	if m != nil {
		s.metrics = m
	}
	return s
}

// Store validates the input like Register and stores the image without
// touching the ledger. The returned reference is not linked to any
// certificate id.
func (s *CertificateService) Store(ctx context.Context, input ports.RegisterCertificateInput) (domain.BlobReference, error) {
	if err := validateRegistration(input, s.maxImageBytes); err != nil {
		s.metrics.RegisterFailed(domain.StageValidation)
		return "", domain.AtStage(domain.StageValidation, err)
	}
	ref, err := s.put(ctx, input)
	if err != nil {
		return "", err
	}
	s.logger.Info().
		Str("certificate_id", strings.TrimSpace(input.CertificateID)).
		Str("blob_reference", ref.String()).
		Msg("certificate image stored")
	return ref, nil
}

func (s *CertificateService) put(ctx context.Context, input ports.RegisterCertificateInput) (domain.BlobReference, error) {
	ref, err := s.store.Put(ctx, input.Image)
	if err != nil {
		s.logger.Error().Err(err).Str("certificate_id", input.CertificateID).Msg("failed to store certificate image")
		s.metrics.RegisterFailed(domain.StageStore)
		return "", domain.AtStage(domain.StageStore, domain.Wrap(domain.ErrStorageFailure, err))
	}
	s.metrics.BlobStored(len(input.Image))
	return ref, nil
}

// Register validates the input, stores the image and only then links the
// certificate id to the returned reference. A failed Put never reaches the
// ledger; a failed link leaves the stored blob in place.
func (s *CertificateService) Register(ctx context.Context, input ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
	start := s.now()

	if err := validateRegistration(input, s.maxImageBytes); err != nil {
		s.metrics.RegisterFailed(domain.StageValidation)
		return nil, domain.AtStage(domain.StageValidation, err)
	}

	ref, err := s.put(ctx, input)
	if err != nil {
		return nil, err
	}

	rec := &domain.CertificateRecord{
		CertificateID: strings.TrimSpace(input.CertificateID),
		StudentName:   strings.TrimSpace(input.StudentName),
		CourseName:    strings.TrimSpace(input.CourseName),
		IssueDate:     strings.TrimSpace(input.IssueDate),
		BlobReference: ref,
		IssuedBy:      input.IssuedBy,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.ledger.Create(ctx, rec); err != nil {
		s.metrics.RegisterFailed(domain.StageLink)
		if errors.Is(err, domain.ErrDuplicateCertificate) {
			s.logger.Info().Str("certificate_id", rec.CertificateID).Str("blob_reference", ref.String()).Msg("duplicate certificate id, stored blob left unlinked")
			return nil, domain.AtStage(domain.StageLink, domain.ErrDuplicateCertificate)
		}
		s.logger.Error().Err(err).Str("certificate_id", rec.CertificateID).Str("blob_reference", ref.String()).Msg("failed to link certificate record")
		return nil, domain.AtStage(domain.StageLink, domain.Wrap(domain.ErrStorageFailure, err))
	}

	result := &ports.RegisterCertificateResult{CertificateID: rec.CertificateID, BlobReference: ref}
	if s.proofs != nil {
		proof, err := s.proofs.Issue(rec)
		if err != nil {
			// the record is already linked; a missing proof does not undo it
			s.logger.Warn().Err(err).Str("certificate_id", rec.CertificateID).Msg("failed to issue proof")
		} else {
			result.Proof = proof
		}
	}

	s.metrics.Registered(s.now().Sub(start))
	s.logger.Info().
		Str("certificate_id", rec.CertificateID).
		Str("blob_reference", ref.String()).
		Str("issued_by", rec.IssuedBy.String()).
		Msg("certificate registered")
	return result, nil
}

// Retrieve returns the stored bytes for ref. No authorization is applied.
func (s *CertificateService) Retrieve(ctx context.Context, ref domain.BlobReference) ([]byte, error) {
	if _, err := domain.ParseReference(string(ref)); err != nil {
		s.metrics.Retrieved("invalid")
		return nil, domain.AtStage(domain.StageLookup, err)
	}
	data, err := s.store.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			s.metrics.Retrieved("not_found")
			return nil, domain.AtStage(domain.StageStore, err)
		}
		s.metrics.Retrieved("error")
		s.logger.Error().Err(err).Str("blob_reference", ref.String()).Msg("failed to retrieve certificate image")
		return nil, domain.AtStage(domain.StageStore, domain.Wrap(domain.ErrStorageFailure, err))
	}
	s.metrics.Retrieved("ok")
	return data, nil
}

func (s *CertificateService) Lookup(ctx context.Context, certificateID string) (*domain.CertificateRecord, error) {
	id := strings.TrimSpace(certificateID)
	if id == "" {
		return nil, domain.AtStage(domain.StageValidation, missingFields([]string{"certificateId"}))
	}
	rec, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrCertificateNotFound) {
			return nil, domain.AtStage(domain.StageLookup, err)
		}
		s.logger.Error().Err(err).Str("certificate_id", id).Msg("failed to look up certificate")
		return nil, domain.AtStage(domain.StageLookup, domain.Wrap(domain.ErrStorageFailure, err))
	}
	return rec, nil
}

// RetrieveByCertificate resolves an id to its record and the linked image.
func (s *CertificateService) RetrieveByCertificate(ctx context.Context, certificateID string) (*domain.CertificateRecord, []byte, error) {
	rec, err := s.Lookup(ctx, certificateID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.Retrieve(ctx, rec.BlobReference)
	if err != nil {
		return nil, nil, err
	}
	return rec, data, nil
}

// VerifyProof checks a proof token and confirms the ledger still links its
// certificate id to the same reference.
func (s *CertificateService) VerifyProof(ctx context.Context, token string) (*domain.CertificateRecord, error) {
	if s.proofs == nil {
		return nil, domain.AtStage(domain.StageValidation, domain.ErrInvalidProof)
	}
	claims, err := s.proofs.Verify(token)
	if err != nil {
		return nil, domain.AtStage(domain.StageValidation, err)
	}
	rec, err := s.Lookup(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if string(rec.BlobReference) != claims.BlobReference {
		s.logger.Warn().Str("certificate_id", rec.CertificateID).Msg("proof reference does not match ledger")
		return nil, domain.AtStage(domain.StageLookup, domain.ErrInvalidProof)
	}
	return rec, nil
}

func validateRegistration(input ports.RegisterCertificateInput, maxImageBytes int64) error {
	fields := []struct {
		name  string
		value string
	}{
		{"certificateId", input.CertificateID},
		{"studentName", input.StudentName},
		{"courseName", input.CourseName},
		{"issueDate", input.IssueDate},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(input.Image) == 0 {
		missing = append(missing, "certificateImage")
	}
	if len(missing) > 0 {
		return missingFields(missing)
	}
	if int64(len(input.Image)) > maxImageBytes {
		return domain.ErrPayloadTooLarge
	}
	return nil
}
