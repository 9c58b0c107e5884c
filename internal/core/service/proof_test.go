package service

import (
	"errors"
	"testing"
	"time"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

func TestProofSigner_RoundTrip(t *testing.T) {
	p := NewProofSigner("s3cret", time.Hour)
	rec := &domain.CertificateRecord{CertificateID: "CERT-1", BlobReference: "bafkreiexample"}

	token, err := p.Issue(rec)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := p.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "CERT-1" || claims.BlobReference != "bafkreiexample" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestProofSigner_RejectsForeignSecret(t *testing.T) {
	token, _ := NewProofSigner("a", 0).Issue(&domain.CertificateRecord{CertificateID: "C", BlobReference: "r"})

	if _, err := NewProofSigner("b", 0).Verify(token); !errors.Is(err, domain.ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof, got %v", err)
	}
}

func TestProofSigner_RejectsExpired(t *testing.T) {
	p := NewProofSigner("s3cret", time.Minute)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return issued }
	token, err := p.Issue(&domain.CertificateRecord{CertificateID: "C", BlobReference: "r"})
	if err != nil {
		t.Fatal(err)
	}

	p.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := p.Verify(token); !errors.Is(err, domain.ErrInvalidProof) {
		t.Fatalf("expected expired proof to be rejected, got %v", err)
	}
}

func TestNewProofSigner_DisabledWithoutSecret(t *testing.T) {
	if NewProofSigner("", time.Hour) != nil {
		t.Fatal("expected nil signer when secret is empty")
	}
}
