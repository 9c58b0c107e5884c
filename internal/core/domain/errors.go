package domain

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared by the workflows, the HTTP surface and the CLI.
var (
	ErrNetworkMismatch      = errors.New("connected network does not match the deployment network")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidSecret        = errors.New("invalid secret")
	ErrUnknownRole          = errors.New("unknown role")
	ErrGatewayUnavailable   = errors.New("authorization gateway unavailable")
	ErrMissingField         = errors.New("missing required field")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrStorageFailure       = errors.New("storage failure")
	ErrDuplicateCertificate = errors.New("certificate already exists")
	ErrBlobNotFound         = errors.New("blob not found")
)

var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrUserExists          = errors.New("user already exists")
	ErrForbidden           = errors.New("access forbidden")
	ErrInvalidReference    = errors.New("invalid blob reference")
	ErrInvalidIdentity     = errors.New("invalid identity")
	ErrInvalidProof        = errors.New("invalid certificate proof")
	ErrNoAccounts          = errors.New("no account connected")
	ErrUnrecognizedChain   = errors.New("chain not recognized by the credential provider")
)

// Stage names the external step of a workflow that produced an error.
type Stage string

const (
	StageValidation    Stage = "validation"
	StageNetwork       Stage = "network"
	StageIdentity      Stage = "identity"
	StageAuthorization Stage = "authorization"
	StageStore         Stage = "store"
	StageLink          Stage = "link"
	StageLookup        Stage = "lookup"
)

// StageError tags an error with the workflow stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with stage. A nil err stays nil, and an error that already
// carries a stage keeps its original one.
func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf reports the stage err was tagged with, or "" if none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Wrap joins a taxonomy sentinel with the underlying cause so both remain
// reachable through errors.Is.
func Wrap(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
