package domain

import "errors"

// GenericMessage is shown for faults outside the known taxonomy.
const GenericMessage = "Something went wrong!"

var messages = []struct {
	err error
	msg string
}{
	{ErrNetworkMismatch, "Please switch to the deployment network in your wallet"},
	{ErrNoAccounts, "No wallet account connected. Please connect your wallet."},
	{ErrUserNotFound, "No user found for this account. Please register first."},
	{ErrInvalidSecret, "Invalid password"},
	{ErrUnknownRole, "Account has an unrecognized role"},
	{ErrGatewayUnavailable, "Authorization service is unreachable. Make sure your local node is running."},
	{ErrMissingField, "Missing required fields"},
	{ErrPayloadTooLarge, "Certificate image exceeds the maximum allowed size"},
	{ErrDuplicateCertificate, "A certificate with this ID already exists. Choose a different certificate ID."},
	{ErrStorageFailure, "Error storing certificate"},
	{ErrBlobNotFound, "Certificate image not found"},
	{ErrCertificateNotFound, "Certificate not found"},
	{ErrInvalidReference, "Invalid certificate reference"},
	{ErrInvalidIdentity, "Invalid account identifier"},
	{ErrInvalidProof, "Certificate proof is invalid or expired"},
	{ErrUserExists, "User already registered"},
	{ErrForbidden, "Access forbidden"},
}

// UserMessage returns the human-readable message for err. Duplicate
// certificates are checked before storage failures so the two never collapse
// into each other.
func UserMessage(err error) string {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return GenericMessage
}
