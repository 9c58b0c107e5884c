package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Identity is the public identifier of a wallet-held credential.
type Identity string

func (i Identity) String() string { return string(i) }

// NormalizeIdentity canonicalises a wallet identifier so that differently
// cased spellings key the same authorization record. 20-byte hex addresses
// are rendered in EIP-55 checksum form; anything else is lower-cased.
func NormalizeIdentity(raw string) (Identity, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(body) == 40 {
		if _, err := hex.DecodeString(body); err == nil {
			return Identity(checksumAddress(strings.ToLower(body))), nil
		}
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, raw)
	}
	return Identity(strings.ToLower(s)), nil
}

// checksumAddress implements EIP-55 over a lower-case 40 character hex body.
func checksumAddress(lower string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := make([]byte, 0, 42)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if c >= 'a' && c <= 'f' && nibble&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
