package services

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"

	"github.com/pkg/errors"
)

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newVerificationToken returns 128 random bits as lowercase hex.
func newVerificationToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate verification token")
	}
	return hex.EncodeToString(b), nil
}

// newUniqueCode returns 120 random bits as a 24 character base32 string.
// The space is large enough that scanning for valid codes is impractical.
func newUniqueCode() (string, error) {
	b := make([]byte, 15)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate certificate code")
	}
	return codeEncoding.EncodeToString(b), nil
}
