package flagkey

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"strings"
)

const (
	// PurposeFlag is the reserved purpose for the submittable flag.
	PurposeFlag = "flag"
	// PurposeCSRFPseudonym derives the per-module pseudonym used by CSRF exercises.
	PurposeCSRFPseudonym = "csrfPseudonym"
)

var (
	// ErrEmptyKey is returned when an HMAC key is empty.
	ErrEmptyKey = errors.New("empty hmac key")
	// ErrEmptyPurpose is returned when no purpose prefix is given.
	ErrEmptyPurpose = errors.New("empty derivation purpose")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// HMAC returns HMAC-SHA256(key, message). It fails only on an empty key.
func HMAC(key, message []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil), nil
}

// Derive computes the encoded secret for purpose from the three key sources.
func Derive(purpose string, userKey, moduleKey, serverKey []byte) (string, error) {
	if purpose == "" {
		return "", ErrEmptyPurpose
	}
	if len(userKey) == 0 || len(moduleKey) == 0 {
		return "", ErrEmptyKey
	}

	msg := make([]byte, 0, len(purpose)+len(userKey)+len(moduleKey))
	msg = append(msg, purpose...)
	msg = append(msg, userKey...)
	msg = append(msg, moduleKey...)

	digest, err := HMAC(serverKey, msg)
	if err != nil {
		return "", err
	}

	encoded := Encode(digest)
	if purpose == PurposeFlag {
		return Wrap(encoded), nil
	}
	return encoded, nil
}

// Encode renders b as lower-case base32 without padding.
func Encode(b []byte) string {
	return strings.ToLower(encoding.EncodeToString(b))
}

// Wrap formats an encoded digest as a submittable flag.
func Wrap(encoded string) string {
	return "flag{" + encoded + "}"
}

// Normalize trims surrounding whitespace and folds case for comparison.
func Normalize(flag string) string {
	return strings.ToLower(strings.TrimSpace(flag))
}

// Match reports whether submitted equals expected after normalization.
// The comparison is constant-time in the length of the normalized inputs.
func Match(submitted, expected string) bool {
	a := Normalize(submitted)
	b := Normalize(expected)
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
