package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// UserKeySize is the default per-user key length in bytes.
	UserKeySize = 16
	// ModuleKeySize is the default per-module key length in bytes.
	ModuleKeySize = 16
	// ServerKeySize is the default global server key length in bytes.
	ServerKeySize = 32
)

var (
	// ErrInvalidKeyLength is returned for a requested length below one byte.
	ErrInvalidKeyLength = errors.New("invalid key length")
	// ErrRNGFailure is returned when the platform cannot supply strong randomness.
	ErrRNGFailure = errors.New("secure random source unavailable")
)

var randomReader io.Reader = rand.Reader

// RandomBytes returns n bytes from the platform's cryptographically secure
// random source. A reader failure is reported as ErrRNGFailure and is never
// retried.
func RandomBytes(n int) ([]byte, error) {
	if n < 1 {
		return nil, ErrInvalidKeyLength
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(randomReader, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRNGFailure, err)
	}
	return buf, nil
}

// KeyGenerator mints secret key material of a fixed size.
type KeyGenerator func(n int) ([]byte, error)

// DefaultKeyGenerator reads from crypto/rand.
func DefaultKeyGenerator() KeyGenerator {
	return RandomBytes
}
