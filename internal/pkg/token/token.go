package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits       = "0123456789"
)

// NewBearer generates an opaque n-character alphanumeric bearer token.
func NewBearer(n int) (string, error) {
	s, err := randomString(alphanumeric, n)
	if err != nil {
		return "", fmt.Errorf("generate bearer token: %w", err)
	}
	return s, nil
}

// NewNumericCode generates an n-digit code. Leading zeros are kept.
func NewNumericCode(n int) (string, error) {
	s, err := randomString(digits, n)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return s, nil
}

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
