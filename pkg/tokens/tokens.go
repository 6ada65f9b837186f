// Package tokens generates the opaque credential values handed to callers:
// exchange tokens, access tokens and numeric PIN login codes.
//
// Every value is drawn from crypto/rand. There is no state and no persistence;
// uniqueness across the proxy population is the store's concern, not this
// package's.
package tokens

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/hashicorp/go-secure-stdlib/base62"
)

// Numeric exchange codes are uniform over [NumericMin, NumericMax]. The lower
// bound keeps every code six digits with no leading-zero ambiguity.
const (
	NumericMin = 111111
	NumericMax = 999999
)

// Alphanumeric returns a random string of the requested length over the base62
// alphabet [0-9A-Za-z].
func Alphanumeric(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", length)
	}
	token, err := base62.Random(length)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Numeric returns a six-digit code uniformly drawn from [NumericMin, NumericMax].
func Numeric() (string, error) {
	span := big.NewInt(NumericMax - NumericMin + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+NumericMin), nil
}
