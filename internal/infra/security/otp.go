package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateOTP returns a uniformly random decimal secret of exactly length
// digits drawn from crypto/rand. The generated range is
// [10^(length-1), 10^length), so the leading digit is never zero.
func GenerateOTP(length int) (string, error) {
	if length < 1 || length > 18 {
		return "", fmt.Errorf("otp length must be between 1 and 18, got %d", length)
	}

	lower := int64(1)
	for i := 1; i < length; i++ {
		lower *= 10
	}
	span := lower*10 - lower

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	return fmt.Sprintf("%d", lower+n.Int64()), nil
}

// DigestOTP calculates the SHA-256 digest of the secret's UTF-8 bytes,
// hex-encoded. The plaintext secret is never persisted.
func DigestOTP(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// DigestEqual compares two hex digests in constant time.
func DigestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
