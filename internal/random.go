package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// refreshTokenRawSize is 48 bytes (384 bits), comfortably above the
// 256-bit minimum required for refresh credentials.
const refreshTokenRawSize = 48

// NewRefreshToken returns a fresh opaque refresh token. The raw value is
// handed to the client exactly once; only its digest is ever stored.
func NewRefreshToken() (string, error) {
	var raw [refreshTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// Digest returns the SHA-256 digest of a secret value. Tokens and OTP codes
// are stored and looked up by this digest, never by the raw value. The digest
// is unsalted on purpose: records must be addressable by hash.
func Digest(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// DigestHex returns the lowercase hex encoding of Digest(v), suitable for
// use inside store keys.
func DigestHex(v string) string {
	sum := Digest(v)
	return hex.EncodeToString(sum[:])
}

// NewOTP generates a numeric one-time passcode of the given length using
// crypto/rand. Each digit is drawn independently so the code is uniform
// over the full keyspace.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
