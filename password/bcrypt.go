package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	minCost      = 10
	maxCost      = 16
	minPassBytes = 8
)

// Config holds bcrypt tuning parameters.
type Config struct {
	Cost int
}

// Hasher hashes and verifies passwords with bcrypt. Instances are configured
// during initialization and then treated as immutable.
type Hasher struct {
	config Config
}

// NewHasher validates the configuration and returns a bcrypt [Hasher].
// Cost factors below 10 are rejected: they no longer qualify as a slow hash.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Cost < minCost || cfg.Cost > maxCost {
		return nil, errors.New("bcrypt cost must be between 10 and 16")
	}

	return &Hasher{config: cfg}, nil
}

// Hash returns the bcrypt hash of password at the configured cost.
// Password bytes are used exactly as provided (no Unicode normalization).
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", errors.New("password must be at least 8 bytes")
	}
	// bcrypt silently truncates beyond 72 bytes; reject instead.
	if len(password) > 72 {
		return "", errors.New("password must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.config.Cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Verify reports whether password matches the stored hash. A malformed hash
// is an error; a clean mismatch is (false, nil).
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

// NeedsUpgrade reports whether the stored hash was produced with a lower cost
// than currently configured.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}

	return cost < h.config.Cost, nil
}
