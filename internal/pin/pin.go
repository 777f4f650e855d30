// Package pin hashes and verifies the short release PIN that guards cancel
// and extend operations.
package pin

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	AlgorithmBcrypt = "bcrypt"
	AlgorithmHMAC   = "hmac"

	// PlaceholderHash is stored for trusted-origin bookings made without a PIN.
	// It is not a valid digest for any hasher, so Verify never accepts it.
	PlaceholderHash = "!trusted-origin"
)

var (
	ErrEmptySecret = errors.New("pin is empty")
	ErrHashFailed  = errors.New("pin hashing failed")
)

type Hasher interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) bool
}

// BcryptHasher produces salted bcrypt digests.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashFailed, err)
	}
	return string(out), nil
}

func (h *BcryptHasher) Verify(hash, secret string) bool {
	if hash == "" || secret == "" || hash == PlaceholderHash {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// HMACHasher produces deterministic, keyed SHA-256 hex digests.
type HMACHasher struct {
	key []byte
}

func NewHMACHasher(key string) (*HMACHasher, error) {
	if key == "" {
		return nil, errors.New("hmac pin hasher requires a key")
	}
	return &HMACHasher{key: []byte(key)}, nil
}

func (h *HMACHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (h *HMACHasher) Verify(hash, secret string) bool {
	if hash == "" || secret == "" || hash == PlaceholderHash {
		return false
	}
	want, err := h.Hash(secret)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(hash))) == 1
}

// New builds the hasher named by algorithm. Empty means bcrypt.
func New(algorithm string, bcryptCost int, hmacKey string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		return NewBcryptHasher(bcryptCost), nil
	case AlgorithmHMAC:
		return NewHMACHasher(hmacKey)
	default:
		return nil, fmt.Errorf("unknown pin algorithm %q", algorithm)
	}
}
