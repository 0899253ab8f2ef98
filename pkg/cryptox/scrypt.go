package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// ScryptParams are the cost parameters for the scrypt KDF.
type ScryptParams struct {
	N       int
	R       int
	P       int
	KeyLen  int
	SaltLen int
}

// DefaultScryptParams matches the stored hashes produced by the legacy
// service: N=16384, r=8, p=1, 64 byte key, 16 byte salt.
var DefaultScryptParams = ScryptParams{N: 16384, R: 8, P: 1, KeyLen: 64, SaltLen: 16}

// ScryptHasher hashes passwords into "hex(key).hex(salt)".
//
// The hex salt string itself is fed to scrypt as the salt bytes so existing
// rows keep verifying.
type ScryptHasher struct {
	params ScryptParams
}

func NewScryptHasher(params ScryptParams) *ScryptHasher {
	if params.N <= 1 {
		params.N = DefaultScryptParams.N
	}
	if params.R <= 0 {
		params.R = DefaultScryptParams.R
	}
	if params.P <= 0 {
		params.P = DefaultScryptParams.P
	}
	if params.KeyLen <= 0 {
		params.KeyLen = DefaultScryptParams.KeyLen
	}
	if params.SaltLen <= 0 {
		params.SaltLen = DefaultScryptParams.SaltLen
	}
	return &ScryptHasher{params: params}
}

// Hash derives a key for password under a fresh random salt.
func (h *ScryptHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	key, err := h.derive(password, saltHex)
	if err != nil {
		return "", err
	}
	return key + "." + saltHex, nil
}

// Verify reports whether password matches encoded. Malformed input is a
// mismatch, never an error.
func (h *ScryptHasher) Verify(password, encoded string) bool {
	parts := strings.Split(encoded, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	stored, saltHex := parts[0], parts[1]
	if len(stored) != hex.EncodedLen(h.params.KeyLen) {
		return false
	}

	derived, err := h.derive(password, saltHex)
	if err != nil {
		return false
	}
	// compare the encoded form so a case flip in the stored hex is a mismatch
	return subtle.ConstantTimeCompare([]byte(derived), []byte(stored)) == 1
}

func (h *ScryptHasher) derive(password, saltHex string) (string, error) {
	key, err := scrypt.Key([]byte(password), []byte(saltHex), h.params.N, h.params.R, h.params.P, h.params.KeyLen)
	if err != nil {
		return "", fmt.Errorf("scrypt: %w", err)
	}
	return hex.EncodeToString(key), nil
}

var defaultHasher = NewScryptHasher(DefaultScryptParams)

// HashPassword hashes with DefaultScryptParams.
func HashPassword(password string) (string, error) {
	return defaultHasher.Hash(password)
}

// VerifyPassword verifies with DefaultScryptParams.
func VerifyPassword(password, encoded string) bool {
	return defaultHasher.Verify(password, encoded)
}
