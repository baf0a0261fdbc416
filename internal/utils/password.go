package utils

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/iliyamo/carefinder-api/internal/apperror"
	"github.com/iliyamo/carefinder-api/internal/config"
)

// Credential is the stored form of a password.
type Credential struct {
	Salt string
	Hash string
}

// PasswordHasher derives and verifies PBKDF2 credentials with a fixed set of
// parameters. The salt is fed to the KDF in its encoded text form, so stored
// credentials stay verifiable as long as the parameters do not change.
type PasswordHasher struct {
	iterations int
	keyLen     int
	saltBytes  int
	digest     func() hash.Hash
	encode     func([]byte) string
}

// NewPasswordHasher validates the KDF parameters and builds a hasher.
func NewPasswordHasher(cfg config.KDFConfig) (*PasswordHasher, error) {
	h := &PasswordHasher{
		iterations: cfg.Iterations,
		keyLen:     cfg.KeyLen,
		saltBytes:  cfg.SaltBytes,
	}
	switch strings.ToLower(cfg.Digest) {
	case "sha1":
		h.digest = sha1.New
	case "sha256":
		h.digest = sha256.New
	case "sha512":
		h.digest = sha512.New
	default:
		return nil, fmt.Errorf("password: unsupported digest %q", cfg.Digest)
	}
	switch strings.ToLower(cfg.Encoding) {
	case "hex":
		h.encode = hex.EncodeToString
	case "base64":
		h.encode = base64.StdEncoding.EncodeToString
	default:
		return nil, fmt.Errorf("password: unsupported encoding %q", cfg.Encoding)
	}
	if h.iterations < 1 || h.keyLen < 1 || h.saltBytes < 1 {
		return nil, fmt.Errorf("password: iterations, key length and salt size must be positive")
	}
	return h, nil
}

// Derive produces a new random salt and the matching hash. An empty password
// is a validation failure.
func (h *PasswordHasher) Derive(password string) (Credential, error) {
	if password == "" {
		return Credential{}, apperror.Validation(apperror.MsgMissingPassword)
	}
	buf := make([]byte, h.saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return Credential{}, fmt.Errorf("password: read salt: %w", err)
	}
	salt := h.encode(buf)
	return Credential{Salt: salt, Hash: h.DeriveWithSalt(password, salt)}, nil
}

// DeriveWithSalt recomputes the hash for password under an existing salt.
func (h *PasswordHasher) DeriveWithSalt(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, h.keyLen, h.digest)
	return h.encode(key)
}

// Verify reports whether password matches the stored salt and hash. The
// comparison runs in constant time.
func (h *PasswordHasher) Verify(password, salt, expected string) bool {
	got := h.DeriveWithSalt(password, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
