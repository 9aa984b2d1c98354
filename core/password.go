package core

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Supported values of Config.HashAlgorithm.
const (
	HashSHA3_512    = "sha3-512"
	HashBLAKE2b_512 = "blake2b-512"
	HashSHA512      = "sha512"
)

func newDigest(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case HashSHA3_512:
		return sha3.New512, nil
	case HashBLAKE2b_512:
		return func() hash.Hash {
			h, _ := blake2b.New512(nil) // only fails for oversized keys
			return h
		}, nil
	case HashSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// DigestSize returns the output width in bytes of the named algorithm.
func DigestSize(algorithm string) (int, error) {
	mk, err := newDigest(algorithm)
	if err != nil {
		return 0, err
	}
	return mk().Size(), nil
}

// PasswordHasher produces the salted password digests stored with each user.
type PasswordHasher struct {
	newHash    func() hash.Hash
	saltLength int
}

func NewPasswordHasher(algorithm string, saltLength int) (*PasswordHasher, error) {
	mk, err := newDigest(algorithm)
	if err != nil {
		return nil, err
	}
	if saltLength <= 0 {
		return nil, fmt.Errorf("salt length must be positive, got %d", saltLength)
	}
	return &PasswordHasher{newHash: mk, saltLength: saltLength}, nil
}

// Hash digests password ":" salt.
func (h *PasswordHasher) Hash(password string, salt []byte) []byte {
	d := h.newHash()
	d.Write([]byte(password))
	d.Write([]byte{':'})
	d.Write(salt)
	return d.Sum(nil)
}

// Verify recomputes the digest and compares it in constant time.
func (h *PasswordHasher) Verify(password string, salt, expected []byte) bool {
	return subtle.ConstantTimeCompare(h.Hash(password, salt), expected) == 1
}

// NewSalt returns saltLength random bytes.
func (h *PasswordHasher) NewSalt() ([]byte, error) {
	return randomBytes(h.saltLength)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}
