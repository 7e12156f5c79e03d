// Package auth holds credential hashing, API tokens and the session gateway
// that turns a request into an authenticated principal.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"myblog/internal/models"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hasher algorithms accepted by NewHasher.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// ErrEmptyCredential is returned when asked to hash an empty password.
var ErrEmptyCredential = errors.New("credential must not be empty")

// Hasher turns a plaintext password into a salted one-way hash.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) bool
}

// NewHasher returns the hasher for name. An empty name selects bcrypt.
func NewHasher(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AlgorithmBcrypt:
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	case AlgorithmArgon2id:
		return DefaultArgon2Hasher(), nil
	}
	return nil, fmt.Errorf("unknown password hasher %q", name)
}

// BcryptHasher hashes with bcrypt at Cost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

func (BcryptHasher) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Argon2Hasher hashes with argon2id and encodes the parameters into the hash:
// $argon2id$v=19$m=65536,t=1,p=4$<base64-salt>$<base64-hash>
type Argon2Hasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

func DefaultArgon2Hasher() Argon2Hasher {
	return Argon2Hasher{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}

func (h Argon2Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, h.Time, h.Memory, h.Threads, h.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.Memory,
		h.Time,
		h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify uses the parameters stored in hash, not the receiver's.
func (Argon2Hasher) Verify(hash, plaintext string) bool {
	p, err := decodeArgon2(hash)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(p.key, candidate) == 1
}

type argon2Params struct {
	salt, key    []byte
	memory, time uint32
	threads      uint8
}

func decodeArgon2(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, fmt.Errorf("invalid hash format: expected 6 parts, got %d", len(parts))
	}
	if parts[1] != AlgorithmArgon2id {
		return nil, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version: %d", version)
	}

	var p argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, fmt.Errorf("parsing parameters: %w", err)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("decoding hash: %w", err)
	}
	if len(p.key) == 0 {
		return nil, errors.New("empty hash")
	}
	return &p, nil
}

// Algorithm names the scheme that produced hash, or "" if unrecognised.
func Algorithm(hash string) string {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return AlgorithmArgon2id
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return AlgorithmBcrypt
	}
	return ""
}

// Credentials sets and checks user passwords. New hashes use the configured
// hasher; stored hashes verify with whichever scheme produced them.
type Credentials struct {
	hasher Hasher

	dummyOnce sync.Once
	dummy     string
}

func NewCredentials(h Hasher) *Credentials {
	if h == nil {
		h = BcryptHasher{Cost: bcrypt.DefaultCost}
	}
	return &Credentials{hasher: h}
}

// SetCredential replaces the user's stored hash. The plaintext is never kept.
func (c *Credentials) SetCredential(user *models.User, plaintext string) error {
	if plaintext == "" {
		return ErrEmptyCredential
	}
	hash, err := c.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return models.NewValidationError("password is too long")
		}
		return err
	}
	user.Password = hash
	return nil
}

// VerifyCredential reports whether plaintext matches the user's stored hash.
// A nil user is checked against a throwaway hash so the caller spends the same
// time whether or not the account exists.
func (c *Credentials) VerifyCredential(user *models.User, plaintext string) bool {
	if user == nil || user.Password == "" {
		c.burn(plaintext)
		return false
	}
	if plaintext == "" {
		return false
	}
	return verifyHash(user.Password, plaintext)
}

func (c *Credentials) burn(plaintext string) {
	c.dummyOnce.Do(func() {
		c.dummy, _ = c.hasher.Hash("myblog-dummy-credential")
	})
	if c.dummy != "" {
		_ = verifyHash(c.dummy, plaintext)
	}
}

func verifyHash(hash, plaintext string) bool {
	switch Algorithm(hash) {
	case AlgorithmBcrypt:
		return BcryptHasher{}.Verify(hash, plaintext)
	case AlgorithmArgon2id:
		return Argon2Hasher{}.Verify(hash, plaintext)
	}
	return false
}
