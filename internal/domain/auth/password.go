package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hash algorithm identifiers accepted in configuration.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Upper bounds applied to parameters read back from stored hashes, so a
// tampered row cannot make verification allocate unbounded memory.
const (
	maxArgon2Memory      = 1 << 20 // KiB
	argon2MemoryHeadroom = 4       // multiple of the configured memory cost
	maxArgon2Time        = 16
	maxArgon2KeyLen      = 128
	bcryptMaxPassLen     = 72
)

// ErrPasswordTooLong is returned by hashers that cannot take the full input.
var ErrPasswordTooLong = errors.New("password is too long for the configured algorithm")

// PasswordHasher hashes new passwords and verifies candidates against a
// stored encoding. Verify never errors: malformed hashes simply do not match.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
}

// Argon2Params tunes argon2id.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	SaltLen   uint32
	KeyLen    uint32
}

// DefaultArgon2Params follows OWASP's argon2id baseline.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 1, MemoryKiB: 64 * 1024, Threads: 4, SaltLen: 16, KeyLen: 32}
}

// Argon2Hasher produces PHC strings: $argon2id$v=19$m=..,t=..,p=..$salt$hash.
type Argon2Hasher struct {
	params Argon2Params
}

func NewArgon2Hasher(p Argon2Params) *Argon2Hasher {
	d := DefaultArgon2Params()
	if p.Time == 0 {
		p.Time = d.Time
	}
	if p.MemoryKiB == 0 {
		p.MemoryKiB = d.MemoryKiB
	}
	if p.Threads == 0 {
		p.Threads = d.Threads
	}
	if p.SaltLen == 0 {
		p.SaltLen = d.SaltLen
	}
	if p.KeyLen == 0 {
		p.KeyLen = d.KeyLen
	}
	return &Argon2Hasher{params: p}
}

func (h *Argon2Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2Hasher) Verify(plain, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2id {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	if memory == 0 || memory > h.memoryLimit() || iterations == 0 || iterations > maxArgon2Time || threads == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 || len(expected) > maxArgon2KeyLen {
		return false
	}

	key := argon2.IDKey([]byte(plain), salt, iterations, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1
}

// memoryLimit bounds the memory cost accepted from a stored hash to a small
// multiple of the configured cost.
func (h *Argon2Hasher) memoryLimit() uint32 {
	limit := uint64(h.params.MemoryKiB) * argon2MemoryHeadroom
	if limit > maxArgon2Memory {
		return maxArgon2Memory
	}
	return uint32(limit)
}

// BcryptHasher wraps x/crypto/bcrypt.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	if len(plain) > bcryptMaxPassLen {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(out), nil
}

func (h *BcryptHasher) Verify(plain, encoded string) bool {
	if !isBcrypt(encoded) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain)) == nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}

// MultiHasher hashes with the configured algorithm and verifies any
// supported encoding, so rows written under an earlier setting keep working.
type MultiHasher struct {
	algorithm string
	argon2    *Argon2Hasher
	bcrypt    *BcryptHasher
}

// HasherConfig selects and tunes the password algorithm.
type HasherConfig struct {
	Algorithm  string
	Argon2     Argon2Params
	BcryptCost int
}

func NewPasswordHasher(cfg HasherConfig) (*MultiHasher, error) {
	switch cfg.Algorithm {
	case "":
		cfg.Algorithm = AlgorithmArgon2id
	case AlgorithmArgon2id, AlgorithmBcrypt:
	default:
		return nil, fmt.Errorf("unsupported password algorithm: %s", cfg.Algorithm)
	}
	return &MultiHasher{
		algorithm: cfg.Algorithm,
		argon2:    NewArgon2Hasher(cfg.Argon2),
		bcrypt:    NewBcryptHasher(cfg.BcryptCost),
	}, nil
}

// Algorithm reports the identifier used for new hashes.
func (m *MultiHasher) Algorithm() string {
	return m.algorithm
}

func (m *MultiHasher) Hash(plain string) (string, error) {
	if m.algorithm == AlgorithmBcrypt {
		return m.bcrypt.Hash(plain)
	}
	return m.argon2.Hash(plain)
}

func (m *MultiHasher) Verify(plain, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "$"+AlgorithmArgon2id+"$"):
		return m.argon2.Verify(plain, encoded)
	case isBcrypt(encoded):
		return m.bcrypt.Verify(plain, encoded)
	default:
		return false
	}
}
