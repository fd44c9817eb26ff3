// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// MaxPasswordBytes bounds argon2id input. Longer passwords are rejected, not truncated.
const MaxPasswordBytes = 1024

// bcryptMaxPasswordBytes is the hard input limit of the bcrypt primitive.
const bcryptMaxPasswordBytes = 72

// Supported digest algorithms.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeHashingFailed).Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted, self-describing digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on a malformed digest.
	Verify(password, digest string) (bool, error)
}

// Argon2Params are the tunable argon2id cost parameters.
// Time is the work factor; it is embedded in every digest.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultArgon2Params returns the OWASP-recommended parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: argon2Time, Memory: argon2Memory, Threads: argon2Threads}
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a new Argon2idHasher with default parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params()}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with explicit cost parameters.
func NewArgon2idHasherWithParams(params Argon2Params) (*Argon2idHasher, error) {
	if params.Time == 0 {
		return nil, oops.Code("HASHER_CONFIG_INVALID").Errorf("argon2id time must be positive")
	}
	if params.Threads == 0 {
		return nil, oops.Code("HASHER_CONFIG_INVALID").Errorf("argon2id threads must be positive")
	}
	if params.Memory < 8*uint32(params.Threads) {
		return nil, oops.Code("HASHER_CONFIG_INVALID").
			With("memory", params.Memory).
			With("threads", params.Threads).
			Errorf("argon2id memory must be at least 8 KiB per thread")
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > MaxPasswordBytes {
		return "", oops.Code(CodeHashingFailed).
			With("max_bytes", MaxPasswordBytes).
			Errorf("password exceeds %d bytes", MaxPasswordBytes)
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code(CodeHashingFailed).With("operation", "generate salt").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks if the password matches a digest of any supported algorithm.
func (h *Argon2idHasher) Verify(password, digest string) (bool, error) {
	return verifyDigest(password, digest)
}

// BcryptHasher implements PasswordHasher using bcrypt.
// The bcrypt primitive rejects passwords over 72 bytes; Hash surfaces that as an error.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. Cost must be within bcrypt's bounds.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("HASHER_CONFIG_INVALID").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt digest. bcrypt generates its own 16-byte salt from crypto/rand.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > bcryptMaxPasswordBytes {
		return "", oops.Code(CodeHashingFailed).
			With("max_bytes", bcryptMaxPasswordBytes).
			Errorf("password exceeds %d bytes", bcryptMaxPasswordBytes)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code(CodeHashingFailed).With("operation", "bcrypt generate").Wrap(err)
	}
	return string(digest), nil
}

// Verify checks if the password matches a digest of any supported algorithm.
func (h *BcryptHasher) Verify(password, digest string) (bool, error) {
	return verifyDigest(password, digest)
}

// NewPasswordHasher builds the hasher for the named algorithm.
func NewPasswordHasher(algorithm string, argon2Params Argon2Params, bcryptCost int) (PasswordHasher, error) {
	switch algorithm {
	case "", AlgorithmArgon2id:
		return NewArgon2idHasherWithParams(argon2Params)
	case AlgorithmBcrypt:
		return NewBcryptHasher(bcryptCost)
	default:
		return nil, oops.Code("HASHER_CONFIG_INVALID").
			With("algorithm", algorithm).
			Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// DigestAlgorithm reports the algorithm encoded in digest, or "" if unrecognized.
func DigestAlgorithm(digest string) string {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return AlgorithmArgon2id
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return AlgorithmBcrypt
	default:
		return ""
	}
}

func verifyDigest(password, digest string) (bool, error) {
	switch DigestAlgorithm(digest) {
	case AlgorithmArgon2id:
		return verifyArgon2id(password, digest)
	case AlgorithmBcrypt:
		return verifyBcrypt(password, digest)
	default:
		return false, oops.Code(CodeInvalidDigest).Errorf("unsupported digest format")
	}
}

func verifyBcrypt(password, digest string) (bool, error) {
	if _, err := bcrypt.Cost([]byte(digest)); err != nil {
		return false, oops.Code(CodeInvalidDigest).Wrap(err)
	}
	// bcrypt only reads the first 72 bytes; a longer candidate can never be the stored password.
	if len(password) > bcryptMaxPasswordBytes {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code(CodeInvalidDigest).Wrap(err)
	}
	return true, nil
}

func verifyArgon2id(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, oops.Code(CodeInvalidDigest).Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code(CodeInvalidDigest).Wrap(err)
	}
	if version != argon2.Version {
		return false, oops.Code(CodeInvalidDigest).Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code(CodeInvalidDigest).Wrap(err)
	}
	if time == 0 || memory == 0 || threads == 0 {
		return false, oops.Code(CodeInvalidDigest).Errorf("argon2 parameters must be positive")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code(CodeInvalidDigest).Wrap(err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code(CodeInvalidDigest).Wrap(err)
	}

	// Validate threads fits in uint8 to prevent silent truncation
	if threads > 255 {
		return false, oops.Code(CodeInvalidDigest).Errorf("threads value %d exceeds uint8 max", threads)
	}

	keyLen := len(expectedHash)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code(CodeInvalidDigest).Errorf("invalid hash key length: %d", keyLen)
	}

	if len(password) > MaxPasswordBytes {
		return false, nil
	}

	computedHash := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))

	if subtle.ConstantTimeCompare(computedHash, expectedHash) == 1 {
		return true, nil
	}

	return false, nil
}
