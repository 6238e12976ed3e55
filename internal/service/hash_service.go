package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost settings. Encoded into every hash, so they can be
// raised later without invalidating stored credentials.
const (
	hashIterations  uint32 = 2
	hashMemoryKiB   uint32 = 64 * 1024
	hashParallelism uint8  = 2
	hashKeyLen      uint32 = 32
	hashSaltLen            = 16
)

// Argon2HashService implements ports.HashService using Argon2id with
// the standard $argon2id$ encoded form.
type Argon2HashService struct{}

func NewArgon2HashService() *Argon2HashService {
	return &Argon2HashService{}
}

// Hash derives an Argon2id digest over a fresh random salt and returns
// it in encoded form: $argon2id$v=19$m=...,t=...,p=...$<salt>$<digest>.
func (s *Argon2HashService) Hash(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt,
		hashIterations, hashMemoryKiB, hashParallelism, hashKeyLen)

	b64 := base64.RawStdEncoding
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemoryKiB, hashIterations, hashParallelism,
		b64.EncodeToString(salt), b64.EncodeToString(digest))
	return encoded, nil
}

// Verify recomputes the digest with the parameters carried by the
// stored hash and compares in constant time.
func (s *Argon2HashService) Verify(password string, encodedHash string) (bool, error) {
	var (
		version            int
		memory, iterations uint32
		parallelism        uint8
		saltB64, digestB64 string
	)

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, fmt.Errorf("malformed password hash")
	}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("parse hash version: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("parse hash parameters: %w", err)
	}
	saltB64, digestB64 = parts[4], parts[5]

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	digest, err := base64.RawStdEncoding.DecodeString(digestB64)
	if err != nil {
		return false, fmt.Errorf("decode digest: %w", err)
	}

	recomputed := argon2.IDKey([]byte(password), salt,
		iterations, memory, parallelism, uint32(len(digest)))

	return subtle.ConstantTimeCompare(digest, recomputed) == 1, nil
}
