// internal/auth/password.go
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidHash is returned for a stored hash that is not an argon2id PHC string.
	ErrInvalidHash = errors.New("the encoded hash is not in the correct format")
	// ErrIncompatibleVersion is returned for a hash made by another argon2 version.
	ErrIncompatibleVersion = errors.New("incompatible version of argon2")
	// ErrInvalidHashParams is returned by SetHashParams for settings argon2 cannot use.
	ErrInvalidHashParams = errors.New("invalid password hash parameters")
)

const hashFormat = "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"

// HashParams are the argon2id costs used for new password hashes. Every encoded
// hash carries its own costs, so changing them leaves stored passwords valid.
type HashParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashParams uses 64 MiB, 5 passes and half the CPUs.
func DefaultHashParams() HashParams {
	return HashParams{
		MemoryKiB:   64 * 1024,
		Iterations:  5,
		Parallelism: uint8(max(1, min(runtime.NumCPU()/2, 255))),
		SaltLength:  16,
		KeyLength:   32,
	}
}

var hashParams = DefaultHashParams()

// Validate reports costs argon2 cannot run with.
func (p HashParams) Validate() error {
	switch {
	case p.Iterations < 1, p.Parallelism < 1:
		return fmt.Errorf("%w: iterations and parallelism must be at least 1", ErrInvalidHashParams)
	case p.MemoryKiB < 8*uint32(p.Parallelism):
		return fmt.Errorf("%w: memory must be at least 8 KiB per lane", ErrInvalidHashParams)
	case p.SaltLength < 8 || p.KeyLength < 16:
		return fmt.Errorf("%w: salt must be 8+ bytes and key 16+ bytes", ErrInvalidHashParams)
	}
	return nil
}

// SetHashParams replaces the costs for hashes created from now on.
func SetHashParams(p HashParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	hashParams = p
	return nil
}

// HashPassword derives an argon2id key from password with a fresh salt and returns
// it in PHC string form, e.g. $argon2id$v=19$m=65536,t=5,p=2$<salt>$<key>.
func HashPassword(password string) (string, error) {
	p := hashParams
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return fmt.Sprintf(hashFormat, argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// ComparePasswordAndHash re-derives the key with the costs stored in encodedHash
// and compares in constant time.
func ComparePasswordAndHash(password, encodedHash string) (bool, error) {
	p, salt, key, err := DecodeHash(encodedHash)
	if err != nil {
		return false, err
	}
	derived := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(key, derived) == 1, nil
}

// NeedsRehash reports whether encodedHash was made with different costs
// than the current ones. Unparseable hashes always need one.
func NeedsRehash(encodedHash string) bool {
	p, _, _, err := DecodeHash(encodedHash)
	if err != nil {
		return true
	}
	cur := hashParams
	return p.MemoryKiB != cur.MemoryKiB || p.Iterations != cur.Iterations || p.KeyLength != cur.KeyLength
}

// DecodeHash splits a PHC string into its costs, salt and key.
func DecodeHash(encodedHash string) (HashParams, []byte, []byte, error) {
	var p HashParams
	vals := strings.Split(encodedHash, "$")
	if len(vals) != 6 || vals[1] != "argon2id" {
		return p, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(vals[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}
	if _, err := fmt.Sscanf(vals[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(vals[4])
	if err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(vals[5])
	if err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}
