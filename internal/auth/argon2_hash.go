package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Variant = "argon2id"

	// Work factor, following the OWASP recommended minimum of 46 MiB
	// memory with a single iteration.
	defaultMemoryKiB   = 47104
	defaultIterations  = 1
	defaultParallelism = 1
)

var ErrInvalidArgon2Hash = errors.New("invalid argon2 hash")

// Argon2Hash is an argon2id password hash and the parameters used to
// create it. Its string form is the standard encoded representation:
//
//	$argon2id$v=19$m=47104,t=1,p=1$<base64 salt>$<base64 hash>
type Argon2Hash struct {
	Variant     string
	Version     int
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	Salt        []byte
	Hash        []byte
}

// hashBytes hashes plain using argon2id with the default parameters and
// a fresh random salt.
func hashBytes(plain []byte) (Argon2Hash, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return Argon2Hash{}, err
	}

	hash := argon2.IDKey(plain, salt, defaultIterations, defaultMemoryKiB, defaultParallelism, keyLen)

	return Argon2Hash{
		Variant:     argon2Variant,
		Version:     argon2.Version,
		MemoryKiB:   defaultMemoryKiB,
		Iterations:  defaultIterations,
		Parallelism: defaultParallelism,
		Salt:        salt,
		Hash:        hash,
	}, nil
}

// matchHash reports whether plain hashes to h using the parameters
// stored in h. The comparison is constant-time with respect to the
// hash values.
func matchHash(h Argon2Hash, plain []byte) bool {
	if h.Variant != argon2Variant || h.Version != argon2.Version {
		return false
	}

	other := argon2.IDKey(plain, h.Salt, h.Iterations, h.MemoryKiB, h.Parallelism, uint32(len(h.Hash)))

	return subtle.ConstantTimeCompare(h.Hash, other) == 1
}

// MatchBytes checks if the provided bytes match the hash.
func (h Argon2Hash) MatchBytes(plain []byte) bool {
	return matchHash(h, plain)
}

// ParseArgon2Hash parses a hash from its standard encoded representation.
func ParseArgon2Hash(raw string) (Argon2Hash, error) {
	parts := strings.Split(raw, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Argon2Hash{}, fmt.Errorf("unexpected hash layout: %w", ErrInvalidArgon2Hash)
	}

	if parts[1] != argon2Variant {
		return Argon2Hash{}, fmt.Errorf("unsupported variant %q: %w", parts[1], ErrInvalidArgon2Hash)
	}

	version, err := parseParam(parts[2], "v", 32)
	if err != nil {
		return Argon2Hash{}, err
	}

	if version != argon2.Version {
		return Argon2Hash{}, fmt.Errorf("unsupported version %d: %w", version, ErrInvalidArgon2Hash)
	}

	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return Argon2Hash{}, fmt.Errorf("unexpected parameter layout: %w", ErrInvalidArgon2Hash)
	}

	memory, err := parseParam(params[0], "m", 32)
	if err != nil {
		return Argon2Hash{}, err
	}

	iterations, err := parseParam(params[1], "t", 32)
	if err != nil {
		return Argon2Hash{}, err
	}

	parallelism, err := parseParam(params[2], "p", 8)
	if err != nil {
		return Argon2Hash{}, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("invalid salt encoding: %w", ErrInvalidArgon2Hash)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("invalid hash encoding: %w", ErrInvalidArgon2Hash)
	}

	return Argon2Hash{
		Variant:     argon2Variant,
		Version:     int(version),
		MemoryKiB:   uint32(memory),
		Iterations:  uint32(iterations),
		Parallelism: uint8(parallelism),
		Salt:        salt,
		Hash:        hash,
	}, nil
}

// parseParam parses a single "name=number" parameter.
func parseParam(s, name string, bitSize int) (uint64, error) {
	val, ok := strings.CutPrefix(s, name+"=")
	if !ok {
		return 0, fmt.Errorf("missing parameter %q: %w", name, ErrInvalidArgon2Hash)
	}

	num, err := strconv.ParseUint(val, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("non-numeric parameter %q: %w", name, ErrInvalidArgon2Hash)
	}

	return num, nil
}

// String returns the standard encoded representation of the hash.
// As opposed to a Password this is allowed, hashes need to be persisted.
func (h Argon2Hash) String() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		h.Variant,
		h.Version,
		h.MemoryKiB,
		h.Iterations,
		h.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Hash),
	)
}

func (h Argon2Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Argon2Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseArgon2Hash(string(text))
	if err != nil {
		return err
	}

	*h = parsed

	return nil
}

// Scan implements sql.Scanner so hashes can be read from a database column.
func (h *Argon2Hash) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return h.UnmarshalText([]byte(v))
	case []byte:
		return h.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Argon2Hash", src)
	}
}
