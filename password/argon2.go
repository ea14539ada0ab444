package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2ID = "argon2id"

	floorMemoryKB    uint32 = 8 * 1024
	floorTime        uint32 = 1
	floorParallelism uint8  = 1
	floorSaltLength  uint32 = 16
	floorKeyLength   uint32 = 16

	// MinPasswordBytes is the shortest secret any hasher accepts.
	MinPasswordBytes = 8
)

// Config holds argon2id cost parameters.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultConfig returns the production argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

// Argon2 is the default Hasher.
type Argon2 struct {
	cfg Config
}

type argon2Params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

type argon2Hash struct {
	argon2Params
	salt []byte
	key  []byte
}

// NewArgon2 validates cfg and returns a hasher. A zero MaxPasswordBytes
// falls back to DefaultMaxPasswordBytes.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	switch {
	case cfg.Memory < floorMemoryKB:
		return nil, fmt.Errorf("argon2 memory must be >= %d KB", floorMemoryKB)
	case cfg.Time < floorTime:
		return nil, errors.New("argon2 time must be >= 1")
	case cfg.Parallelism < floorParallelism:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case cfg.SaltLength < floorSaltLength:
		return nil, fmt.Errorf("argon2 salt length must be >= %d", floorSaltLength)
	case cfg.KeyLength < floorKeyLength:
		return nil, fmt.Errorf("argon2 key length must be >= %d", floorKeyLength)
	case cfg.MaxPasswordBytes < MinPasswordBytes:
		return nil, errors.New("argon2 max password bytes below minimum length")
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash derives a fresh salted key and returns its PHC encoding. Secrets are
// hashed byte-for-byte with no Unicode normalisation.
func (a *Argon2) Hash(password string) (string, error) {
	if err := checkLength(password, MinPasswordBytes, a.cfg.MaxPasswordBytes); err != nil {
		return "", err
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	p := argon2Params{memory: a.cfg.Memory, time: a.cfg.Time, parallelism: a.cfg.Parallelism}
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, a.cfg.KeyLength)

	return encodeArgon2(argon2Hash{argon2Params: p, salt: salt, key: key}), nil
}

// Verify recomputes the key with the stored parameters and compares in
// constant time.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if len(password) > a.cfg.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	h, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// NeedsUpgrade reports whether the stored parameters are weaker than the
// configured ones or the key length differs.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := h.memory < a.cfg.Memory || h.time < a.cfg.Time || h.parallelism < a.cfg.Parallelism
	return weaker || uint32(len(h.key)) != a.cfg.KeyLength, nil
}

func encodeArgon2(h argon2Hash) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID, argon2.Version,
		h.memory, h.time, h.parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func decodeArgon2(encoded string) (argon2Hash, error) {
	var out argon2Hash

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return out, ErrMalformedHash
	}
	if fields[1] != argon2ID {
		return out, ErrUnsupportedAlgorithm
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return out, fmt.Errorf("%w: argon2 version %q", ErrUnsupportedAlgorithm, fields[2])
	}

	params, err := parseArgon2Params(fields[3])
	if err != nil {
		return out, err
	}
	out.argon2Params = params

	if out.salt, err = decodeB64(fields[4]); err != nil || len(out.salt) < int(floorSaltLength) {
		return out, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if out.key, err = decodeB64(fields[5]); err != nil || len(out.key) == 0 {
		return out, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return out, nil
}

// decodeB64 accepts both padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func parseArgon2Params(s string) (argon2Params, error) {
	var p argon2Params
	seen := 0
	for _, kv := range strings.Split(s, ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return p, fmt.Errorf("%w: parameter %q", ErrMalformedHash, kv)
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < floorMemoryKB {
				return p, fmt.Errorf("%w: memory", ErrMalformedHash)
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < floorTime {
				return p, fmt.Errorf("%w: time", ErrMalformedHash)
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < floorParallelism {
				return p, fmt.Errorf("%w: parallelism", ErrMalformedHash)
			}
			p.parallelism = uint8(v)
		default:
			return p, fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
		seen++
	}
	if seen != 3 || p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return p, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return p, nil
}
