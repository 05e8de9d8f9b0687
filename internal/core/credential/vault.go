// Package credential hashes and verifies account passwords.
//
// Vault derives hashes with Argon2id under a single salt shared by every
// account. Equal passwords produce equal hashes across accounts, so the
// scheme is NOT production grade: a real deployment needs a random salt per
// account. The fixed salt keeps hashes reproducible across restarts, which
// the snapshot restore path relies on.
package credential

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// DefaultSalt is the process-wide salt used when none is configured.
const DefaultSalt = "chathub-static-salt-v1"

const (
	hashPrefix = "argon2id"
	keyLength  = 32
)

// Upper bounds on the cost recorded in a stored hash. Verify refuses
// anything above them, so a tampered hash cannot demand unbounded work.
const (
	MaxTime      = 4
	MaxMemoryKiB = 64 * 1024
	MaxThreads   = 8
)

var (
	// ErrMalformedHash is returned by CheckHash for text that is not a
	// vault hash.
	ErrMalformedHash = errors.New("credential: malformed hash")

	// ErrHashCost is returned by CheckHash when the recorded cost is out
	// of range.
	ErrHashCost = errors.New("credential: hash cost out of range")
)

// Params are the Argon2id cost parameters.
type Params struct {
	Salt      string
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultParams returns moderate cost parameters.
func DefaultParams() Params {
	return Params{
		Salt:      DefaultSalt,
		Time:      1,
		MemoryKiB: 19 * 1024,
		Threads:   1,
	}
}

// Vault computes and checks password hashes. It is safe for concurrent use.
type Vault struct {
	params Params
}

// New creates a vault. Zero-valued parameters fall back to DefaultParams.
func New(p Params) *Vault {
	d := DefaultParams()
	if p.Salt == "" {
		p.Salt = d.Salt
	}
	if p.Time == 0 {
		p.Time = d.Time
	}
	if p.MemoryKiB == 0 {
		p.MemoryKiB = d.MemoryKiB
	}
	if p.Threads == 0 {
		p.Threads = d.Threads
	}
	return &Vault{params: p}
}

// CheckHash validates the format and cost bounds of an encoded hash
// without deriving anything.
func CheckHash(encoded string) error {
	_, _, err := decode(encoded)
	return err
}

// CheckParams reports whether p is within the bounds Verify accepts.
func CheckParams(p Params) error {
	return checkCost(p.Time, p.MemoryKiB, uint32(p.Threads))
}

func checkCost(time, memoryKiB, threads uint32) error {
	if time == 0 || time > MaxTime ||
		threads == 0 || threads > MaxThreads ||
		memoryKiB < 8*threads || memoryKiB > MaxMemoryKiB {
		return fmt.Errorf("%w: t=%d m=%d p=%d", ErrHashCost, time, memoryKiB, threads)
	}
	return nil
}

// Hash returns the encoded hash of password. The result is deterministic
// for a given vault configuration.
//
// Format: argon2id$t=<time>,m=<memory>,p=<threads>$<base64 key>
func (v *Vault) Hash(password string) string {
	return encode(v.params, derive(password, v.params))
}

// Verify re-hashes password with the parameters recorded in encoded and
// compares in constant time. Malformed input is a non-match.
func (v *Vault) Verify(password, encoded string) bool {
	p, want, err := decode(encoded)
	if err != nil {
		return false
	}
	p.Salt = v.params.Salt
	got := derive(password, p)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func derive(password string, p Params) []byte {
	return argon2.IDKey([]byte(password), []byte(p.Salt), p.Time, p.MemoryKiB, p.Threads, keyLength)
}

func encode(p Params, key []byte) string {
	return fmt.Sprintf("%s$t=%d,m=%d,p=%d$%s",
		hashPrefix, p.Time, p.MemoryKiB, p.Threads,
		base64.RawStdEncoding.EncodeToString(key))
}

func decode(encoded string) (Params, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != hashPrefix {
		return Params{}, nil, ErrMalformedHash
	}

	var p Params
	var threads uint32
	if _, err := fmt.Sscanf(parts[1], "t=%d,m=%d,p=%d", &p.Time, &p.MemoryKiB, &threads); err != nil {
		return Params{}, nil, ErrMalformedHash
	}
	if err := checkCost(p.Time, p.MemoryKiB, threads); err != nil {
		return Params{}, nil, err
	}
	p.Threads = uint8(threads)

	key, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(key) != keyLength {
		return Params{}, nil, ErrMalformedHash
	}
	return p, key, nil
}
