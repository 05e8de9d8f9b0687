package snapshot

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/chathub-go/pkg/crypto/adaptive"
)

// Encryption errors.
var (
	ErrPassphraseTooWeak = errors.New("snapshot: passphrase too weak (minimum 8 characters)")
	ErrPassphraseMissing = errors.New("snapshot: blob is encrypted but no passphrase is configured")
	ErrDecryptionFailed  = errors.New("snapshot: decryption failed - wrong passphrase or corrupted data")
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the per-blob salt length used in key derivation.
	SaltLength = 16

	keyLength = adaptive.KeySize

	// Upper bounds applied to KDF parameters read from a blob, so a
	// crafted envelope cannot ask for unbounded work.
	maxKDFTime      = 16
	maxKDFMemoryKiB = 1024 * 1024
	maxKDFThreads   = 64
)

// additionalData binds ciphertexts to this document format.
var additionalData = []byte("chathub-snapshot-v1")

// KDFParams are the Argon2id parameters used to stretch the passphrase.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams returns the parameters used when none are configured.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

func (p KDFParams) valid() bool {
	return p.Time > 0 && p.Time <= maxKDFTime &&
		p.MemoryKiB >= 8 && p.MemoryKiB <= maxKDFMemoryKiB &&
		p.Threads > 0 && p.Threads <= maxKDFThreads
}

// EncryptionConfig configures snapshot encryption. A nil Passphrase
// disables it.
type EncryptionConfig struct {
	Passphrase []byte

	// Algorithm selects the cipher. Empty picks the fastest one for the
	// running hardware.
	Algorithm adaptive.CipherType

	// KDF overrides the key stretching cost. Zero value means defaults.
	KDF KDFParams
}

// Enabled reports whether blobs should be encrypted.
func (c EncryptionConfig) Enabled() bool {
	return len(c.Passphrase) > 0
}

// Validate checks the encryption configuration.
func (c EncryptionConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if len(c.Passphrase) < MinPassphraseLength {
		return ErrPassphraseTooWeak
	}
	switch c.Algorithm {
	case "", adaptive.CipherAESGCM, adaptive.CipherChaCha20:
	default:
		return fmt.Errorf("snapshot: unsupported algorithm: %s", c.Algorithm)
	}
	if c.KDF != (KDFParams{}) && !c.KDF.valid() {
		return fmt.Errorf("snapshot: invalid kdf parameters %+v", c.KDF)
	}
	return nil
}

func (c EncryptionConfig) kdf() KDFParams {
	if c.KDF == (KDFParams{}) {
		return DefaultKDFParams()
	}
	return c.KDF
}

// envelope is the wire form of an encrypted snapshot.
type envelope struct {
	Encrypted bool                `json:"encrypted"`
	Algorithm adaptive.CipherType `json:"algorithm"`
	KDF       KDFParams           `json:"kdf"`
	Salt      []byte              `json:"salt"`
	Payload   []byte              `json:"payload"`
}

// seal encrypts plaintext into an envelope with a fresh salt.
func seal(cfg EncryptionConfig, plaintext []byte) (*envelope, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("snapshot: generate salt: %w", err)
	}

	env := &envelope{
		Encrypted: true,
		Algorithm: cfg.Algorithm,
		KDF:       cfg.kdf(),
		Salt:      salt,
	}

	c, err := newCipher(cfg.Passphrase, env)
	if err != nil {
		return nil, err
	}
	env.Algorithm = c.Type()

	env.Payload, err = c.Encrypt(plaintext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encrypt: %w", err)
	}
	return env, nil
}

// open decrypts an envelope.
func open(passphrase []byte, env *envelope) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrPassphraseMissing
	}
	if len(env.Salt) != SaltLength || !env.KDF.valid() {
		return nil, ErrDecryptionFailed
	}

	c, err := newCipher(passphrase, env)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.Decrypt(env.Payload, additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// newCipher stretches the passphrase with the envelope salt and derives a
// cipher key bound to the algorithm.
func newCipher(passphrase []byte, env *envelope) (*adaptive.Cipher, error) {
	master := argon2.IDKey(passphrase, env.Salt, env.KDF.Time, env.KDF.MemoryKiB, env.KDF.Threads, keyLength)
	defer ZeroKey(master)

	algo := env.Algorithm
	if algo == "" {
		algo = adaptive.Preferred()
	}

	key, err := DeriveSubkey(master, "chathub snapshot "+string(algo), keyLength)
	if err != nil {
		return nil, err
	}
	defer ZeroKey(key)

	c, err := adaptive.NewWithType(key, algo)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return c, nil
}

// DeriveSubkey derives a purpose-bound subkey from a master key using HKDF.
func DeriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("snapshot: derive subkey: %w", err)
	}
	return key, nil
}

// ZeroKey overwrites key material in place.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
