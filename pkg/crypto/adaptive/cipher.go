package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the key length accepted by every cipher in this package.
const KeySize = 32

// CipherType names an AEAD algorithm. It is persisted in snapshot
// envelopes, so the values must not change.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

var (
	ErrUnknownCipher      = errors.New("adaptive: unknown cipher type")
	ErrInvalidKeySize     = errors.New("adaptive: key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("adaptive: ciphertext too short")
)

// ParseCipherType accepts the persisted names plus "" (meaning Preferred).
func ParseCipherType(s string) (CipherType, error) {
	switch t := CipherType(s); t {
	case "":
		return Preferred(), nil
	case CipherAESGCM, CipherChaCha20:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCipher, s)
	}
}

// Preferred returns the fastest cipher for GOARCH. Go's crypto/aes uses
// AES-NI on amd64 and the ARMv8 crypto extensions on arm64.
func Preferred() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// Cipher seals and opens messages with a fresh random nonce per call.
type Cipher struct {
	typ  CipherType
	aead cipher.AEAD
}

// New returns the Preferred cipher keyed with key.
func New(key []byte) (*Cipher, error) {
	return NewWithType(key, Preferred())
}

// NewWithType returns a cipher of type t keyed with key.
func NewWithType(key []byte, t CipherType) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch t {
	case CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, t)
	}
	if err != nil {
		return nil, fmt.Errorf("adaptive: %s: %w", t, err)
	}
	return &Cipher{typ: t, aead: aead}, nil
}

// Type returns the algorithm in use.
func (c *Cipher) Type() CipherType { return c.typ }

// Overhead is the number of bytes Encrypt adds to a plaintext.
func (c *Cipher) Overhead() int { return c.aead.NonceSize() + c.aead.Overhead() }

// Encrypt seals plaintext, authenticating additionalData alongside it.
func (c *Cipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	out := make([]byte, n, n+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("adaptive: nonce: %w", err)
	}
	return c.aead.Seal(out, out[:n], plaintext, additionalData), nil
}

// Decrypt opens a ciphertext produced by Encrypt with the same key, type
// and additionalData.
func (c *Cipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(ciphertext) < n+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, ciphertext[:n], ciphertext[n:], additionalData)
}
