// Package adaptive picks an AEAD cipher for the running hardware.
//
// AES-256-GCM is used where Go has hardware AES (amd64, arm64) and
// ChaCha20-Poly1305 elsewhere. Ciphertexts carry their random nonce as a
// prefix:
//
//	nonce | sealed(plaintext) | tag
//
// A Cipher is safe for concurrent use.
package adaptive
