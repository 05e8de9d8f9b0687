package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// EntropyBytes is the number of random bytes in a token body.
const EntropyBytes = 32

// BodyLength is the encoded length of a token body.
var BodyLength = base64.RawURLEncoding.EncodedLen(EntropyBytes)

// New returns prefix followed by a random body.
func New(prefix string) (string, error) {
	var b [EntropyBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("token: read random: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// WellFormed reports whether tok has the given prefix and a body New
// could have produced. It does not say the token was ever issued.
func WellFormed(prefix, tok string) bool {
	body, ok := strings.CutPrefix(tok, prefix)
	if !ok || len(body) != BodyLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(body)
	return err == nil
}

// Hash returns the hex SHA-256 digest of tok.
func Hash(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

