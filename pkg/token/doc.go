// Package token issues opaque bearer tokens and the digests they are
// stored under.
//
// A token is a short prefix followed by the base64url encoding of 32
// random bytes:
//
//	chtk_3q2-7wHn...   (prefix + 43 characters)
//
// Only Hash(token) should ever be kept server side. A presented token is
// looked up by its digest, so the raw value never needs comparing.
package token
