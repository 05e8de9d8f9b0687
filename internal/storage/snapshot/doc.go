// Package snapshot defines the persisted snapshot document and its
// optional passphrase encryption.
//
// A plaintext blob is the JSON document itself. An encrypted blob is a
// JSON envelope:
//
//	{"encrypted":true,"algorithm":"aes-gcm","kdf":{...},"salt":"...","payload":"..."}
//
// The key is Argon2id(passphrase, salt) narrowed with HKDF per algorithm.
// Decode validates the document in full; callers may trust a returned
// document without further checks.
package snapshot
