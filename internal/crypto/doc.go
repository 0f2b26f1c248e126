// Package crypto implements the primitive building blocks used by the
// encryption layer: codecs, hashing, PBKDF2 key derivation, AES-CBC and
// AES-CTR ciphers, chunked hash lists, and the owner-only "private file"
// reader/writer used to persist locally-held key material.
package crypto
