package crypto

import (
	"encoding/base64"
	"encoding/hex"
)

// HexEncode returns the lowercase hex encoding of b.
func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// HexDecode decodes a lowercase or uppercase hex string.
func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// Base64Encode returns the standard base64 encoding of b.
func Base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Base64Decode decodes a standard base64 string.
func Base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
