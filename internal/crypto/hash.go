package crypto

import (
	"crypto/hmac"
	"crypto/md5"  //nolint:gosec // MD5 required for S3 ETag compatibility, not used for security
	"crypto/sha1" //nolint:gosec // SHA-1 required for AWS/IIJ signature v2 compatibility
	"crypto/sha256"
	"hash"
)

// MD5Sum returns the MD5 digest of data. Used only to verify S3 ETags,
// never as a security boundary.
func MD5Sum(data []byte) []byte {
	sum := md5.Sum(data) //nolint:gosec
	return sum[:]
}

// SHA256Sum returns the SHA-256 digest of data.
func SHA256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// NewSHA256 returns a fresh streaming SHA-256 hasher.
func NewSHA256() hash.Hash {
	return sha256.New()
}

// HMACSHA1 computes HMAC-SHA1(key, data), used by the AWS v2 and IIJ GIO
// request-signing schemes.
func HMACSHA1(key, data []byte) []byte {
	mac := hmac.New(sha1.New, key) //nolint:gosec
	mac.Write(data)
	return mac.Sum(nil)
}

// LooksLikeMD5Hex reports whether s has the shape of a hex-encoded MD5 sum
// (32 hex characters), the heuristic used to decide whether an ETag is
// integrity-checkable against MD5(body).
func LooksLikeMD5Hex(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
