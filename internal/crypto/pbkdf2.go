package crypto

import (
	"crypto/sha1" //nolint:gosec // RFC 6070/2898 mandates SHA-1 for this KDF construction

	"golang.org/x/crypto/pbkdf2"
)

// VolumeKeyPBKDF2Rounds is the round count used to derive a bucket's wrap
// key from the user password.
const VolumeKeyPBKDF2Rounds = 8192

// VolumeKeyDerivedLen is the byte length of the derived wrap key (AES-256).
const VolumeKeyDerivedLen = 32

// DeriveKey runs PBKDF2-HMAC-SHA1 over password with salt, producing
// keyLen bytes after the given number of rounds. Matches RFC 6070 test
// vectors for SHA-1 at rounds=1,2,4096.
func DeriveKey(password, salt []byte, rounds, keyLen int) []byte {
	return pbkdf2.Key(password, salt, rounds, keyLen, sha1.New) //nolint:gosec
}

// DeriveVolumeWrapKey derives the AES-256 key used to wrap a bucket's
// volume key, salted with the bucket name per spec.
func DeriveVolumeWrapKey(password, bucketName string) []byte {
	return DeriveKey([]byte(password), []byte(bucketName), VolumeKeyPBKDF2Rounds, VolumeKeyDerivedLen)
}
