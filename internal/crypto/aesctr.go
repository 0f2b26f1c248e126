package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// CTRBlockLen is the AES block size used as the CTR counter granularity.
const CTRBlockLen = aes.BlockSize

// CTRIVLen is the length of the caller-supplied base IV; the low 8 bytes of
// the 16-byte block counter are filled in from the byte offset.
const CTRIVLen = 8

// ctrCounterIV builds the 16-byte counter block for AES-CTR at the given
// byte offset: the high 8 bytes are the file's random IV, the low 8 bytes
// are the block index (offset / CTRBlockLen), big-endian.
func ctrCounterIV(baseIV []byte, offset int64) ([]byte, error) {
	if len(baseIV) != CTRIVLen {
		return nil, fmt.Errorf("aes-ctr: iv must be %d bytes, got %d", CTRIVLen, len(baseIV))
	}
	if offset%CTRBlockLen != 0 {
		return nil, fmt.Errorf("aes-ctr: offset %d is not block-aligned (block=%d)", offset, CTRBlockLen)
	}

	iv := make([]byte, CTRBlockLen)
	copy(iv, baseIV)
	binary.BigEndian.PutUint64(iv[8:], uint64(offset/CTRBlockLen))
	return iv, nil
}

// EncryptAtOffset XORs plaintext against the AES-256-CTR keystream
// beginning at the block-aligned byte offset. AES-CTR is symmetric, so the
// same function decrypts: DecryptAtOffset is an alias.
func EncryptAtOffset(key, baseIV []byte, offset int64, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes-ctr: new cipher: %w", err)
	}
	iv, err := ctrCounterIV(baseIV, offset)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(plaintext))
	stream := cipher.NewCTR(block, iv)
	stream.XORKeyStream(out, plaintext)
	return out, nil
}

// DecryptAtOffset reverses EncryptAtOffset; CTR mode is its own inverse.
func DecryptAtOffset(key, baseIV []byte, offset int64, ciphertext []byte) ([]byte, error) {
	return EncryptAtOffset(key, baseIV, offset, ciphertext)
}
