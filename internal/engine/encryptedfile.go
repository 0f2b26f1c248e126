package engine

import (
	"fmt"
	"strings"

	"github.com/s3fuse/corefs/internal/crypto"
)

const encMetaMarker = "s3fuse_enc_meta "

// EncryptedFile extends File with the per-file envelope: a metadata key
// (the bucket wrap key + the per-file metadata IV) and, once unlocked, a
// data key (per-file AES-CTR key + IV) used to transparently encrypt/
// decrypt local reads and writes.
type EncryptedFile struct {
	File

	metaIV       []byte // enc-iv, hex-decoded
	metaCipher   []byte // enc-metadata, hex-decoded
	wrapKey      []byte // bucket volume wrap key, supplied externally at mount time
	dataKey      *crypto.SymmetricKey
	unlocked     bool
	unlockErr    error
}

func (e *EncryptedFile) Kind() Kind { return KindEncryptedFile }

func (e *EncryptedFile) init(path string, resp *HeadResult) {
	e.File.init(path, resp)
	e.File.kind = KindEncryptedFile

	ivHex, hasIV := resp.Meta["enc-iv"]
	metaHex, hasMeta := resp.Meta["enc-metadata"]
	if !hasIV || !hasMeta {
		e.unlockErr = fmt.Errorf("engine: encrypted file %q missing envelope headers", path)
		return
	}

	iv, err := crypto.HexDecode(ivHex)
	if err != nil {
		e.unlockErr = fmt.Errorf("engine: decode enc-iv: %w", err)
		return
	}
	cipherBytes, err := crypto.HexDecode(metaHex)
	if err != nil {
		e.unlockErr = fmt.Errorf("engine: decode enc-metadata: %w", err)
		return
	}
	e.metaIV = iv
	e.metaCipher = cipherBytes
}

// Unlock decrypts the per-file metadata envelope with the bucket's wrap
// key, extracting the data key/IV and the recorded SHA-256 root. It is a
// no-op if already unlocked. Unlock requires the object to be "intact"
// (its etag matches the one recorded when metadata was last written);
// otherwise the stored envelope cannot be trusted.
func (e *EncryptedFile) Unlock(wrapKey []byte) error {
	e.lockState()
	defer e.unlockState()

	if e.unlocked {
		return nil
	}
	if e.unlockErr != nil {
		return e.unlockErr
	}
	if !e.Intact() {
		e.unlockErr = fmt.Errorf("engine: encrypted file %q envelope is stale (etag mismatch)", e.path)
		return e.unlockErr
	}

	plain, err := crypto.DecryptCBC(wrapKey, e.metaIV, e.metaCipher)
	if err != nil {
		e.unlockErr = fmt.Errorf("engine: decrypt metadata envelope: %w", err)
		return e.unlockErr
	}

	body := string(plain)
	if !strings.HasPrefix(body, encMetaMarker) {
		e.unlockErr = fmt.Errorf("engine: metadata envelope has unexpected marker")
		return e.unlockErr
	}
	body = strings.TrimPrefix(body, encMetaMarker)

	parts := strings.SplitN(body, "#", 2)
	dataKey, err := crypto.ParseSymmetricKey(parts[0])
	if err != nil {
		e.unlockErr = fmt.Errorf("engine: parse file data key: %w", err)
		return e.unlockErr
	}

	e.wrapKey = wrapKey
	e.dataKey = dataKey
	if len(parts) == 2 {
		e.sha256Root = parts[1]
	}
	e.unlocked = true
	return nil
}

// IsDownloadable reports whether reads/writes are permitted: an
// encrypted file without a data key reports false together with the
// unlock error (or a "no data key" error). The error carries no errno;
// the FUSE adapter turns a false result into EACCES.
func (e *EncryptedFile) IsDownloadable() (bool, error) {
	e.lockState()
	defer e.unlockState()
	if !e.unlocked {
		if e.unlockErr != nil {
			return false, e.unlockErr
		}
		return false, fmt.Errorf("engine: encrypted file %q has no data key", e.path)
	}
	return true, nil
}

// DataKey returns the per-file AES-CTR key/IV once unlocked.
func (e *EncryptedFile) DataKey() (*crypto.SymmetricKey, bool) {
	e.lockState()
	defer e.unlockState()
	return e.dataKey, e.unlocked
}

// SealEnvelope builds the enc-iv/enc-metadata header pair to persist
// after a fresh data key has been generated for a newly-created
// encrypted file, or after a key rotation.
func SealEnvelope(wrapKey []byte, dataKey *crypto.SymmetricKey, sha256Root string) (encIV, encMetadata string, err error) {
	metaIV, err := crypto.RandomIV(16)
	if err != nil {
		return "", "", fmt.Errorf("engine: generate metadata iv: %w", err)
	}
	body := encMetaMarker + dataKey.String() + "#" + sha256Root
	cipherBytes, err := crypto.EncryptCBC(wrapKey, metaIV, []byte(body))
	if err != nil {
		return "", "", fmt.Errorf("engine: encrypt metadata envelope: %w", err)
	}
	return crypto.HexEncode(metaIV), crypto.HexEncode(cipherBytes), nil
}
