package crypto

import (
	"context"
	"fmt"
	"strings"
)

// volumeKeyVersionPrefix is the literal version marker stored ahead of the
// hex data-encrypting key inside a volume-key object.
const volumeKeyVersionPrefix = "s3fuse-00 "

// DataKeyLen is the length in bytes of a bucket's data-encrypting key
// (AES-256).
const DataKeyLen = 32

// ObjectStore is the minimal object operations the volume-key manager
// needs: GET/PUT/COPY-with-precondition/DELETE against a bucket. It is
// satisfied by internal/storage/s3.Backend through a thin adapter so this
// package never imports the storage layer.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, string, error)
	PutObject(ctx context.Context, key string, data []byte) (etag string, err error)
	CopyObjectIfMatch(ctx context.Context, srcKey, dstKey, matchETag string) error
	DeleteObject(ctx context.Context, key string) error
}

// VolumeKeyManager loads, creates, and rotates the per-bucket data-
// encrypting key, wrapped under a password-derived (or locally persisted)
// wrap key.
type VolumeKeyManager struct {
	store    ObjectStore
	objectID string // e.g. ".s3fuse/volume_key"
	wrapKey  []byte
}

// NewVolumeKeyManager builds a manager for the volume-key object at
// objectID, wrapped with wrapKey (32 bytes, AES-256).
func NewVolumeKeyManager(store ObjectStore, objectID string, wrapKey []byte) *VolumeKeyManager {
	return &VolumeKeyManager{store: store, objectID: objectID, wrapKey: wrapKey}
}

// Load reads and decrypts the existing volume key, returning the raw
// data-encrypting key bytes.
func (m *VolumeKeyManager) Load(ctx context.Context) ([]byte, error) {
	body, _, err := m.store.GetObject(ctx, m.objectID)
	if err != nil {
		return nil, fmt.Errorf("volumekey: get %s: %w", m.objectID, err)
	}

	ciphertext, err := Base64Decode(string(body))
	if err != nil {
		return nil, fmt.Errorf("volumekey: base64 decode: %w", err)
	}
	if len(ciphertext) < CTRBlockLen {
		return nil, fmt.Errorf("volumekey: ciphertext too short")
	}
	iv := ciphertext[:CTRBlockLen]
	plaintext, err := DecryptCBC(m.wrapKey, iv, ciphertext[CTRBlockLen:])
	if err != nil {
		return nil, fmt.Errorf("volumekey: decrypt: %w", err)
	}

	s := string(plaintext)
	if !strings.HasPrefix(s, volumeKeyVersionPrefix) {
		return nil, fmt.Errorf("volumekey: bad version marker, wrong password or corrupted object")
	}
	hexKey := strings.TrimPrefix(s, volumeKeyVersionPrefix)
	key, err := HexDecode(hexKey)
	if err != nil {
		return nil, fmt.Errorf("volumekey: decode data key: %w", err)
	}
	return key, nil
}

// Create generates a new random data-encrypting key, wraps it, and stores
// it directly at the volume-key object path (used only when no volume key
// exists yet for the bucket).
func (m *VolumeKeyManager) Create(ctx context.Context) ([]byte, error) {
	dataKey := make([]byte, DataKeyLen)
	if err := fillRandom(dataKey); err != nil {
		return nil, err
	}
	if err := m.store.DeleteObject(ctx, m.objectID); err != nil {
		// best-effort: object may not exist yet
		_ = err
	}
	ciphertext, iv, err := m.wrap(dataKey)
	if err != nil {
		return nil, err
	}
	body := Base64Encode(append(append([]byte{}, iv...), ciphertext...))
	if _, err := m.store.PutObject(ctx, m.objectID, []byte(body)); err != nil {
		return nil, fmt.Errorf("volumekey: put %s: %w", m.objectID, err)
	}
	return dataKey, nil
}

// Rotate re-wraps the existing data key under a new wrap key using
// write-temp-then-copy-on-match-etag-then-delete-temp, so the old key
// object is only replaced once the new temp object is confirmed durable
// and unchanged.
func (m *VolumeKeyManager) Rotate(ctx context.Context, newWrapKey []byte) error {
	dataKey, err := m.Load(ctx)
	if err != nil {
		return fmt.Errorf("volumekey: rotate load: %w", err)
	}

	tmpID := m.objectID + "_tmp_" + randomSuffix()
	ciphertext, iv, err := wrapWithKey(newWrapKey, dataKey)
	if err != nil {
		return err
	}
	body := Base64Encode(append(append([]byte{}, iv...), ciphertext...))

	etag, err := m.store.PutObject(ctx, tmpID, []byte(body))
	if err != nil {
		return fmt.Errorf("volumekey: put temp %s: %w", tmpID, err)
	}

	if err := m.store.CopyObjectIfMatch(ctx, tmpID, m.objectID, etag); err != nil {
		return fmt.Errorf("volumekey: copy temp over %s: %w", m.objectID, err)
	}

	if err := m.store.DeleteObject(ctx, tmpID); err != nil {
		return fmt.Errorf("volumekey: delete temp %s: %w", tmpID, err)
	}

	m.wrapKey = newWrapKey
	return nil
}

func (m *VolumeKeyManager) wrap(dataKey []byte) (ciphertext, iv []byte, err error) {
	return wrapWithKey(m.wrapKey, dataKey)
}

func wrapWithKey(wrapKey, dataKey []byte) (ciphertext, iv []byte, err error) {
	iv = make([]byte, CTRBlockLen)
	if err := fillRandom(iv); err != nil {
		return nil, nil, err
	}
	plaintext := []byte(volumeKeyVersionPrefix + HexEncode(dataKey))
	ct, err := EncryptCBC(wrapKey, iv, plaintext)
	if err != nil {
		return nil, nil, fmt.Errorf("volumekey: wrap: %w", err)
	}
	return ct, iv, nil
}
