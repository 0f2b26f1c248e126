package crypto

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeObjectStore is an in-memory ObjectStore used to exercise the volume
// key read/write/rotate paths without a live bucket.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	etags   map[string]string
	seq     int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (f *fakeObjectStore) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("no such object: %s", key)
	}
	return data, f.etags[key], nil
}

func (f *fakeObjectStore) PutObject(ctx context.Context, key string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	etag := fmt.Sprintf("etag-%d", f.seq)
	f.objects[key] = append([]byte{}, data...)
	f.etags[key] = etag
	return etag, nil
}

func (f *fakeObjectStore) CopyObjectIfMatch(ctx context.Context, srcKey, dstKey, matchETag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.etags[srcKey] != matchETag {
		return fmt.Errorf("etag mismatch: %s != %s", f.etags[srcKey], matchETag)
	}
	f.seq++
	newETag := fmt.Sprintf("etag-%d", f.seq)
	f.objects[dstKey] = append([]byte{}, f.objects[srcKey]...)
	f.etags[dstKey] = newETag
	return nil
}

func (f *fakeObjectStore) DeleteObject(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	delete(f.etags, key)
	return nil
}

func TestVolumeKeyCreateAndLoadRoundTrip(t *testing.T) {
	store := newFakeObjectStore()
	wrapKey := DeriveVolumeWrapKey("hunter2", "my-bucket")
	mgr := NewVolumeKeyManager(store, ".s3fuse/volume_key", wrapKey)

	created, err := mgr.Create(context.Background())
	require.NoError(t, err)
	require.Len(t, created, DataKeyLen)

	loaded, err := mgr.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, created, loaded)
}

func TestVolumeKeyLoadWrongPasswordFails(t *testing.T) {
	store := newFakeObjectStore()
	wrapKey := DeriveVolumeWrapKey("hunter2", "my-bucket")
	mgr := NewVolumeKeyManager(store, ".s3fuse/volume_key", wrapKey)
	_, err := mgr.Create(context.Background())
	require.NoError(t, err)

	wrongMgr := NewVolumeKeyManager(store, ".s3fuse/volume_key", DeriveVolumeWrapKey("wrong", "my-bucket"))
	_, err = wrongMgr.Load(context.Background())
	require.Error(t, err)
}

func TestVolumeKeyRotatePreservesDataKey(t *testing.T) {
	store := newFakeObjectStore()
	oldWrap := DeriveVolumeWrapKey("hunter2", "my-bucket")
	mgr := NewVolumeKeyManager(store, ".s3fuse/volume_key", oldWrap)
	dataKey, err := mgr.Create(context.Background())
	require.NoError(t, err)

	newWrap := DeriveVolumeWrapKey("new-password", "my-bucket")
	err = mgr.Rotate(context.Background(), newWrap)
	require.NoError(t, err)

	rotatedMgr := NewVolumeKeyManager(store, ".s3fuse/volume_key", newWrap)
	loaded, err := rotatedMgr.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, dataKey, loaded)

	// the temp object must not remain after rotation
	store.mu.Lock()
	for k := range store.objects {
		require.NotContains(t, k, "_tmp_")
	}
	store.mu.Unlock()
}
