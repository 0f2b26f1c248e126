package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Create(path string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = make([]byte, size)
	return nil
}
func (s *memStore) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[path]
	return ok
}
func (s *memStore) Truncate(path string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = make([]byte, size)
	return nil
}
func (s *memStore) ReadAt(path string, buf []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data[path]
	if off >= int64(len(d)) {
		return 0, nil
	}
	n := copy(buf, d[off:])
	return n, nil
}
func (s *memStore) WriteAt(path string, buf []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data[path]
	need := off + int64(len(buf))
	if need > int64(len(d)) {
		grown := make([]byte, need)
		copy(grown, d)
		d = grown
	}
	copy(d[off:], buf)
	s.data[path] = d
	return len(buf), nil
}
func (s *memStore) Size(path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.data[path])), nil
}
func (s *memStore) Purge(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, path)
	return nil
}

type fakeDownloader struct {
	body []byte
}

func (d *fakeDownloader) Download(path string, size int64, onChunk func(int64, []byte)) error {
	onChunk(0, d.body)
	return nil
}

type fakeUploader struct {
	store *memStore
	etag  string
}

func (u *fakeUploader) Upload(path string, size int64, onChunk func(int64, []byte)) (string, error) {
	buf := make([]byte, size)
	_, _ = u.store.ReadAt(path, buf, 0)
	onChunk(0, buf)
	return u.etag, nil
}

func newTestFile(path string, size int64) *File {
	f := &File{kind: KindFile}
	f.init(path, &HeadResult{ContentType: "text/plain", ETag: "orig-etag", Size: size})
	return f
}

func TestOpenDownloadsOnFirstOpen(t *testing.T) {
	store := newMemStore()
	dl := &fakeDownloader{body: []byte("hello world")}
	ul := &fakeUploader{store: store, etag: "new-etag"}
	cache := NewCache(&fakeResolver{resp: &HeadResult{}}, NewRegistry(), time.Minute, 0)
	defer cache.Close()
	eng := NewOpenFileEngine(cache, store, dl, ul, false, false)

	f := newTestFile("a.txt", 11)
	require.NoError(t, eng.Open(f, false))

	require.Eventually(t, func() bool {
		f.lockState()
		defer f.unlockState()
		return !f.state.Has(StateDownloading)
	}, time.Second, time.Millisecond)

	buf := make([]byte, 11)
	n, err := eng.Read(f, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(buf[:n]))
}

func TestWriteMarksDirtyAndFlushUploads(t *testing.T) {
	store := newMemStore()
	dl := &fakeDownloader{body: nil}
	ul := &fakeUploader{store: store, etag: "new-etag"}
	cache := NewCache(&fakeResolver{resp: &HeadResult{}}, NewRegistry(), time.Minute, 0)
	defer cache.Close()
	eng := NewOpenFileEngine(cache, store, dl, ul, false, false)

	f := newTestFile("b.txt", 0)
	require.NoError(t, eng.Open(f, false))

	n, err := eng.Write(f, []byte("payload"), 0)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	f.lockState()
	require.True(t, f.state.Has(StateDirty))
	f.unlockState()

	require.NoError(t, eng.Flush(f))

	f.lockState()
	require.False(t, f.state.Has(StateDirty))
	require.Equal(t, "new-etag", f.etag)
	f.unlockState()
}

func TestReleaseRefusesWithOutstandingState(t *testing.T) {
	store := newMemStore()
	dl := &fakeDownloader{}
	ul := &fakeUploader{store: store}
	cache := NewCache(&fakeResolver{resp: &HeadResult{}}, NewRegistry(), time.Minute, 0)
	defer cache.Close()
	eng := NewOpenFileEngine(cache, store, dl, ul, false, false)

	f := newTestFile("c.txt", 0)
	require.NoError(t, eng.Open(f, false))
	_, _ = eng.Write(f, []byte("x"), 0)

	err := eng.Release(f)
	require.Error(t, err)
	require.Contains(t, fmt.Sprint(err), "outstanding state")
}
