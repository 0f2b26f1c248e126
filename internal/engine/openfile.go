package engine

import (
	"fmt"

	"github.com/s3fuse/corefs/internal/crypto"
)

// LocalStore is what the open-file engine needs from the local backing-
// file store: allocate/open a backing file for a path, truncate it,
// read/write byte ranges, report its size, and purge it.
type LocalStore interface {
	Create(path string, size int64) error
	Exists(path string) bool
	Truncate(path string, size int64) error
	ReadAt(path string, buf []byte, off int64) (int, error)
	WriteAt(path string, buf []byte, off int64) (int, error)
	Size(path string) (int64, error)
	Purge(path string) error
}

// Downloader fetches the full remote content of path into the local
// store, optionally feeding each chunk into onChunk for hash-list
// verification, and reports any MD5/SHA-256 mismatch as an error.
type Downloader interface {
	Download(path string, size int64, onChunk func(offset int64, chunk []byte)) error
}

// Uploader reads the local backing file and uploads it, feeding each
// chunk to onChunk and returning the new ETag.
type Uploader interface {
	Upload(path string, size int64, onChunk func(offset int64, chunk []byte)) (etag string, err error)
}

// OpenFileEngine implements spec §4.9 against a Cache, a LocalStore, and
// a Downloader/Uploader pair.
type OpenFileEngine struct {
	cache      *Cache
	store      LocalStore
	downloader Downloader
	uploader   Uploader

	verifyETagBeforeReopen bool
	persistOnRelease       bool
}

// NewOpenFileEngine builds an OpenFileEngine. verifyETag and persist
// mirror the spec's verify_etag_before_reopen and persistence knobs.
func NewOpenFileEngine(cache *Cache, store LocalStore, dl Downloader, ul Uploader, verifyETag, persist bool) *OpenFileEngine {
	return &OpenFileEngine{
		cache: cache, store: store, downloader: dl, uploader: ul,
		verifyETagBeforeReopen: verifyETag,
		persistOnRelease:       persist,
	}
}

// Open implements File.open: on the first reference it decides whether
// to truncate, reuse, or download a backing file, then returns once the
// download (if any) has at least been posted — it does not block for the
// download to finish; callers serialize on DOWNLOADING via Read/Write.
func (e *OpenFileEngine) Open(f *File, truncate bool) error {
	f.lockState()
	defer f.unlockState()

	f.refcount++
	if f.refcount > 1 {
		return nil
	}

	hasLocal := e.store.Exists(f.path)

	switch {
	case truncate && hasLocal:
		if err := e.store.Truncate(f.path, 0); err != nil {
			return fmt.Errorf("engine: truncate on open: %w", err)
		}
		f.hasLocal = true
		f.localSize = 0
		f.setState(StateDirty)
		return nil

	case hasLocal && e.verifyETagBeforeReopen:
		obj, err := e.cache.Get(f.path)
		if err == nil {
			if fresh, ok := obj.(*File); ok && fresh.ETag() != f.ETag() {
				_ = e.store.Purge(f.path)
				hasLocal = false
			}
		}
		fallthrough

	default:
		size := f.Size()
		if !hasLocal {
			if err := e.store.Create(f.path, size); err != nil {
				return fmt.Errorf("engine: create backing file: %w", err)
			}
		}
		f.hasLocal = true
		f.localSize = size

		if size > 0 && !truncate {
			if downloadable, derr := isDownloadable(f); !downloadable {
				f.asyncErr = derr
				return nil
			}
			f.setState(StateDownloading)
			go e.runDownload(f, size)
		}
		return nil
	}
}

// isDownloadable always reports true: the engine only sees a *File.
// Encrypted files are checked by EncryptedFile.IsDownloadable, which the
// FUSE adapter calls before Open.
func isDownloadable(f *File) (bool, error) {
	return true, nil
}

// readChunkFn returns a HashList.UpdateRange callback that re-reads
// the chunk at idx from the local backing file, clipped to size.
func (e *OpenFileEngine) readChunkFn(path string, size int64) func(idx int64) ([]byte, error) {
	return func(idx int64) ([]byte, error) {
		off := idx * crypto.ChunkSize
		n := int64(crypto.ChunkSize)
		if off+n > size {
			n = size - off
		}
		if n <= 0 {
			return nil, nil
		}
		buf := make([]byte, n)
		if _, err := e.store.ReadAt(path, buf, off); err != nil {
			return nil, err
		}
		return buf, nil
	}
}

func (e *OpenFileEngine) runDownload(f *File, size int64) {
	var hashList *crypto.HashList
	root := f.SHA256Root()
	if root != "" {
		hashList = crypto.NewHashList(size)
	}
	readChunk := e.readChunkFn(f.path, size)

	err := e.downloader.Download(f.path, size, func(offset int64, chunk []byte) {
		if _, werr := e.store.WriteAt(f.path, chunk, offset); werr != nil {
			return
		}
		if hashList != nil {
			_ = hashList.UpdateRange(offset, chunk, readChunk)
		}
	})

	f.lockState()
	if err == nil && hashList != nil {
		if hashList.Root() != root {
			err = fmt.Errorf("engine: sha256 mismatch downloading %q", f.path)
		}
	}
	f.asyncErr = err
	f.clearState(StateDownloading)
	f.unlockState()
}

// Release implements File.release: decrements refcount, and on reaching
// zero requires a clean state bitset, updates cached size, and optionally
// purges the backing file.
func (e *OpenFileEngine) Release(f *File) error {
	f.lockState()
	defer f.unlockState()

	f.refcount--
	if f.refcount > 0 {
		return nil
	}
	if f.state != 0 {
		return fmt.Errorf("engine: release of %q with outstanding state %v", f.path, f.state)
	}

	if size, err := e.store.Size(f.path); err == nil {
		f.base.mu.Lock()
		f.base.size = size
		f.base.mu.Unlock()
	}

	if !e.persistOnRelease {
		_ = e.store.Purge(f.path)
		f.hasLocal = false
	}
	return nil
}

// Read implements File.read: waits out any in-flight download, then
// propagates a latched async error before issuing the pread.
func (e *OpenFileEngine) Read(f *File, buf []byte, off int64) (int, error) {
	f.lockState()
	f.waitWhile(StateDownloading)
	if f.asyncErr != nil {
		err := f.asyncErr
		f.unlockState()
		return 0, err
	}
	f.unlockState()

	return e.store.ReadAt(f.path, buf, off)
}

// Write implements File.write: waits out download/upload, marks
// DIRTY|WRITING for the duration of the pwrite.
func (e *OpenFileEngine) Write(f *File, buf []byte, off int64) (int, error) {
	f.lockState()
	f.waitWhile(StateDownloading | StateUploading)
	if f.asyncErr != nil {
		err := f.asyncErr
		f.unlockState()
		return 0, err
	}
	f.setState(StateDirty | StateWriting)
	f.unlockState()

	n, err := e.store.WriteAt(f.path, buf, off)

	f.lockState()
	if err == nil && off+int64(n) > f.localSize {
		f.localSize = off + int64(n)
	}
	f.clearState(StateWriting)
	f.unlockState()

	return n, err
}

// Truncate implements File.truncate identically to Write but calling
// ftruncate on the local store.
func (e *OpenFileEngine) Truncate(f *File, size int64) error {
	f.lockState()
	f.waitWhile(StateDownloading | StateUploading)
	if f.asyncErr != nil {
		err := f.asyncErr
		f.unlockState()
		return err
	}
	f.setState(StateDirty | StateWriting)
	f.unlockState()

	err := e.store.Truncate(f.path, size)

	f.lockState()
	f.clearState(StateWriting)
	if err == nil {
		f.localSize = size
	}
	f.unlockState()

	return err
}

// Flush implements File.flush: waits out any other in-flight state, and
// if DIRTY, uploads the local file and records a fresh SHA-256 root.
func (e *OpenFileEngine) Flush(f *File) error {
	f.lockState()
	f.waitWhile(StateDownloading | StateUploading | StateWriting)
	if !f.state.Has(StateDirty) {
		f.unlockState()
		return nil
	}
	f.setState(StateUploading)
	size := f.localSize
	f.unlockState()

	hashList := crypto.NewHashList(size)
	readChunk := e.readChunkFn(f.path, size)
	etag, err := e.uploader.Upload(f.path, size, func(offset int64, chunk []byte) {
		_ = hashList.UpdateRange(offset, chunk, readChunk)
	})

	f.lockState()
	f.asyncErr = err
	if err == nil {
		f.sha256Root = hashList.Root()
		f.base.mu.Lock()
		f.base.etag = etag
		f.base.mu.Unlock()
	}
	f.clearState(StateUploading | StateDirty)
	result := f.asyncErr
	f.unlockState()

	return result
}
