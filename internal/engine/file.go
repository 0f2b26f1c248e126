package engine

import (
	"sync"

	"github.com/s3fuse/corefs/internal/crypto"
)

// State is a bitset of the open-file engine's transitional flags.
type State uint32

const (
	StateDownloading State = 1 << iota
	StateUploading
	StateWriting
	StateDirty
)

func (s State) Has(flag State) bool { return s&flag != 0 }

// File extends Object with the reference-counted, locally-backed state
// the open-file engine manages: refcount, status bitset, latched async
// error, local backing file, and hash-list/SHA-256 bookkeeping.
type File struct {
	base
	kind Kind

	mu   sync.Mutex
	cond *sync.Cond

	refcount int
	state    State
	asyncErr error

	localPath  string
	localSize  int64
	hasLocal   bool
	hashList   *crypto.HashList
	sha256Root string
}

func (f *File) Kind() Kind { return f.kind }

func (f *File) Mode() uint32 {
	f.base.mu.Lock()
	stored := f.base.mode
	f.base.mu.Unlock()
	return modeWithType(f.kind, stored)
}

// IsRemovable reports whether the metadata cache may evict this entry: a
// file with outstanding references must not be evicted out from under an
// open handle.
func (f *File) IsRemovable() bool {
	f.lockState()
	defer f.unlockState()
	return f.refcount == 0
}

func (f *File) init(path string, resp *HeadResult) {
	f.base.initCommon(path, resp)
	if v, ok := resp.Meta["sha256"]; ok {
		f.lockState()
		f.sha256Root = v
		f.unlockState()
	}
}

// lockState/unlockState guard the open-file state (refcount, status bits,
// async error, local-file bookkeeping) separately from the Object field
// mutex in base, matching the spec's distinction between per-path
// metadata locking and per-file open-state locking.
func (f *File) lockState() {
	if f.cond == nil {
		f.cond = sync.NewCond(&f.mu)
	}
	f.mu.Lock()
}

func (f *File) unlockState() {
	f.mu.Unlock()
}

// waitWhile blocks on the file's condition variable while any of flags is
// set. Caller must hold the state lock.
func (f *File) waitWhile(flags State) {
	for f.state&flags != 0 {
		f.cond.Wait()
	}
}

func (f *File) setState(flags State) {
	f.state |= flags
}

func (f *File) clearState(flags State) {
	f.state &^= flags
	f.cond.Broadcast()
}

// SHA256Root returns the last-verified plaintext SHA-256 root, or "" if
// none is known.
func (f *File) SHA256Root() string {
	f.lockState()
	defer f.unlockState()
	return f.sha256Root
}

// xattrReferences wires up the read-only xattrs every File exposes:
// current SHA-256 root and ETag — computed live rather than
// stored, per the spec's "reference" xattr variant.
func (f *File) xattrReferences() map[string]*Xattr {
	return map[string]*Xattr{
		"s3fuse-sha256": NewReferenceXattr("s3fuse-sha256", func() []byte { return []byte(f.SHA256Root()) }),
		"s3fuse-etag":   NewReferenceXattr("s3fuse-etag", func() []byte { return []byte(f.ETag()) }),
	}
}
