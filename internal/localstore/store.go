package localstore

import (
	"container/list"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Store implements engine.LocalStore against real files under root. Each
// path is mapped to a filename under root derived from its SHA-1 so that
// arbitrarily deep/odd object paths never collide with the local
// filesystem's own path rules.
type Store struct {
	root string

	mu      sync.Mutex
	entries map[string]*list.Element // object path -> LRU element
	order   *list.List               // oldest (Back) .. newest (Front)
	total   int64
}

type storeEntry struct {
	path     string
	diskPath string
	size     int64
}

// NewStore creates a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("localstore: create root %q: %w", dir, err)
	}
	return &Store{
		root:    dir,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}, nil
}

func (s *Store) diskPath(path string) string {
	sum := sha1.Sum([]byte(path))
	return filepath.Join(s.root, fmt.Sprintf("%x", sum))
}

// Create allocates a sparse backing file of size bytes for path.
func (s *Store) Create(path string, size int64) error {
	disk := s.diskPath(path)
	f, err := os.OpenFile(disk, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("localstore: create %q: %w", path, err)
	}
	if size > 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return fmt.Errorf("localstore: truncate %q: %w", path, err)
		}
	}
	f.Close()

	s.touch(path, disk, size)
	return nil
}

// Exists reports whether path has a backing file already.
func (s *Store) Exists(path string) bool {
	s.mu.Lock()
	_, ok := s.entries[path]
	s.mu.Unlock()
	if ok {
		return true
	}
	_, err := os.Stat(s.diskPath(path))
	return err == nil
}

// Truncate resizes path's backing file, creating it if necessary.
func (s *Store) Truncate(path string, size int64) error {
	disk := s.diskPath(path)
	f, err := os.OpenFile(disk, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("localstore: open for truncate %q: %w", path, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("localstore: truncate %q: %w", path, err)
	}
	s.touch(path, disk, size)
	return nil
}

// ReadAt reads from path's backing file at offset off.
func (s *Store) ReadAt(path string, buf []byte, off int64) (int, error) {
	f, err := os.Open(s.diskPath(path))
	if err != nil {
		return 0, fmt.Errorf("localstore: open for read %q: %w", path, err)
	}
	defer f.Close()
	n, err := f.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	return n, nil
}

// ReadRange reads n bytes starting at off, allocating the buffer. It
// satisfies internal/transfer's LocalReader for feeding upload chunks
// without callers needing to pre-size a buffer themselves.
func (s *Store) ReadRange(path string, off, n int64) ([]byte, error) {
	buf := make([]byte, n)
	read, err := s.ReadAt(path, buf, off)
	if err != nil {
		return nil, err
	}
	return buf[:read], nil
}

// WriteAt writes to path's backing file at offset off, growing the
// tracked size if the write extends past the previously known length.
func (s *Store) WriteAt(path string, buf []byte, off int64) (int, error) {
	disk := s.diskPath(path)
	f, err := os.OpenFile(disk, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return 0, fmt.Errorf("localstore: open for write %q: %w", path, err)
	}
	defer f.Close()

	n, err := f.WriteAt(buf, off)
	if err != nil {
		return n, fmt.Errorf("localstore: write %q: %w", path, err)
	}

	info, statErr := f.Stat()
	if statErr == nil {
		s.touch(path, disk, info.Size())
	}
	return n, nil
}

// Size returns the current on-disk size of path's backing file.
func (s *Store) Size(path string) (int64, error) {
	info, err := os.Stat(s.diskPath(path))
	if err != nil {
		return 0, fmt.Errorf("localstore: stat %q: %w", path, err)
	}
	return info.Size(), nil
}

// Purge removes path's backing file and releases its tracked bytes.
func (s *Store) Purge(path string) error {
	s.mu.Lock()
	if el, ok := s.entries[path]; ok {
		entry := el.Value.(*storeEntry)
		s.total -= entry.size
		s.order.Remove(el)
		delete(s.entries, path)
	}
	s.mu.Unlock()

	if err := os.Remove(s.diskPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localstore: remove %q: %w", path, err)
	}
	return nil
}

// TotalBytes returns the store's running byte counter.
func (s *Store) TotalBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// OldestFirst returns tracked paths ordered from least- to
// most-recently-touched, for the purge monitor to walk.
func (s *Store) OldestFirst() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, s.order.Len())
	for el := s.order.Back(); el != nil; el = el.Prev() {
		paths = append(paths, el.Value.(*storeEntry).path)
	}
	return paths
}

func (s *Store) touch(path, disk string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[path]; ok {
		entry := el.Value.(*storeEntry)
		s.total += size - entry.size
		entry.size = size
		s.order.MoveToFront(el)
		return
	}

	entry := &storeEntry{path: path, diskPath: disk, size: size}
	el := s.order.PushFront(entry)
	s.entries[path] = el
	s.total += size
}
