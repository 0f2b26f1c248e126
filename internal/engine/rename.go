package engine

import (
	"fmt"
	"strings"

	"github.com/s3fuse/corefs/internal/pqueue"
)

// Copier performs the provider COPY (metadata-directive REPLACE) and
// DELETE calls rename needs, one object at a time.
type Copier interface {
	Copy(srcPath, dstPath string) error
	Delete(path string) error
}

// Renamer implements spec §4.8. A single object renames as COPY+DELETE;
// a directory renames as two BucketReader passes (all copies, then all
// deletes) fanned out through the parallel work queue.
type Renamer struct {
	cache *Cache
	copier Copier
}

func NewRenamer(cache *Cache, copier Copier) *Renamer {
	return &Renamer{cache: cache, copier: copier}
}

// RenameObject renames a single non-directory object.
func (r *Renamer) RenameObject(srcPath, dstPath string) error {
	r.cache.Remove(srcPath)
	if err := r.copier.Copy(srcPath, dstPath); err != nil {
		return fmt.Errorf("engine: rename copy %q -> %q: %w", srcPath, dstPath, err)
	}
	if err := r.copier.Delete(srcPath); err != nil {
		return fmt.Errorf("engine: rename delete source %q: %w", srcPath, err)
	}
	r.cache.Remove(dstPath)
	r.cache.InvalidateParent(srcPath)
	r.cache.InvalidateParent(dstPath)
	return nil
}

// RenameDirectory renames every descendant of srcPrefix to dstPrefix.
// Pass 1 copies every key in parallel; only if every copy succeeds does
// pass 2 delete the sources. If any copy fails, no deletes run and the
// source subtree remains intact.
func (r *Renamer) RenameDirectory(lister Lister, srcPrefix, dstPrefix string, maxInFlight, maxRetries int) error {
	var keys []string
	for {
		page, _, more, errc := lister.Read(srcPrefix, 0)
		if errc != 0 {
			return fmt.Errorf("engine: list %q for rename: errno %d", srcPrefix, errc)
		}
		keys = append(keys, page...)
		if !more {
			break
		}
	}

	for _, k := range keys {
		r.cache.Remove(k)
	}

	opts := pqueue.Options{MaxInFlight: maxInFlight, MaxRetries: maxRetries}

	copyResult := pqueue.Run(len(keys), func(part int) int {
		src := keys[part]
		rel := strings.TrimPrefix(src, srcPrefix)
		dst := dstPrefix + rel
		if err := r.copier.Copy(src, dst); err != nil {
			return -5 // EIO-equivalent; caller maps via pkg/errors if needed
		}
		return 0
	}, opts)

	if copyResult != 0 {
		return fmt.Errorf("engine: rename directory %q -> %q: copy pass failed (%d)", srcPrefix, dstPrefix, copyResult)
	}

	deleteResult := pqueue.Run(len(keys), func(part int) int {
		src := keys[part]
		if err := r.copier.Delete(src); err != nil {
			return -5
		}
		return 0
	}, opts)

	for _, k := range keys {
		rel := strings.TrimPrefix(k, srcPrefix)
		r.cache.Remove(dstPrefix + rel)
	}
	r.cache.InvalidateParent(srcPrefix)
	r.cache.InvalidateParent(dstPrefix)

	if deleteResult != 0 {
		return fmt.Errorf("engine: rename directory %q -> %q: delete pass failed (%d)", srcPrefix, dstPrefix, deleteResult)
	}
	return nil
}
