package engine

import (
	"strings"
	"sync"
)

// Directory extends Object with an optional cached list of relative
// child names, invalidated on any mutation under its prefix.
type Directory struct {
	base

	mu        sync.Mutex
	children  []string
	hasCached bool
}

func (d *Directory) Kind() Kind        { return KindDirectory }
func (d *Directory) Mode() uint32      { return modeWithType(KindDirectory, 0755) }
func (d *Directory) IsRemovable() bool { return true }

func (d *Directory) init(path string, resp *HeadResult) {
	d.base.initCommon(path, resp)
}

// InvalidateChildren drops the memoized name list; the next Read()
// repopulates it from the bucket.
func (d *Directory) InvalidateChildren() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasCached = false
	d.children = nil
}

// Lister pages through a bucket listing scoped to Prefix, optionally
// grouping common prefixes under delimiter "/". Read reports more=true
// while further pages remain; err is 0 on success and a negative errno
// on failure.
type Lister interface {
	Read(prefix string, maxKeys int) (keys []string, commonPrefixes []string, more bool, err int)
}

// Filler receives each child name as Directory.Read walks the bucket
// listing; isDir is true for common-prefix entries.
type Filler func(name string, isDir bool)

// isDirectoryMarker reports whether key is the directory-marker object
// itself, which Read must skip (it is not a child of itself).
func isDirectoryMarker(prefix, key string) bool {
	return key == prefix
}

// Read walks lister over d's prefix, stripping the directory's own
// prefix off each key/common-prefix before calling fill, skipping the
// directory-marker object and reserved-prefix keys. When memoize is true
// the resulting name list is cached on the Directory for the next Read
// to reuse; IsEmpty does not consult it.
func (d *Directory) Read(lister Lister, memoize bool, precache func(childPath string, isDir bool), fill Filler) int {
	d.mu.Lock()
	if d.hasCached {
		names := d.children
		d.mu.Unlock()
		for _, n := range names {
			fill(strings.TrimSuffix(n, "/"), strings.HasSuffix(n, "/"))
		}
		return 0
	}
	d.mu.Unlock()

	prefix := d.path
	var names []string

	for {
		keys, prefixes, more, errc := lister.Read(prefix, 0)
		if errc != 0 {
			return errc
		}

		for _, p := range prefixes {
			rel := strings.TrimPrefix(p, prefix)
			rel = strings.TrimSuffix(rel, "/")
			if rel == "" || IsReservedPath(rel) {
				continue
			}
			names = append(names, rel+"/")
			fill(rel, true)
			if precache != nil {
				precache(prefix+rel+"/", true)
			}
		}

		for _, k := range keys {
			if isDirectoryMarker(prefix, k) {
				continue
			}
			rel := strings.TrimPrefix(k, prefix)
			if rel == "" || IsReservedPath(rel) {
				continue
			}
			names = append(names, rel)
			fill(rel, false)
			if precache != nil {
				precache(prefix+rel, false)
			}
		}

		if !more {
			break
		}
	}

	if memoize {
		d.mu.Lock()
		d.children = names
		d.hasCached = true
		d.mu.Unlock()
	}

	return 0
}

// IsEmpty issues a two-key listing; the directory is empty iff nothing
// but the directory marker itself comes back (no other key and no
// common prefix).
func (d *Directory) IsEmpty(lister Lister) (bool, int) {
	keys, prefixes, _, errc := lister.Read(d.path, 2)
	if errc != 0 {
		return false, errc
	}
	if len(prefixes) > 0 {
		return false, 0
	}
	for _, k := range keys {
		if !isDirectoryMarker(d.path, k) {
			return false, 0
		}
	}
	return true, 0
}
