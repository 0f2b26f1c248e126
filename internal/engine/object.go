package engine

import (
	"strconv"
	"sync"
	"syscall"
	"time"
)

// Kind identifies the concrete subtype backing an Object.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
	KindEncryptedFile
	KindFIFO
)

// HeadResult is the subset of a HEAD/GET response the object model cares
// about: status headers plus whatever xattr-shaped metadata the provider
// returned under its meta prefix.
type HeadResult struct {
	ContentType string
	ETag        string
	Size        int64
	Meta        map[string]string // already stripped of the provider meta prefix
}

// Object is the common contract every concrete subtype (File, Directory,
// Symlink, EncryptedFile) satisfies. The metadata cache only ever holds
// values through this interface.
type Object interface {
	Path() string
	Kind() Kind
	Mode() uint32
	UID() uint32
	GID() uint32
	Size() int64
	Blocks() int64
	ETag() string
	EffectiveMTime() time.Time
	Intact() bool
	Expiry() time.Time
	SetExpiry(time.Time)
	IsRemovable() bool
	Xattrs() map[string]*Xattr
	SetXattr(name string, x *Xattr)
	RemoveXattr(name string)

	// init copies a HEAD/GET response into the object's fields.
	init(path string, resp *HeadResult)
}

// base implements the Object fields and methods shared by every subtype.
// Concrete types embed it and override Kind/Mode/IsRemovable as needed.
type base struct {
	mu sync.Mutex

	path        string
	url         string
	contentType string
	etag        string
	mode        uint32
	uid         uint32
	gid         uint32
	mtime       time.Time
	mtimeETag   string // etag observed when mtime was last read from headers
	size        int64
	blocks      int64
	expiry      time.Time
	intact      bool
	xattrs      map[string]*Xattr
}

// defaultUID/defaultGID are applied when the object carries no owner
// metadata of its own (objects written by tools other than this
// filesystem); blockSize is the unit Blocks() counts in.
const (
	defaultUID  = 0
	defaultGID  = 0
	blockSize   = 512
)

func (o *base) Path() string { return o.path }

func (o *base) UID() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.uid
}

func (o *base) GID() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gid
}

func (o *base) Size() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.size
}

func (o *base) Blocks() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.blocks
}

func (o *base) ETag() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.etag
}

// EffectiveMTime returns the recorded mtime, unless the most recent HEAD's
// etag no longer matches mtimeETag (meaning metadata has not been
// explicitly republished since the object's content changed underneath
// it), in which case it falls back to zero so callers use Last-Modified.
func (o *base) EffectiveMTime() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mtimeETag != "" && o.mtimeETag != o.etag {
		return time.Time{}
	}
	return o.mtime
}

func (o *base) Intact() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.intact
}

func (o *base) Expiry() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.expiry
}

func (o *base) SetExpiry(t time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expiry = t
}

func (o *base) Xattrs() map[string]*Xattr {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*Xattr, len(o.xattrs))
	for k, v := range o.xattrs {
		out[k] = v
	}
	return out
}

func (o *base) SetXattr(name string, x *Xattr) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.xattrs == nil {
		o.xattrs = make(map[string]*Xattr)
	}
	o.xattrs[name] = x
}

func (o *base) RemoveXattr(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.xattrs, name)
}

// initCommon parses the headers every subtype shares: mode/uid/gid/mtime/
// mtime-etag plus any xattr-* keys. Subtype init() methods call this then
// layer their own fields on top.
func (o *base) initCommon(path string, resp *HeadResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.path = path
	o.contentType = resp.ContentType
	newETag := resp.ETag
	o.intact = o.etag == "" || o.etag == newETag
	o.etag = newETag
	o.size = resp.Size
	o.blocks = (resp.Size + blockSize - 1) / blockSize

	o.uid = defaultUID
	o.gid = defaultGID
	if v, ok := resp.Meta["mode"]; ok {
		if m, err := strconv.ParseUint(v, 8, 32); err == nil {
			o.mode = uint32(m)
		}
	}
	if v, ok := resp.Meta["uid"]; ok {
		if u, err := strconv.ParseUint(v, 10, 32); err == nil {
			o.uid = uint32(u)
		}
	}
	if v, ok := resp.Meta["gid"]; ok {
		if g, err := strconv.ParseUint(v, 10, 32); err == nil {
			o.gid = uint32(g)
		}
	}
	if v, ok := resp.Meta["mtime"]; ok {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			o.mtime = time.Unix(sec, 0)
		}
	}
	if v, ok := resp.Meta["mtime-etag"]; ok {
		o.mtimeETag = v
	}

	o.xattrs = make(map[string]*Xattr)
	for k, v := range resp.Meta {
		if !isXattrMetaKey(k) {
			continue
		}
		name, value, err := decodeXattrMetaEntry(k, v)
		if err != nil {
			continue
		}
		o.xattrs[name] = NewStaticXattr(name, value)
	}
}

// modeWithType ORs the S_IFxxx bits for kind onto the stored permission
// bits, so mode always reports the correct type regardless of what was
// persisted in metadata.
func modeWithType(kind Kind, stored uint32) uint32 {
	perm := stored &^ syscall.S_IFMT
	switch kind {
	case KindDirectory:
		return perm | syscall.S_IFDIR
	case KindSymlink:
		return perm | syscall.S_IFLNK
	case KindFIFO:
		return perm | syscall.S_IFIFO
	default:
		return perm | syscall.S_IFREG
	}
}
