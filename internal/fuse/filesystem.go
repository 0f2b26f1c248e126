package fuse

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/s3fuse/corefs/internal/engine"
	"github.com/s3fuse/corefs/internal/localstore"
	"github.com/s3fuse/corefs/internal/transfer"
	"github.com/s3fuse/corefs/pkg/types"
	"github.com/s3fuse/corefs/pkg/utils"
)

// safeInt64ToUint64 safely converts int64 to uint64, preventing negative values
func safeInt64ToUint64(i int64) uint64 {
	if i < 0 {
		return 0
	}
	return uint64(i)
}

// safeIntToUint32 safely converts int to uint32, preventing overflow
func safeIntToUint32(i int) uint32 {
	if i < 0 {
		return 0
	}
	if i > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(i)
}

// FileSystem implements the FUSE filesystem interface against the object
// model in internal/engine: a path-keyed metadata Cache, a reference-
// counted OpenFileEngine backed by a local-disk Store, and a Renamer for
// COPY+DELETE-based moves.
type FileSystem struct {
	fs.Inode

	backend  types.Backend
	registry *engine.Registry
	cache    *engine.Cache
	open     *engine.OpenFileEngine
	renamer  *engine.Renamer
	lister   engine.Lister
	local    *localstore.Store

	config *Config

	mu         sync.Mutex
	nextHandle uint64

	stats *Stats

	// wrapKey is the bucket volume wrap key encrypted files unlock
	// against; nil until SetVolumeKey is called (by cmd/corefs-mount
	// when encryption is enabled).
	wrapKey []byte

	logger *utils.StructuredLogger
}

// Config represents FUSE filesystem configuration
type Config struct {
	// Mount options
	MountPoint string `yaml:"mount_point"`
	ReadOnly   bool   `yaml:"read_only"`
	AllowOther bool   `yaml:"allow_other"`

	// FUSE options
	DirectIO  bool   `yaml:"direct_io"`
	KeepCache bool   `yaml:"keep_cache"`
	BigWrites bool   `yaml:"big_writes"`
	MaxRead   uint32 `yaml:"max_read"`
	MaxWrite  uint32 `yaml:"max_write"`

	// Filesystem behavior
	DefaultUID  uint32        `yaml:"default_uid"`
	DefaultGID  uint32        `yaml:"default_gid"`
	DefaultMode uint32        `yaml:"default_mode"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`

	// Local backing store for open files (internal/localstore)
	LocalDir string `yaml:"local_dir"`

	// Transfer tuning (internal/transfer)
	MultipartThreshold int64 `yaml:"multipart_threshold"`
	MultipartChunkSize int64 `yaml:"multipart_chunk_size"`
	Concurrency        int   `yaml:"concurrency"`

	// PersistOnRelease keeps a file's local backing copy after the last
	// reference closes, instead of purging it (spec.md §4.9).
	PersistOnRelease bool `yaml:"persist_on_release"`

	// Logger receives the filesystem's operational log output. When nil,
	// a default stdout StructuredLogger is created.
	Logger *utils.StructuredLogger `yaml:"-"`
}

// Stats tracks filesystem operation statistics
type Stats struct {
	mu sync.RWMutex

	// Operation counts
	Lookups int64 `json:"lookups"`
	Opens   int64 `json:"opens"`
	Reads   int64 `json:"reads"`
	Writes  int64 `json:"writes"`
	Creates int64 `json:"creates"`
	Deletes int64 `json:"deletes"`

	// Data transfer
	BytesRead    int64 `json:"bytes_read"`
	BytesWritten int64 `json:"bytes_written"`

	// Cache statistics
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	// Error counts
	Errors int64 `json:"errors"`

	// Performance metrics
	AvgReadTime   time.Duration `json:"avg_read_time"`
	AvgWriteTime  time.Duration `json:"avg_write_time"`
	AvgLookupTime time.Duration `json:"avg_lookup_time"`
}

// NewFileSystem builds a FileSystem over backend: a metadata Cache
// resolving HEADs through backend, an OpenFileEngine backed by a local
// Store rooted at config.LocalDir, and a Renamer using backend's
// GET+PUT-based Copier. If backend additionally satisfies
// multipartBackend, uploads above the configured threshold split into
// parts through internal/transfer's AWS/IIJ multipart client.
func NewFileSystem(backend types.Backend, config *Config) (*FileSystem, error) {
	if config == nil {
		config = &Config{}
	}
	if config.DefaultMode == 0 {
		config.DefaultMode = 0644
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.Concurrency == 0 {
		config.Concurrency = 16
	}
	if config.LocalDir == "" {
		config.LocalDir = "/var/tmp/corefs"
	}
	if config.Logger == nil {
		defaultLogger, err := utils.NewStructuredLogger(utils.DefaultStructuredLoggerConfig())
		if err != nil {
			return nil, fmt.Errorf("fuse: build default logger: %w", err)
		}
		config.Logger = defaultLogger
	}
	logger := config.Logger.WithComponent("fuse")

	local, err := localstore.NewStore(config.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("fuse: open local store %q: %w", config.LocalDir, err)
	}

	registry := engine.NewRegistry()
	resolver := &backendResolver{backend: backend}
	cache := engine.NewCache(resolver, registry, config.CacheTTL, config.CacheTTL)

	downloader := transfer.NewDownloader(backend, 0, config.Concurrency)

	var multipartClient transfer.MultipartClient
	if mp, ok := backend.(multipartBackend); ok {
		multipartClient = transfer.NewAWSMultipartClient(mp)
	}
	uploader := transfer.NewUploader(local, &metaSinglePutter{backend: backend, cache: cache},
		multipartClient, config.MultipartThreshold, config.MultipartChunkSize, config.Concurrency)

	openEngine := engine.NewOpenFileEngine(cache, local, downloader, uploader, true, config.PersistOnRelease)

	lister := &backendLister{backend: backend}
	renamer := engine.NewRenamer(cache, &backendCopier{backend: backend})

	filesystem := &FileSystem{
		backend:    backend,
		registry:   registry,
		cache:      cache,
		open:       openEngine,
		renamer:    renamer,
		lister:     lister,
		local:      local,
		config:     config,
		nextHandle: 1,
		stats:      &Stats{},
		logger:     logger,
	}
	return filesystem, nil
}

// SetVolumeKey installs the bucket's volume wrap key, enabling encrypted
// files to unlock on Open. Safe to call before or after mounting.
func (fsys *FileSystem) SetVolumeKey(key []byte) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.wrapKey = append([]byte(nil), key...)
}

// Root returns the root inode
func (fsys *FileSystem) Root() fs.InodeEmbedder {
	return &DirectoryNode{fsys: fsys, path: ""}
}

// GetStats returns current filesystem statistics
func (fsys *FileSystem) GetStats() *Stats {
	fsys.stats.mu.RLock()
	defer fsys.stats.mu.RUnlock()

	return &Stats{
		Lookups:      fsys.stats.Lookups,
		Opens:        fsys.stats.Opens,
		Reads:        fsys.stats.Reads,
		Writes:       fsys.stats.Writes,
		Creates:      fsys.stats.Creates,
		Deletes:      fsys.stats.Deletes,
		BytesRead:    fsys.stats.BytesRead,
		BytesWritten: fsys.stats.BytesWritten,
		CacheHits:    fsys.stats.CacheHits,
		CacheMisses:  fsys.stats.CacheMisses,
		Errors:       fsys.stats.Errors,
	}
}

func (fsys *FileSystem) allocHandle() uint64 {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	h := fsys.nextHandle
	fsys.nextHandle++
	return h
}

// resolveChild looks up name under parentPath: first as a plain object,
// then — since a directory may exist only implicitly, as the prefix of
// nested keys with no explicit marker object — as a directory, falling
// back to a prefix listing before giving up.
func (fsys *FileSystem) resolveChild(ctx context.Context, parentPath, name string) (string, engine.Object, syscall.Errno) {
	childPath := parentPath + name
	if engine.IsReservedPath(strings.TrimPrefix(childPath, "/")) {
		return "", nil, syscall.ENOENT
	}
	if obj, err := fsys.cache.Get(childPath); err == nil {
		return childPath, obj, 0
	}

	dirPath := childPath + "/"
	if obj, err := fsys.cache.Get(dirPath); err == nil {
		return dirPath, obj, 0
	}

	objects, err := fsys.backend.ListObjects(ctx, dirPath, 1)
	if err != nil || len(objects) == 0 {
		return "", nil, syscall.ENOENT
	}

	obj := fsys.registry.Construct(dirPath, &engine.HeadResult{})
	fsys.cache.Put(dirPath, obj)
	return dirPath, obj, 0
}

// inodeFor builds the fs.Inode for obj under parent, dispatching on its
// Kind so directories, symlinks, and regular/encrypted/FIFO files each
// get the Node type implementing the right go-fuse interfaces.
func (fsys *FileSystem) inodeFor(ctx context.Context, parent *fs.Inode, path string, obj engine.Object) *fs.Inode {
	switch obj.Kind() {
	case engine.KindDirectory:
		return parent.NewInode(ctx, &DirectoryNode{fsys: fsys, path: path}, fs.StableAttr{Mode: fuse.S_IFDIR})
	case engine.KindSymlink:
		return parent.NewInode(ctx, &SymlinkNode{fsys: fsys, path: path}, fs.StableAttr{Mode: fuse.S_IFLNK})
	default:
		return parent.NewInode(ctx, &FileNode{fsys: fsys, path: path}, fs.StableAttr{Mode: fuse.S_IFREG})
	}
}

func (fsys *FileSystem) recordLookupTime(d time.Duration) {
	fsys.stats.mu.Lock()
	defer fsys.stats.mu.Unlock()
	if fsys.stats.Lookups <= 1 {
		fsys.stats.AvgLookupTime = d
	} else {
		fsys.stats.AvgLookupTime = time.Duration((int64(fsys.stats.AvgLookupTime)*9 + int64(d)) / 10)
	}
}

func (fsys *FileSystem) recordReadTime(d time.Duration) {
	fsys.stats.mu.Lock()
	defer fsys.stats.mu.Unlock()
	if fsys.stats.Reads <= 1 {
		fsys.stats.AvgReadTime = d
	} else {
		fsys.stats.AvgReadTime = time.Duration((int64(fsys.stats.AvgReadTime)*9 + int64(d)) / 10)
	}
}

func (fsys *FileSystem) recordWriteTime(d time.Duration) {
	fsys.stats.mu.Lock()
	defer fsys.stats.mu.Unlock()
	if fsys.stats.Writes <= 1 {
		fsys.stats.AvgWriteTime = d
	} else {
		fsys.stats.AvgWriteTime = time.Duration((int64(fsys.stats.AvgWriteTime)*9 + int64(d)) / 10)
	}
}

// fillAttr copies obj's metadata into a FUSE Attr struct.
func fillAttr(obj engine.Object, out *fuse.Attr) {
	out.Mode = obj.Mode()
	out.Size = safeInt64ToUint64(obj.Size())
	out.Blocks = safeInt64ToUint64(obj.Blocks())
	out.Uid = obj.UID()
	out.Gid = obj.GID()
	if sl, ok := obj.(*engine.Symlink); ok {
		out.Size = safeInt64ToUint64(int64(len(sl.Target())))
	}
	if mt := obj.EffectiveMTime(); !mt.IsZero() {
		sec := safeInt64ToUint64(mt.Unix())
		out.Mtime, out.Atime, out.Ctime = sec, sec, sec
	}
}

// applySetattr handles a SetAttrIn against path: a size change truncates
// the open-file engine's local backing file (if the object is currently
// open) or the local store directly; a mode/uid/gid change rewrites the
// object's metadata headers via a GET+PUT, since the backend has no
// partial-metadata-update primitive.
func (fsys *FileSystem) applySetattr(ctx context.Context, path string, obj engine.Object, in *fuse.SetAttrIn) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if f, isFile := underlyingFile(obj); isFile {
			if err := fsys.open.Truncate(f, int64(size)); err != nil {
				return errnoFrom(err)
			}
		}
	}

	mode, hasMode := in.GetMode()
	uid, hasUID := in.GetUID()
	gid, hasGID := in.GetGID()
	if !hasMode && !hasUID && !hasGID {
		return 0
	}

	mp, ok := fsys.backend.(metaPutter)
	if !ok {
		return 0
	}

	data, err := fsys.backend.GetObject(ctx, path, 0, 0)
	if err != nil && obj.Size() > 0 {
		return errnoFrom(err)
	}

	meta := headersForObject(obj)
	if hasMode {
		meta["mode"] = strconv.FormatUint(uint64(mode&0777), 8)
	}
	if hasUID {
		meta["uid"] = strconv.FormatUint(uint64(uid), 10)
	}
	if hasGID {
		meta["gid"] = strconv.FormatUint(uint64(gid), 10)
	}

	if _, err := mp.PutObjectWithMeta(ctx, path, data, engine.ContentTypeForKind(obj.Kind()), meta); err != nil {
		return errnoFrom(err)
	}
	fsys.cache.Remove(path)
	return 0
}

func (fsys *FileSystem) getxattr(path, name string, dest []byte) (uint32, syscall.Errno) {
	obj, err := fsys.cache.Get(path)
	if err != nil {
		return 0, syscall.ENOENT
	}
	x, ok := obj.Xattrs()[name]
	if !ok {
		return 0, syscall.Errno(syscall.ENODATA)
	}
	val := x.Value()
	if len(dest) == 0 {
		return uint32(len(val)), 0
	}
	if len(dest) < len(val) {
		return 0, syscall.ERANGE
	}
	return uint32(copy(dest, val)), 0
}

func (fsys *FileSystem) listxattr(path string, dest []byte) (uint32, syscall.Errno) {
	obj, err := fsys.cache.Get(path)
	if err != nil {
		return 0, syscall.ENOENT
	}
	var names []byte
	for name, x := range obj.Xattrs() {
		if !x.Flags.Visible {
			continue
		}
		names = append(names, []byte(name)...)
		names = append(names, 0)
	}
	if len(dest) == 0 {
		return uint32(len(names)), 0
	}
	if len(dest) < len(names) {
		return 0, syscall.ERANGE
	}
	return uint32(copy(dest, names)), 0
}

func (fsys *FileSystem) setxattr(ctx context.Context, path, name string, data []byte) syscall.Errno {
	if engine.IsReservedXattrName(name) {
		return syscall.EACCES
	}
	obj, err := fsys.cache.Get(path)
	if err != nil {
		return syscall.ENOENT
	}
	obj.SetXattr(name, engine.NewStaticXattr(name, append([]byte(nil), data...)))
	return fsys.persistMeta(ctx, path, obj)
}

func (fsys *FileSystem) removexattr(ctx context.Context, path, name string) syscall.Errno {
	if engine.IsReservedXattrName(name) {
		return syscall.EACCES
	}
	obj, err := fsys.cache.Get(path)
	if err != nil {
		return syscall.ENOENT
	}
	x, ok := obj.Xattrs()[name]
	if !ok {
		return syscall.Errno(syscall.ENODATA)
	}
	if !x.Flags.Removable {
		return syscall.EACCES
	}
	obj.RemoveXattr(name)
	return fsys.persistMeta(ctx, path, obj)
}

// persistMeta rewrites path's metadata headers (mode/uid/gid/mtime/
// xattr_*) from obj's current in-memory state without touching its
// content, via GET+PUT against a metaPutter backend. A no-op if the
// backend cannot attach metadata to a PUT.
func (fsys *FileSystem) persistMeta(ctx context.Context, path string, obj engine.Object) syscall.Errno {
	mp, ok := fsys.backend.(metaPutter)
	if !ok {
		return 0
	}
	data, err := fsys.backend.GetObject(ctx, path, 0, 0)
	if err != nil && obj.Size() > 0 {
		return errnoFrom(err)
	}
	if _, err := mp.PutObjectWithMeta(ctx, path, data, engine.ContentTypeForKind(obj.Kind()), headersForObject(obj)); err != nil {
		return errnoFrom(err)
	}
	fsys.cache.Remove(path)
	return 0
}

// DirectoryNode represents a directory in the filesystem
type DirectoryNode struct {
	fs.Inode
	fsys *FileSystem
	path string // "" for root, otherwise ends with "/"
}

var (
	_ fs.NodeLookuper    = (*DirectoryNode)(nil)
	_ fs.NodeReaddirer   = (*DirectoryNode)(nil)
	_ fs.NodeMkdirer     = (*DirectoryNode)(nil)
	_ fs.NodeCreater     = (*DirectoryNode)(nil)
	_ fs.NodeUnlinker    = (*DirectoryNode)(nil)
	_ fs.NodeRmdirer     = (*DirectoryNode)(nil)
	_ fs.NodeRenamer     = (*DirectoryNode)(nil)
	_ fs.NodeSymlinker   = (*DirectoryNode)(nil)
	_ fs.NodeGetattrer   = (*DirectoryNode)(nil)
	_ fs.NodeGetxattrer  = (*DirectoryNode)(nil)
	_ fs.NodeSetxattrer  = (*DirectoryNode)(nil)
	_ fs.NodeListxattrer = (*DirectoryNode)(nil)
)

func (n *DirectoryNode) joinPath(name string) string { return n.path + name }

// Lookup looks up a child node by name
func (n *DirectoryNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	start := time.Now()
	defer func() { n.fsys.recordLookupTime(time.Since(start)) }()

	n.fsys.stats.mu.Lock()
	n.fsys.stats.Lookups++
	n.fsys.stats.mu.Unlock()

	childPath, obj, errno := n.fsys.resolveChild(ctx, n.path, name)
	if errno != 0 {
		n.fsys.stats.mu.Lock()
		n.fsys.stats.CacheMisses++
		n.fsys.stats.mu.Unlock()
		return nil, errno
	}

	n.fsys.stats.mu.Lock()
	n.fsys.stats.CacheHits++
	n.fsys.stats.mu.Unlock()

	fillAttr(obj, &out.Attr)
	return n.fsys.inodeFor(ctx, &n.Inode, childPath, obj), 0
}

// Readdir reads directory contents
func (n *DirectoryNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	obj, err := n.fsys.cache.Get(n.path)
	var dir *engine.Directory
	if err == nil {
		dir, _ = obj.(*engine.Directory)
	}
	if dir == nil {
		dir = &engine.Directory{}
	}

	var entries []fuse.DirEntry
	errc := dir.Read(n.fsys.lister, true, nil, func(name string, isDir bool) {
		mode := uint32(fuse.S_IFREG)
		if isDir {
			mode = fuse.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode})
	})
	if errc != 0 {
		n.fsys.stats.mu.Lock()
		n.fsys.stats.Errors++
		n.fsys.stats.mu.Unlock()
		n.fsys.logger.Errorf("readdir failed for %q: errno %d", n.path, errc)
		return nil, syscall.EIO
	}

	return fs.NewListDirStream(entries), 0
}

// Getattr gets directory attributes
func (n *DirectoryNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	obj, err := n.fsys.cache.Get(n.path)
	if err != nil {
		return syscall.ENOENT
	}
	fillAttr(obj, &out.Attr)
	return 0
}

func (n *DirectoryNode) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	return n.fsys.getxattr(n.path, attr, dest)
}

func (n *DirectoryNode) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return n.fsys.setxattr(ctx, n.path, attr, data)
}

func (n *DirectoryNode) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	return n.fsys.listxattr(n.path, dest)
}

// Mkdir creates a new directory
func (n *DirectoryNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.fsys.config.ReadOnly {
		return nil, syscall.EROFS
	}

	childPath := n.joinPath(name) + "/"
	meta := map[string]string{
		"mode":  strconv.FormatUint(uint64(mode&0777), 8),
		"uid":   strconv.FormatUint(uint64(n.fsys.config.DefaultUID), 10),
		"gid":   strconv.FormatUint(uint64(n.fsys.config.DefaultGID), 10),
		"mtime": strconv.FormatInt(time.Now().Unix(), 10),
	}

	var err error
	if mp, ok := n.fsys.backend.(metaPutter); ok {
		_, err = mp.PutObjectWithMeta(ctx, childPath, nil, "", meta)
	} else {
		err = n.fsys.backend.PutObject(ctx, childPath, nil)
	}
	if err != nil {
		n.fsys.stats.mu.Lock()
		n.fsys.stats.Errors++
		n.fsys.stats.mu.Unlock()
		n.fsys.logger.Errorf("mkdir failed for %q: %v", childPath, err)
		return nil, syscall.EIO
	}

	n.fsys.cache.Remove(childPath)
	n.fsys.cache.InvalidateParent(childPath)

	if _, err := n.fsys.cache.Get(childPath); err != nil {
		return nil, syscall.EIO
	}
	return n.NewInode(ctx, &DirectoryNode{fsys: n.fsys, path: childPath}, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
}

// Rmdir removes an empty directory
func (n *DirectoryNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if n.fsys.config.ReadOnly {
		return syscall.EROFS
	}

	childPath := n.joinPath(name) + "/"
	obj, err := n.fsys.cache.Get(childPath)
	if err != nil {
		return syscall.ENOENT
	}
	dir, ok := obj.(*engine.Directory)
	if !ok {
		return syscall.ENOTDIR
	}
	empty, errc := dir.IsEmpty(n.fsys.lister)
	if errc != 0 {
		return syscall.EIO
	}
	if !empty {
		return syscall.ENOTEMPTY
	}

	if err := n.fsys.backend.DeleteObject(ctx, childPath); err != nil {
		return errnoFrom(err)
	}
	n.fsys.cache.Remove(childPath)
	n.fsys.cache.InvalidateParent(childPath)
	return 0
}

// Unlink removes a file (or symlink)
func (n *DirectoryNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if n.fsys.config.ReadOnly {
		return syscall.EROFS
	}

	childPath := n.joinPath(name)
	if err := n.fsys.backend.DeleteObject(ctx, childPath); err != nil {
		return errnoFrom(err)
	}

	n.fsys.stats.mu.Lock()
	n.fsys.stats.Deletes++
	n.fsys.stats.mu.Unlock()

	n.fsys.cache.Remove(childPath)
	n.fsys.cache.InvalidateParent(childPath)
	return 0
}

// Rename implements spec §4.8: a plain object renames as COPY+DELETE; a
// directory renames as a two-pass parallel copy/delete over its full
// descendant listing.
func (n *DirectoryNode) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if n.fsys.config.ReadOnly {
		return syscall.EROFS
	}

	destDir, ok := newParent.(*DirectoryNode)
	if !ok {
		return syscall.EINVAL
	}

	srcPath := n.joinPath(name)
	dstPath := destDir.joinPath(newName)

	obj, err := n.fsys.cache.Get(srcPath)
	isDir := false
	if err == nil {
		_, isDir = obj.(*engine.Directory)
	} else if _, derr := n.fsys.cache.Get(srcPath + "/"); derr == nil {
		isDir = true
		srcPath += "/"
		dstPath += "/"
	}

	if isDir {
		if err := n.fsys.renamer.RenameDirectory(n.fsys.lister, srcPath, dstPath, n.fsys.config.Concurrency, 2); err != nil {
			return errnoFrom(err)
		}
		return 0
	}

	if err := n.fsys.renamer.RenameObject(srcPath, dstPath); err != nil {
		return errnoFrom(err)
	}
	return 0
}

// Symlink creates a symbolic link whose target is stored as a metadata
// header (so Readlink needs no body fetch) and whose content-type marker
// lets the type registry reconstruct it as a Symlink on the next HEAD.
func (n *DirectoryNode) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.fsys.config.ReadOnly {
		return nil, syscall.EROFS
	}

	mp, ok := n.fsys.backend.(metaPutter)
	if !ok {
		return nil, syscall.ENOSYS
	}

	childPath := n.joinPath(name)
	meta := map[string]string{
		"mode":   "777",
		"uid":    strconv.FormatUint(uint64(n.fsys.config.DefaultUID), 10),
		"gid":    strconv.FormatUint(uint64(n.fsys.config.DefaultGID), 10),
		"mtime":  strconv.FormatInt(time.Now().Unix(), 10),
		"target": target,
	}
	if _, err := mp.PutObjectWithMeta(ctx, childPath, []byte(target), engine.ContentTypeForKind(engine.KindSymlink), meta); err != nil {
		return nil, errnoFrom(err)
	}

	n.fsys.cache.Remove(childPath)
	n.fsys.cache.InvalidateParent(childPath)
	obj, err := n.fsys.cache.Get(childPath)
	if err != nil {
		return nil, syscall.EIO
	}
	fillAttr(obj, &out.Attr)
	return n.NewInode(ctx, &SymlinkNode{fsys: n.fsys, path: childPath}, fs.StableAttr{Mode: fuse.S_IFLNK}), 0
}

// Create creates a new file
func (n *DirectoryNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	if n.fsys.config.ReadOnly {
		return nil, nil, 0, syscall.EROFS
	}

	childPath := n.joinPath(name)
	meta := map[string]string{
		"mode":  strconv.FormatUint(uint64(mode&0777), 8),
		"uid":   strconv.FormatUint(uint64(n.fsys.config.DefaultUID), 10),
		"gid":   strconv.FormatUint(uint64(n.fsys.config.DefaultGID), 10),
		"mtime": strconv.FormatInt(time.Now().Unix(), 10),
	}

	var err error
	if mp, ok := n.fsys.backend.(metaPutter); ok {
		_, err = mp.PutObjectWithMeta(ctx, childPath, nil, "", meta)
	} else {
		err = n.fsys.backend.PutObject(ctx, childPath, nil)
	}
	if err != nil {
		n.fsys.stats.mu.Lock()
		n.fsys.stats.Errors++
		n.fsys.stats.mu.Unlock()
		n.fsys.logger.Errorf("create failed for %q: %v", childPath, err)
		return nil, nil, 0, syscall.EIO
	}

	n.fsys.stats.mu.Lock()
	n.fsys.stats.Creates++
	n.fsys.stats.mu.Unlock()

	n.fsys.cache.Remove(childPath)
	n.fsys.cache.InvalidateParent(childPath)

	if _, err := n.fsys.cache.Get(childPath); err != nil {
		return nil, nil, 0, syscall.EIO
	}

	fileNode := &FileNode{fsys: n.fsys, path: childPath}
	node := n.NewInode(ctx, fileNode, fs.StableAttr{Mode: fuse.S_IFREG})

	fh, fuseFlags, errno := fileNode.Open(ctx, flags)
	return node, fh, fuseFlags, errno
}

// FileNode represents a regular (or encrypted) file in the filesystem
type FileNode struct {
	fs.Inode
	fsys *FileSystem
	path string
}

var (
	_ fs.NodeOpener      = (*FileNode)(nil)
	_ fs.NodeGetattrer   = (*FileNode)(nil)
	_ fs.NodeSetattrer   = (*FileNode)(nil)
	_ fs.NodeGetxattrer  = (*FileNode)(nil)
	_ fs.NodeSetxattrer  = (*FileNode)(nil)
	_ fs.NodeListxattrer = (*FileNode)(nil)
)

// Open opens a file, triggering the open-file engine's download/truncate
// decision; encrypted files must unlock against the bucket's volume key
// first and refuse (EACCES) if they cannot.
func (f *FileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if f.fsys.config.ReadOnly && flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_CREAT|syscall.O_TRUNC) != 0 {
		return nil, 0, syscall.EROFS
	}

	obj, err := f.fsys.cache.Get(f.path)
	if err != nil {
		return nil, 0, syscall.ENOENT
	}

	if ef, ok := obj.(*engine.EncryptedFile); ok {
		f.fsys.mu.Lock()
		wrapKey := f.fsys.wrapKey
		f.fsys.mu.Unlock()
		if len(wrapKey) == 0 {
			return nil, 0, syscall.EACCES
		}
		if err := ef.Unlock(wrapKey); err != nil {
			return nil, 0, syscall.EACCES
		}
		if ok, _ := ef.IsDownloadable(); !ok {
			return nil, 0, syscall.EACCES
		}
	}

	file, ok := underlyingFile(obj)
	if !ok {
		return nil, 0, syscall.EINVAL
	}

	truncate := flags&uint32(syscall.O_TRUNC) != 0
	if err := f.fsys.open.Open(file, truncate); err != nil {
		return nil, 0, errnoFrom(err)
	}

	f.fsys.stats.mu.Lock()
	f.fsys.stats.Opens++
	f.fsys.stats.mu.Unlock()

	return &FileHandle{fsys: f.fsys, path: f.path, file: file, handle: f.fsys.allocHandle()}, 0, 0
}

// Getattr gets file attributes
func (f *FileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	obj, err := f.fsys.cache.Get(f.path)
	if err != nil {
		return syscall.ENOENT
	}
	fillAttr(obj, &out.Attr)
	return 0
}

// Setattr handles chmod/chown/truncate/utimens
func (f *FileNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	obj, err := f.fsys.cache.Get(f.path)
	if err != nil {
		return syscall.ENOENT
	}
	if errno := f.fsys.applySetattr(ctx, f.path, obj, in); errno != 0 {
		return errno
	}
	obj, err = f.fsys.cache.Get(f.path)
	if err != nil {
		return syscall.ENOENT
	}
	fillAttr(obj, &out.Attr)
	return 0
}

func (f *FileNode) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	return f.fsys.getxattr(f.path, attr, dest)
}

func (f *FileNode) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return f.fsys.setxattr(ctx, f.path, attr, data)
}

func (f *FileNode) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	return f.fsys.listxattr(f.path, dest)
}

func (f *FileNode) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return f.fsys.removexattr(ctx, f.path, attr)
}

// SymlinkNode represents a symbolic link
type SymlinkNode struct {
	fs.Inode
	fsys *FileSystem
	path string
}

var (
	_ fs.NodeReadlinker = (*SymlinkNode)(nil)
	_ fs.NodeGetattrer  = (*SymlinkNode)(nil)
)

func (n *SymlinkNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	obj, err := n.fsys.cache.Get(n.path)
	if err != nil {
		return nil, syscall.ENOENT
	}
	sl, ok := obj.(*engine.Symlink)
	if !ok {
		return nil, syscall.EINVAL
	}
	return []byte(sl.Target()), 0
}

func (n *SymlinkNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	obj, err := n.fsys.cache.Get(n.path)
	if err != nil {
		return syscall.ENOENT
	}
	fillAttr(obj, &out.Attr)
	return 0
}

// FileHandle represents an open file handle backed by the open-file
// engine's reference-counted local file.
type FileHandle struct {
	fsys   *FileSystem
	path   string
	file   *engine.File
	handle uint64
}

var (
	_ fs.FileReader    = (*FileHandle)(nil)
	_ fs.FileWriter    = (*FileHandle)(nil)
	_ fs.FileFlusher   = (*FileHandle)(nil)
	_ fs.FileReleaser  = (*FileHandle)(nil)
)

// Read reads data from the file
func (fh *FileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	start := time.Now()
	defer func() { fh.fsys.recordReadTime(time.Since(start)) }()

	fh.fsys.stats.mu.Lock()
	fh.fsys.stats.Reads++
	fh.fsys.stats.mu.Unlock()

	n, err := fh.fsys.open.Read(fh.file, dest, off)
	if err != nil {
		fh.fsys.stats.mu.Lock()
		fh.fsys.stats.Errors++
		fh.fsys.stats.mu.Unlock()
		fh.fsys.logger.Errorf("read failed for %q at offset %d: %v", fh.path, off, err)
		return nil, errnoFrom(err)
	}

	fh.fsys.stats.mu.Lock()
	fh.fsys.stats.BytesRead += int64(n)
	fh.fsys.stats.mu.Unlock()

	return fuse.ReadResultData(dest[:n]), 0
}

// Write writes data to the file
func (fh *FileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	if fh.fsys.config.ReadOnly {
		return 0, syscall.EROFS
	}

	start := time.Now()
	defer func() { fh.fsys.recordWriteTime(time.Since(start)) }()

	n, err := fh.fsys.open.Write(fh.file, data, off)
	if err != nil {
		fh.fsys.stats.mu.Lock()
		fh.fsys.stats.Errors++
		fh.fsys.stats.mu.Unlock()
		fh.fsys.logger.Errorf("write failed for %q at offset %d: %v", fh.path, off, err)
		return 0, errnoFrom(err)
	}

	fh.fsys.stats.mu.Lock()
	fh.fsys.stats.Writes++
	fh.fsys.stats.BytesWritten += int64(n)
	fh.fsys.stats.mu.Unlock()

	return safeIntToUint32(n), 0
}

// Flush flushes any pending writes, uploading the local file if dirty
func (fh *FileHandle) Flush(ctx context.Context) syscall.Errno {
	if err := fh.fsys.open.Flush(fh.file); err != nil {
		fh.fsys.stats.mu.Lock()
		fh.fsys.stats.Errors++
		fh.fsys.stats.mu.Unlock()
		fh.fsys.logger.Errorf("flush failed for %q: %v", fh.path, err)
		return errnoFrom(err)
	}
	return 0
}

// Release releases the file handle
func (fh *FileHandle) Release(ctx context.Context) syscall.Errno {
	if err := fh.fsys.open.Release(fh.file); err != nil {
		fh.fsys.logger.Errorf("release failed for %q: %v", fh.path, err)
		return errnoFrom(err)
	}
	return 0
}
