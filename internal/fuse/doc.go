/*
Package fuse implements a POSIX filesystem over a types.Backend using
go-fuse, translating file and directory operations into the
internal/engine's metadata cache and open-file tracking.

# Architecture

	┌─────────────────────────────────────────────┐
	│        User applications (POSIX calls)      │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│     go-fuse kernel bridge (hanwen/go-fuse)  │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│  FileSystem: DirectoryNode / FileNode /      │
	│  FileHandle, backed by internal/engine for   │
	│  metadata caching and open-file staging      │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│            types.Backend (object store)      │
	└─────────────────────────────────────────────┘

# Configuration

	config := &fuse.Config{
		MountPoint:  "/mnt/bucket",
		ReadOnly:    false,
		DefaultUID:  uint32(os.Getuid()),
		DefaultGID:  uint32(os.Getgid()),
		LocalDir:    "/var/lib/corefs/stage",
		Concurrency: 32,
	}

	filesystem, err := fuse.NewFileSystem(backend, config)
	if err != nil {
		log.Fatal(err)
	}
	if len(volumeKey) > 0 {
		filesystem.SetVolumeKey(volumeKey)
	}

	mountConfig := &fuse.MountConfig{
		MountPoint: config.MountPoint,
		Options:    &fuse.MountOptions{FSName: "corefs", DefaultPerms: true},
	}
	manager := fuse.NewMountManager(filesystem, mountConfig)
	if err := manager.Mount(ctx); err != nil {
		log.Fatal(err)
	}
	defer manager.Unmount()

# Object storage mapping

File paths map to object keys; directories exist implicitly through key
prefixes, plus the marker objects Mkdir writes. Open files are staged
to LocalDir so random-offset reads and writes don't round-trip every
byte through the backend; Flush uploads a dirty local file back (in
multipart parts above the configured threshold when the backend
supports multipart uploads), and Release drops the reference, purging
the local copy unless PersistOnRelease is set.

# Extended attributes and encryption

getxattr/setxattr persist through engine's metadata cache onto object
metadata. When a volume key has been set via SetVolumeKey, opening an
encrypted file unlocks its per-file data key, and the open fails with
EACCES if it cannot. FileHandle reads and writes pass bytes through
unchanged: file content is neither decrypted on download nor encrypted
on upload.

# Thread safety

FileSystem's inode and handle tables are protected internally;
concurrent FUSE callbacks from the kernel are expected and safe.
*/
package fuse
