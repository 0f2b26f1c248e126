/*
Package types defines the contract between the FUSE layer
(internal/fuse) and a storage backend (internal/storage/s3): the
Backend interface and the ObjectInfo metadata it returns.

# Backend

Backend abstracts an S3-compatible object store behind single-object
and batch get/put/delete/list/head operations, plus a health check.
internal/storage/s3.Backend is the only implementation; new backends
(GCS, Azure) would implement this same interface so internal/fuse and
internal/bootstrap never need to know which object store is behind a
mount.

	type MyBackend struct{ client *myservice.Client }

	func (b *MyBackend) GetObject(ctx context.Context, key string, offset, size int64) ([]byte, error) {
		return b.client.GetRange(key, offset, size)
	}

	func (b *MyBackend) HeadObject(ctx context.Context, key string) (*types.ObjectInfo, error) {
		meta, err := b.client.GetMetadata(key)
		if err != nil {
			return nil, err
		}
		return &types.ObjectInfo{Key: key, Size: meta.Size, LastModified: meta.Modified, ETag: meta.ETag}, nil
	}
*/
package types
