package transfer

import (
	"context"
	"fmt"

	"github.com/s3fuse/corefs/internal/crypto"
)

// SinglePutter performs a whole-body PUT and returns the object's ETag.
// Satisfied by (*s3.Backend).PutObjectWithETag.
type SinglePutter interface {
	PutObjectWithETag(ctx context.Context, key string, data []byte) (string, error)
}

// LocalReader reads a byte range out of the local store so Upload can feed
// chunks to a multipart client without buffering the whole object. Satisfied
// by *localstore.Store, which has this ReadRange method itself.
type LocalReader interface {
	ReadRange(path string, off, n int64) ([]byte, error)
}

// DefaultMultipartThreshold mirrors s3.Config's default: objects at or
// below this size use a single PUT; larger objects go through
// uploadMultipart. Callers normally pass the backend's configured
// threshold instead of this default.
const DefaultMultipartThreshold = 32 * 1024 * 1024

// DefaultUploadChunkSize is the multipart chunk size used when none is
// given. It is above the AWS/IIJ 5 MiB minimum part size (the final part
// is exempt from that minimum); NewUploader does not enforce the minimum
// on a chunk size passed in.
const DefaultUploadChunkSize = 8 * 1024 * 1024

// Uploader implements engine.Uploader (Upload(path, size, onChunk) (etag,
// error)) by reading the object's bytes from a LocalReader and dispatching
// to a single PUT (small objects) or uploadMultipart (large objects).
type Uploader struct {
	reader      LocalReader
	single      SinglePutter
	multipart   MultipartClient
	threshold   int64
	chunkSize   int64
	maxInFlight int
}

// NewUploader builds an Uploader. multipart may be nil, in which case
// objects above threshold fail rather than falling back to a single PUT,
// since a single PUT cannot carry an object S3 would reject as oversized.
func NewUploader(reader LocalReader, single SinglePutter, multipart MultipartClient, threshold, chunkSize int64, maxInFlight int) *Uploader {
	if threshold <= 0 {
		threshold = DefaultMultipartThreshold
	}
	if chunkSize <= 0 {
		chunkSize = DefaultUploadChunkSize
	}
	return &Uploader{reader: reader, single: single, multipart: multipart, threshold: threshold, chunkSize: chunkSize, maxInFlight: maxInFlight}
}

// Upload sends path's full size bytes to the remote object store. onChunk is
// invoked once per chunk actually transmitted (single PUT: one whole-object
// call; multipart: once per part), mirroring Downloader's callback shape so
// callers can track bytes-in-flight symmetrically.
func (u *Uploader) Upload(path string, size int64, onChunk func(offset int64, chunk []byte)) (string, error) {
	ctx := context.Background()

	if size <= u.threshold {
		data, err := u.reader.ReadRange(path, 0, size)
		if err != nil {
			return "", fmt.Errorf("transfer: upload %q: read local: %w", path, err)
		}
		etag, err := u.single.PutObjectWithETag(ctx, path, data)
		if err != nil {
			return "", fmt.Errorf("transfer: upload %q: %w", path, err)
		}
		if want := crypto.HexEncode(crypto.MD5Sum(data)); crypto.LooksLikeMD5Hex(etag) && etag != want {
			return "", fmt.Errorf("transfer: upload %q: ETag mismatch: remote %s local %s", path, etag, want)
		}
		onChunk(0, data)
		return etag, nil
	}

	if u.multipart == nil {
		return "", fmt.Errorf("transfer: upload %q: object size %d exceeds single-PUT threshold %d and no multipart client configured", path, size, u.threshold)
	}

	etag, err := uploadMultipart(ctx, u.multipart, path, size, u.chunkSize, u.maxInFlight, func(off, n int64) ([]byte, error) {
		data, err := u.reader.ReadRange(path, off, n)
		if err != nil {
			return nil, err
		}
		onChunk(off, data)
		return data, nil
	})
	if err != nil {
		return "", err
	}
	return etag, nil
}
