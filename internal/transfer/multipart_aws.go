package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/s3fuse/corefs/internal/crypto"
	"github.com/s3fuse/corefs/internal/pqueue"
)

// MultipartClient is the CreateMultipartUpload/UploadPart/Complete/Abort
// surface uploadMultipart drives. *s3.Backend satisfies it via
// AWSMultipartClient below; a GCS resumable equivalent lives in
// multipart_gcs.go.
type MultipartClient interface {
	Begin(ctx context.Context, key string, totalSize, chunkSize int64) (uploadID string, totalParts int, err error)
	UploadPart(ctx context.Context, uploadID, key string, partNumber int, data []byte) (etag string, err error)
	Complete(ctx context.Context, uploadID, key string) (etag string, err error)
	Abort(ctx context.Context, uploadID, key string) error
}

// s3Backend is the subset of *s3.Backend's multipart methods
// AWSMultipartClient adapts to MultipartClient.
type s3Backend interface {
	BeginMultipartUploadRaw(ctx context.Context, key string, totalSize, chunkSize int64) (string, int, error)
	UploadPart(ctx context.Context, uploadID, key string, partNumber int, data []byte) (string, error)
	CompleteMultipartUpload(ctx context.Context, uploadID, key string) (string, error)
	AbortMultipartUpload(ctx context.Context, uploadID, key string) error
}

// AWSMultipartClient adapts *s3.Backend's UploadID-strategy multipart
// methods (spec.md §4.5 upload-multi AWS/IIJ) to MultipartClient.
type AWSMultipartClient struct {
	backend s3Backend
}

// NewAWSMultipartClient wraps backend, which must implement
// BeginMultipartUploadRaw/UploadPart/CompleteMultipartUpload/AbortMultipartUpload
// (backend.go exposes BeginMultipartUploadRaw as a thin wrapper over
// BeginMultipartUpload to avoid this package importing *s3.MultipartUploadState).
func NewAWSMultipartClient(backend s3Backend) *AWSMultipartClient {
	return &AWSMultipartClient{backend: backend}
}

func (c *AWSMultipartClient) Begin(ctx context.Context, key string, totalSize, chunkSize int64) (string, int, error) {
	return c.backend.BeginMultipartUploadRaw(ctx, key, totalSize, chunkSize)
}

func (c *AWSMultipartClient) UploadPart(ctx context.Context, uploadID, key string, partNumber int, data []byte) (string, error) {
	return c.backend.UploadPart(ctx, uploadID, key, partNumber, data)
}

func (c *AWSMultipartClient) Complete(ctx context.Context, uploadID, key string) (string, error) {
	return c.backend.CompleteMultipartUpload(ctx, uploadID, key)
}

func (c *AWSMultipartClient) Abort(ctx context.Context, uploadID, key string) error {
	return c.backend.AbortMultipartUpload(ctx, uploadID, key)
}

// uploadMultipart drives the CreateMultipartUpload -> UploadPart(partNumber,
// uploadId) -> CompleteMultipartUpload sequence (spec.md §4.5 upload-multi),
// fanning parts out through internal/pqueue and verifying each part's
// returned ETag against MD5(part) before accepting it. Any part that
// exhausts its retries aborts the whole upload.
func uploadMultipart(ctx context.Context, client MultipartClient, key string, size, chunkSize int64, maxInFlight int, readChunk func(off, n int64) ([]byte, error)) (string, error) {
	uploadID, totalParts, err := client.Begin(ctx, key, size, chunkSize)
	if err != nil {
		return "", fmt.Errorf("transfer: begin multipart upload %q: %w", key, err)
	}

	var mu sync.Mutex
	var firstErr error

	result := pqueue.Run(totalParts, func(part int) int {
		partNumber := part + 1
		off := int64(part) * chunkSize
		n := chunkSize
		if off+n > size {
			n = size - off
		}

		data, err := readChunk(off, n)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("read part %d: %w", partNumber, err)
			}
			mu.Unlock()
			return pqueue.ErrAgain
		}

		etag, err := client.UploadPart(ctx, uploadID, key, partNumber, data)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("upload part %d: %w", partNumber, err)
			}
			mu.Unlock()
			return pqueue.ErrAgain
		}

		if want := crypto.HexEncode(crypto.MD5Sum(data)); crypto.LooksLikeMD5Hex(etag) && etag != want {
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("part %d ETag mismatch: remote %s local %s", partNumber, etag, want)
			}
			mu.Unlock()
			return pqueue.ErrAgain
		}

		return 0
	}, pqueue.Options{MaxInFlight: maxInFlight, MaxRetries: 2})

	if result != 0 {
		_ = client.Abort(ctx, uploadID, key)
		if firstErr != nil {
			return "", fmt.Errorf("transfer: upload %q: %w", key, firstErr)
		}
		return "", fmt.Errorf("transfer: upload %q failed (code %d)", key, result)
	}

	etag, err := client.Complete(ctx, uploadID, key)
	if err != nil {
		_ = client.Abort(ctx, uploadID, key)
		return "", fmt.Errorf("transfer: complete multipart upload %q: %w", key, err)
	}
	return etag, nil
}
