package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BeginMultipartUpload initiates an S3 multipart upload and starts tracking
// its state under key uploadID. chunkSize governs how the caller should
// split totalSize across parts; the AWS minimum part size is 5 MiB except
// for the final part.
func (b *Backend) BeginMultipartUpload(ctx context.Context, key string, totalSize, chunkSize int64) (*MultipartUploadState, error) {
	client := b.pool.Get()
	defer b.pool.Put(client)

	out, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(b.detectContentType(key)),
	})
	if err != nil {
		b.recordError(err)
		return nil, b.translateError(err, "CreateMultipartUpload", key)
	}

	state := NewMultipartUploadState(aws.ToString(out.UploadId), b.bucket, key, totalSize, chunkSize)
	state.Status = UploadStatusInProgress
	b.multipart.TrackUpload(state)
	return state, nil
}

// UploadPart uploads a single numbered part of an in-progress multipart
// upload and records its outcome against the tracked state.
func (b *Backend) UploadPart(ctx context.Context, uploadID, key string, partNumber int, data []byte) (string, error) {
	client := b.pool.Get()
	defer b.pool.Put(client)

	out, err := client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(int32(partNumber)),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		b.multipart.UpdatePartStatus(uploadID, partNumber, int64(len(data)), "", err)
		b.recordError(err)
		return "", b.translateError(err, "UploadPart", key)
	}

	etag := aws.ToString(out.ETag)
	b.multipart.UpdatePartStatus(uploadID, partNumber, int64(len(data)), etag, nil)

	b.mu.Lock()
	b.metrics.BytesUploaded += int64(len(data))
	b.mu.Unlock()

	return etag, nil
}

// CompleteMultipartUpload finalizes an upload once every part has
// completed, assembling the part/ETag manifest S3 requires in ascending
// part-number order.
func (b *Backend) CompleteMultipartUpload(ctx context.Context, uploadID, key string) (string, error) {
	state, ok := b.multipart.GetUploadState(uploadID)
	if !ok {
		return "", fmt.Errorf("s3: no tracked multipart upload %s", uploadID)
	}
	if !state.IsComplete() {
		return "", fmt.Errorf("s3: multipart upload %s has %d/%d parts outstanding", uploadID, state.TotalParts-state.CompletedParts, state.TotalParts)
	}

	parts := make([]s3types.CompletedPart, 0, state.TotalParts)
	for i := 1; i <= state.TotalParts; i++ {
		p := state.Parts[i]
		parts = append(parts, s3types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(int32(i)),
		})
	}

	client := b.pool.Get()
	defer b.pool.Put(client)

	out, err := client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		b.multipart.MarkUploadFailed(uploadID)
		b.recordError(err)
		return "", b.translateError(err, "CompleteMultipartUpload", key)
	}

	b.multipart.MarkUploadCompleted(uploadID)
	return aws.ToString(out.ETag), nil
}

// AbortMultipartUpload cancels an in-progress upload, releasing any parts
// S3 has buffered for it, and stops tracking its state.
func (b *Backend) AbortMultipartUpload(ctx context.Context, uploadID, key string) error {
	client := b.pool.Get()
	defer b.pool.Put(client)

	_, err := client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})

	b.multipart.MarkUploadFailed(uploadID)
	b.multipart.RemoveUpload(uploadID)

	if err != nil {
		b.recordError(err)
		return b.translateError(err, "AbortMultipartUpload", key)
	}
	return nil
}

// MultipartState exposes the tracked state for an in-progress upload, for
// callers (internal/transfer) that need to inspect remaining parts after a
// crash or retry.
func (b *Backend) MultipartState(uploadID string) (*MultipartUploadState, bool) {
	return b.multipart.GetUploadState(uploadID)
}

// BeginMultipartUploadRaw is BeginMultipartUpload with the MultipartUploadState
// return flattened to (uploadID, totalParts), so callers outside this package
// (internal/transfer) don't need to import s3's state type.
func (b *Backend) BeginMultipartUploadRaw(ctx context.Context, key string, totalSize, chunkSize int64) (string, int, error) {
	state, err := b.BeginMultipartUpload(ctx, key, totalSize, chunkSize)
	if err != nil {
		return "", 0, err
	}
	return state.UploadID, state.TotalParts, nil
}
