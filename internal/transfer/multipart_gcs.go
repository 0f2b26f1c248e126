package transfer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/s3fuse/corefs/internal/transport"
)

// GCSMultipartClient drives GCS's resumable-upload strategy (spec.md
// §4.5 upload-multi GCS): a single POST with x-goog-resumable: start
// opens a session at a Location URL, then serialized PUTs carry
// Content-Range: bytes a-b/total, the last part naming the total size
// instead of "*". GCS requires these PUTs to land in byte order with no
// more than one in flight, unlike AWS/IIJ's unordered part upload, so
// callers must pass MaxInFlight: 1 to uploadMultipart for this client.
type GCSMultipartClient struct {
	client  *http.Client
	hook    transport.Hook
	runOpts transport.RunOptions

	mu       sync.Mutex
	sessions map[string]*gcsSession
	nextID   int64
}

type gcsSession struct {
	location  string
	totalSize int64
	chunkSize int64
	finalETag string
}

// NewGCSMultipartClient builds a client for GCS resumable uploads,
// signing every request with hook (a *s3.GCSSigner in production).
func NewGCSMultipartClient(client *http.Client, hook transport.Hook) *GCSMultipartClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &GCSMultipartClient{client: client, hook: hook, sessions: map[string]*gcsSession{}}
}

// Begin opens a resumable upload session for key and returns a locally
// minted uploadID tracking the session's Location URL and chunking.
func (c *GCSMultipartClient) Begin(ctx context.Context, key string, totalSize, chunkSize int64) (string, int, error) {
	req := transport.NewRequest(c.client)
	req.Init(transport.MethodPOST)
	req.SetURL("/"+key, map[string]string{"uploadType": "resumable"})
	req.SetHeader("x-goog-resumable", "start")
	req.SetHeader("Content-Length", "0")

	if err := req.Run(ctx, c.hook, c.runOpts); err != nil {
		return "", 0, fmt.Errorf("transfer: gcs begin resumable upload %q: %w", key, err)
	}
	location := req.ResponseHeader("Location")
	if location == "" {
		return "", 0, fmt.Errorf("transfer: gcs begin resumable upload %q: no Location header in response", key)
	}

	totalParts := int((totalSize + chunkSize - 1) / chunkSize)
	if totalParts < 1 {
		totalParts = 1
	}

	id := fmt.Sprintf("gcs-session-%d", atomic.AddInt64(&c.nextID, 1))
	c.mu.Lock()
	c.sessions[id] = &gcsSession{location: location, totalSize: totalSize, chunkSize: chunkSize}
	c.mu.Unlock()

	return id, totalParts, nil
}

// UploadPart PUTs the partNumber'th chunk (1-based) at its byte-range
// position, computed from the session's chunkSize. GCS has no per-part
// ETag concept; it echoes one only once the final byte lands, so
// intermediate parts return an empty string and the caller's MD5
// verification is skipped for them (LooksLikeMD5Hex("") is false).
func (c *GCSMultipartClient) UploadPart(ctx context.Context, uploadID, key string, partNumber int, data []byte) (string, error) {
	sess, ok := c.session(uploadID)
	if !ok {
		return "", fmt.Errorf("transfer: gcs upload part: unknown session %q", uploadID)
	}

	off := int64(partNumber-1) * sess.chunkSize
	last := off+int64(len(data)) >= sess.totalSize

	req := transport.NewRequest(c.client)
	req.Init(transport.MethodPUT)
	req.SetFullURL(sess.location)
	req.SetHeader("Content-Range", gcsContentRange(off, off+int64(len(data))-1, sess.totalSize, last))
	req.SetInputBuffer(data)

	if err := req.Run(ctx, c.hook, c.runOpts); err != nil {
		return "", fmt.Errorf("transfer: gcs upload part %d for %q: %w", partNumber, key, err)
	}

	code := req.ResponseCode()
	if last {
		if code != 200 && code != 201 {
			return "", fmt.Errorf("transfer: gcs upload part %d for %q: unexpected final status %d", partNumber, key, code)
		}
		etag := req.ResponseHeader("ETag")
		c.mu.Lock()
		sess.finalETag = etag
		c.mu.Unlock()
		return etag, nil
	}
	if code != 308 {
		return "", fmt.Errorf("transfer: gcs upload part %d for %q: unexpected intermediate status %d", partNumber, key, code)
	}
	return "", nil
}

// Complete is a no-op for GCS: the session finishes as a side effect of
// the final UploadPart PUT landing. It returns whatever ETag that part
// reported.
func (c *GCSMultipartClient) Complete(ctx context.Context, uploadID, key string) (string, error) {
	sess, ok := c.session(uploadID)
	if !ok {
		return "", fmt.Errorf("transfer: gcs complete: unknown session %q", uploadID)
	}
	defer c.forget(uploadID)
	return sess.finalETag, nil
}

// Abort cancels an in-progress resumable session with a DELETE, per the
// GCS resumable upload protocol.
func (c *GCSMultipartClient) Abort(ctx context.Context, uploadID, key string) error {
	sess, ok := c.session(uploadID)
	if !ok {
		return nil
	}
	defer c.forget(uploadID)

	req := transport.NewRequest(c.client)
	req.Init(transport.MethodDELETE)
	req.SetFullURL(sess.location)
	if err := req.Run(ctx, c.hook, c.runOpts); err != nil {
		return fmt.Errorf("transfer: gcs abort %q: %w", key, err)
	}
	return nil
}

func (c *GCSMultipartClient) session(uploadID string) (*gcsSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[uploadID]
	return s, ok
}

func (c *GCSMultipartClient) forget(uploadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, uploadID)
}

// gcsContentRange formats the Content-Range header GCS's resumable
// protocol expects: the total is "*" until the final chunk names the
// real size.
func gcsContentRange(start, end, total int64, final bool) string {
	if final {
		return fmt.Sprintf("bytes %d-%d/%d", start, end, total)
	}
	return fmt.Sprintf("bytes %d-%d/*", start, end)
}
