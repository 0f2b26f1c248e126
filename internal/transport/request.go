package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Method is an HTTP verb used by a Request.
type Method string

const (
	MethodGET    Method = http.MethodGet
	MethodPUT    Method = http.MethodPut
	MethodPOST   Method = http.MethodPost
	MethodDELETE Method = http.MethodDelete
	MethodHEAD   Method = http.MethodHead
)

// Request is reused across many calls on the owning worker goroutine. It
// is not safe for concurrent use by multiple goroutines at once; the pool
// guarantees a Request is only ever driven by the worker that owns it.
type Request struct {
	mu sync.Mutex

	method      Method
	relativeURL string
	query       map[string]string
	fullURL     string
	headers     map[string]string

	inputBody  []byte
	outputBody []byte

	responseCode    int
	responseHeaders map[string]string
	lastRunAt       time.Time

	deadline   time.Time
	cancelled  bool
	terminated bool

	client *http.Client
}

// NewRequest constructs a Request bound to the given HTTP client, which is
// reused for the lifetime of the owning pool worker.
func NewRequest(client *http.Client) *Request {
	if client == nil {
		client = http.DefaultClient
	}
	return &Request{client: client, headers: map[string]string{}}
}

// Init resets all mutable state and selects the verb for the next call.
// Panics if the request has been permanently cancelled by the watchdog —
// a cancelled Request must not be reused.
func (r *Request) Init(method Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminated {
		panic("transport: use of a watchdog-cancelled Request")
	}

	r.method = method
	r.relativeURL = ""
	r.query = nil
	r.fullURL = ""
	r.headers = map[string]string{}
	r.inputBody = nil
	r.outputBody = nil
	r.responseCode = 0
	r.responseHeaders = nil
	r.cancelled = false
	r.deadline = time.Time{}
}

// SetURL sets a relative URL (and optional query parameters), which Run
// resolves against the current Hook's AdjustURL on every attempt.
func (r *Request) SetURL(relative string, query map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relativeURL = relative
	r.query = query
	r.fullURL = ""
}

// SetFullURL bypasses hook-based resolution and sets the complete URL
// directly (used for pre-signed or provider-absolute URLs).
func (r *Request) SetFullURL(abs string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fullURL = abs
}

// SetHeader sets a request header, overwriting any previous value.
func (r *Request) SetHeader(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headers[name] = value
}

// SetInputBuffer sets the request body bytes.
func (r *Request) SetInputBuffer(body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputBody = body
}

// Method returns the verb selected by the most recent Init.
func (r *Request) Method() Method {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.method
}

// RelativeURL returns the relative URL set by SetURL, if any.
func (r *Request) RelativeURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.relativeURL
}

// Header returns a request header previously set by SetHeader.
func (r *Request) Header(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers[name]
}

// Headers returns a snapshot of all request headers, for signing hooks
// that need to canonicalize the full set (e.g. x-amz-*/x-iijgio-*).
func (r *Request) Headers() map[string]string {
	return r.snapshotHeaders()
}

// InputBody returns the request body bytes set by SetInputBuffer.
func (r *Request) InputBody() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputBody
}

// ResponseCode returns the HTTP status of the most recently completed run.
func (r *Request) ResponseCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.responseCode
}

// ResponseHeader returns a response header from the most recently
// completed run.
func (r *Request) ResponseHeader(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responseHeaders == nil {
		return ""
	}
	return r.responseHeaders[name]
}

// OutputBody returns the response body of the most recently completed run.
func (r *Request) OutputBody() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputBody
}

// LastRunAt returns the completion time of the most recently completed
// run.
func (r *Request) LastRunAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRunAt
}

// resolvedURL returns the URL to execute against for this attempt.
func (r *Request) resolvedURL(hook Hook) string {
	r.mu.Lock()
	full, rel, query := r.fullURL, r.relativeURL, r.query
	r.mu.Unlock()

	if full != "" {
		return full
	}
	return hook.AdjustURL(rel, query)
}

// snapshotHeaders returns a copy of the current header set for building
// the outgoing HTTP request.
func (r *Request) snapshotHeaders() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// setDeadline arms the watchdog deadline for this attempt.
func (r *Request) setDeadline(d time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadline = d
	r.cancelled = false
}

// CheckTimeout is invoked by the watchdog goroutine; if the deadline has
// elapsed it marks the request cancelled and retires it (a later Init
// panics), exactly once. It does not interrupt a call already in flight;
// Run's per-attempt context deadline does that, and execute reports a
// failed call on a cancelled request as ErrTimedOut.
func (r *Request) CheckTimeout(now time.Time) (justCancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled || r.deadline.IsZero() || now.Before(r.deadline) {
		return false
	}
	r.cancelled = true
	r.terminated = true
	return true
}

func (r *Request) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// terminate permanently retires the Request; any further Init panics.
// CheckTimeout retires a Request the same way when it cancels it.
func (r *Request) terminate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminated = true
}

func (r *Request) recordResult(code int, headers map[string]string, body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responseCode = code
	r.responseHeaders = headers
	r.outputBody = body
	r.lastRunAt = time.Now()
}

// execute performs exactly one HTTP attempt against the resolved URL.
func (r *Request) execute(ctx context.Context, hook Hook) error {
	url := r.resolvedURL(hook)
	headers := r.snapshotHeaders()

	httpReq, err := http.NewRequestWithContext(ctx, string(r.method), url, newBodyReader(r.inputBody))
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if r.isCancelled() {
			return ErrTimedOut
		}
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := readAllCapped(resp.Body)
	if err != nil {
		return fmt.Errorf("transport: read body: %w", err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	r.recordResult(resp.StatusCode, respHeaders, body)
	return nil
}
