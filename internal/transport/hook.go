package transport

// Hook lets a service adapter (AWS/GCS/IIJ) rewrite URLs, sign requests
// before each attempt, and decide whether a completed attempt should be
// retried. One Hook instance is shared across all requests for a mount.
type Hook interface {
	// AdjustURL rewrites a relative URL (with optional query parameters)
	// into the absolute URL to execute against (e.g. bucket_url/key).
	AdjustURL(relative string, query map[string]string) string

	// PreRun is called before attempt i (0-based); implementations set the
	// Date header and compute the Authorization header here.
	PreRun(req *Request, attempt int) error

	// ShouldRetry is called after a completed (non-transport-error)
	// attempt and decides whether attempt i should be retried. It is not
	// called for transport-level failures, which are always retried
	// within budget regardless of hook opinion.
	ShouldRetry(req *Request, attempt int) bool
}

// RequestTimeoutXPath is the XML XPath spec.md names for the body-level
// retry condition on HTTP 400: /Error/Code[text() = 'RequestTimeout'].
const RequestTimeoutXPath = "/Error/Code[text() = 'RequestTimeout']"
