package transport

import (
	"bytes"
	"context"
	"time"
)

// DefaultMaxTransferRetries is the cap spec.md calls max-transfer-retries.
const DefaultMaxTransferRetries = 3

// DefaultTimeout is used by Run when the caller passes zero.
const DefaultTimeout = 30 * time.Second

// RunOptions configures a single Run call.
type RunOptions struct {
	Timeout     time.Duration
	MaxAttempts int // including the initial attempt; 0 means DefaultMaxTransferRetries+1
}

// Run executes the request with the hook's signing and retry contract,
// retrying mandatory transport errors unconditionally (within budget) and
// deferring to hook.ShouldRetry for completed-but-unsuccessful attempts.
func (r *Request) Run(ctx context.Context, hook Hook, opts RunOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxTransferRetries + 1
	}

	var lastErr error
	authFailedLastAttempt := false

	for attempt := 0; attempt < maxAttempts; attempt++ {
		r.setDeadline(time.Now().Add(timeout))

		if err := hook.PreRun(r, attempt); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := r.execute(attemptCtx, hook)
		cancel()

		if err != nil {
			lastErr = err
			if err == ErrTimedOut { //nolint:errorlint // sentinel comparison intentional
				continue
			}
			// other transport-level failures: always retried within budget
			continue
		}

		code := r.ResponseCode()

		if code == 401 {
			// GCS retries exactly once after token refresh; the hook
			// itself performs the refresh inside PreRun on the next
			// attempt when it sees the prior attempt failed auth.
			// ShouldRetry is how the hook sees that failure; its answer
			// is not used for a 401.
			hook.ShouldRetry(r, attempt)
			if authFailedLastAttempt {
				return ErrSigner
			}
			authFailedLastAttempt = true
			lastErr = ErrSigner
			continue
		}
		authFailedLastAttempt = false

		if isBodyLevelRetryable(code, r.OutputBody()) {
			lastErr = ErrRetriesExhausted
			continue
		}

		if hook.ShouldRetry(r, attempt) {
			lastErr = ErrRetriesExhausted
			continue
		}

		return nil
	}

	if lastErr != nil {
		return lastErr
	}
	return ErrRetriesExhausted
}

// isBodyLevelRetryable implements spec.md's body-level retry condition:
// HTTP 500/503 unconditionally, or HTTP 400 whose body contains an S3
// error document with Code=RequestTimeout. This is a substring check
// rather than a full XML parse — XML/JSON parsing is an opaque external
// collaborator per spec.md §1, not part of the core.
func isBodyLevelRetryable(code int, body []byte) bool {
	switch code {
	case 500, 503:
		return true
	case 400:
		return bytes.Contains(body, []byte("RequestTimeout"))
	default:
		return false
	}
}
