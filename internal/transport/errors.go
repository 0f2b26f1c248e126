package transport

import "errors"

// ErrTransport covers DNS/connect/TLS/partial-transfer/send-recv failures:
// always retried up to the configured cap.
var ErrTransport = errors.New("transport: transport-level failure")

// ErrTimedOut is returned when the watchdog cancels an in-flight request,
// or the HTTP client itself reports a timeout.
var ErrTimedOut = errors.New("transport: request timed out")

// ErrSigner is returned when two consecutive attempts get HTTP 401, or when
// the retry budget runs out with a 401 as the last observed failure.
var ErrSigner = errors.New("transport: signer could not authorize request after retries")

// ErrRetriesExhausted is returned when the retry budget runs out on a
// retryable body-level condition (HTTP 500/503/RequestTimeout).
var ErrRetriesExhausted = errors.New("transport: retries exhausted")
