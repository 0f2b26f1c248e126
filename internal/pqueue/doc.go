// Package pqueue implements the bounded-concurrency, retryable fan-out
// used by multipart upload/download and bulk rename.
package pqueue
