// Package transfer implements the provider-neutral file-transfer facade:
// download/upload strategies chosen by size, bounded-fan-out chunking
// through internal/pqueue, and an MD5 check of each returned upload ETag
// that has the form of an MD5 digest (downloads are not verified here).
// Downloader and Uploader satisfy internal/engine's
// Downloader/Uploader contracts.
package transfer
