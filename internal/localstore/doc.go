// Package localstore implements the on-disk backing-file store for the
// open-file engine: real files under a configured root directory, plus a
// background purge monitor that keeps total backing-file bytes under a
// configured high-water mark.
package localstore
