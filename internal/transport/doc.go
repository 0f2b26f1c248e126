// Package transport implements the request pipeline described by the
// core spec: a reusable Request carrying method/URL/headers/body, a Hook
// interface for per-attempt URL rewriting, signing, and retry decisions,
// a retry loop enforcing the mandatory-retry transport-error set, and a
// watchdog that marks requests past their deadline as cancelled.
package transport
