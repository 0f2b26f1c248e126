// Package pool implements the tiered worker-pool and async-handle contract
// used to submit request-pipeline work: fixed-size pools keyed by
// priority, each worker dedicated to one in-flight request at a time, with
// Wait and Callback completion handles and a watchdog that reclaims
// workers stuck on a cancelled request.
package pool
