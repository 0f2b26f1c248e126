// Package engine implements the object model, metadata cache, directory
// listing/rename, and open-file state machine at the core of the
// filesystem: the part of the system the request pipeline and transfer
// layer exist to serve.
package engine
