package pool

// AsyncHandle is the completion contract returned by Pool.Post. For the
// Callback variant, the closure receives the final result and Wait also
// returns it.
type AsyncHandle interface {
	// Wait blocks until the work completes and returns its result code.
	// Calling Wait more than once returns the same result.
	Wait() int
}

// waitHandle is a single-value oneshot completion handle.
type waitHandle struct {
	done chan int
}

func newWaitHandle() *waitHandle {
	return &waitHandle{done: make(chan int, 1)}
}

func (h *waitHandle) complete(result int) {
	h.done <- result
}

func (h *waitHandle) Wait() int {
	r := <-h.done
	h.done <- r
	return r
}

// callbackHandle invokes a closure on the worker goroutine when the work
// completes; Wait blocks until the callback has returned and then returns
// the same result, for callers that posted a callback but still want to
// block.
type callbackHandle struct {
	cb   func(result int)
	done chan int
}

func newCallbackHandle(cb func(result int)) *callbackHandle {
	return &callbackHandle{cb: cb, done: make(chan int, 1)}
}

func (h *callbackHandle) complete(result int) {
	if h.cb != nil {
		h.cb(result)
	}
	h.done <- result
}

func (h *callbackHandle) Wait() int {
	r := <-h.done
	h.done <- r
	return r
}
