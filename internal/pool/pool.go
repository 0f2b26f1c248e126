package pool

import (
	"sync"

	"github.com/s3fuse/corefs/internal/transport"
)

// Priority selects which fixed-size pool a WorkItem is queued on.
type Priority int

const (
	// PR0 is the default priority for ordinary metadata/file operations.
	PR0 Priority = iota
	// PRReq0 is reserved for latency-sensitive foreground requests.
	PRReq0
	// PRReq1 is reserved for background/bulk work (precache, purge).
	PRReq1
)

// WorkFn is the unit of work a worker executes against its owned Request.
// It returns a result code; by convention 0 means success and negative
// values are POSIX-style errno.
type WorkFn func(req *transport.Request) int

// workItem carries a WorkFn, its completion handle, and the remaining
// retry-on-timeout budget.
type workItem struct {
	fn            WorkFn
	handle        interface{ complete(int) }
	timeoutBudget int
}

// Pool runs fixed-size worker goroutines per priority tier, each owning
// one transport.Request for its lifetime, pulling workItems from a
// per-priority FIFO channel.
type Pool struct {
	mu       sync.Mutex
	queues   map[Priority]chan *workItem
	hook     transport.Hook
	runOpts  transport.RunOptions
	watchdog *transport.Watchdog
	newReq   func() *transport.Request

	stopCh chan struct{}
	wg     sync.WaitGroup

	closed bool
}

// defaultTimeoutRetryBudget is how many times a WorkFn returning
// -ETIMEDOUT is re-posted onto the same pool before giving up.
const defaultTimeoutRetryBudget = 2

const errTimedOut = -110 // -ETIMEDOUT on Linux; the engine translates via pkg/errors at the FUSE boundary

// New creates a Pool with workerCounts[p] workers for each priority p,
// each worker owning a Request built by newReq.
func New(workerCounts map[Priority]int, hook transport.Hook, runOpts transport.RunOptions, newReq func() *transport.Request, watchdog *transport.Watchdog) *Pool {
	p := &Pool{
		queues:   make(map[Priority]chan *workItem),
		hook:     hook,
		runOpts:  runOpts,
		watchdog: watchdog,
		newReq:   newReq,
		stopCh:   make(chan struct{}),
	}

	for priority, count := range workerCounts {
		queue := make(chan *workItem, 256)
		p.queues[priority] = queue
		for i := 0; i < count; i++ {
			p.wg.Add(1)
			go p.runWorker(priority, queue)
		}
	}

	return p
}

func (p *Pool) runWorker(priority Priority, queue chan *workItem) {
	defer p.wg.Done()
	req := p.newReq()
	if p.watchdog != nil {
		p.watchdog.Register(req)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case item, ok := <-queue:
			if !ok {
				return
			}
			p.runItem(priority, queue, req, item)
		}
	}
}

func (p *Pool) runItem(priority Priority, queue chan *workItem, req *transport.Request, item *workItem) {
	result := item.fn(req)

	if result == errTimedOut && item.timeoutBudget > 0 {
		item.timeoutBudget--
		select {
		case queue <- item:
			return
		default:
			// queue full: fall through and complete with the timeout
		}
	}

	item.handle.complete(result)
}

// Post enqueues fn on the given priority tier without waiting, returning a
// Wait-style handle the caller may block on later.
func (p *Pool) Post(priority Priority, fn WorkFn) AsyncHandle {
	h := newWaitHandle()
	p.enqueue(priority, fn, h)
	return h
}

// PostCallback enqueues fn and invokes cb with the result on the worker
// goroutine when it completes, without any caller blocking.
func (p *Pool) PostCallback(priority Priority, fn WorkFn, cb func(result int)) AsyncHandle {
	h := newCallbackHandle(cb)
	p.enqueue(priority, fn, h)
	return h
}

// Call posts fn and blocks until it completes, returning its result.
func (p *Pool) Call(priority Priority, fn WorkFn) int {
	return p.Post(priority, fn).Wait()
}

// CallAsync posts fn and discards the handle entirely.
func (p *Pool) CallAsync(priority Priority, fn WorkFn) {
	p.PostCallback(priority, fn, nil)
}

func (p *Pool) enqueue(priority Priority, fn WorkFn, handle interface{ complete(int) }) {
	p.mu.Lock()
	queue, ok := p.queues[priority]
	closed := p.closed
	p.mu.Unlock()

	if closed || !ok {
		handle.complete(errTimedOut)
		return
	}

	queue <- &workItem{fn: fn, handle: handle, timeoutBudget: defaultTimeoutRetryBudget}
}

// Close stops all workers and waits for them to exit. In-flight items are
// not drained; callers should stop posting before calling Close.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
}
