package pqueue

import (
	"sync"
	"syscall"
)

// ErrAgain and ErrTimedOut are the negative-errno sentinels a PartFn may
// return to request a retry. Any other non-zero return halts posting.
const (
	ErrAgain    = -int(syscall.EAGAIN)
	ErrTimedOut = -int(syscall.ETIMEDOUT)
)

// PartFn executes one part, returning 0 on success or a negative errno.
type PartFn func(part int) int

// DefaultMaxInFlight is the default bound on concurrently in-flight parts.
const DefaultMaxInFlight = 4

// Options configures a Queue run.
type Options struct {
	// MaxInFlight bounds concurrently-running parts. Zero uses DefaultMaxInFlight.
	MaxInFlight int
	// MaxRetries caps retries of a single part on ErrAgain/ErrTimedOut.
	MaxRetries int
}

// Run executes fn(0), fn(1), ..., fn(numParts-1) with at most
// opts.MaxInFlight concurrently in flight. A part returning ErrAgain or
// ErrTimedOut is retried up to opts.MaxRetries times. The first other
// non-zero result halts further posting; already in-flight parts are
// drained before Run returns. The return value is the result of the
// earliest-posted part that failed, in part order, or zero if every part
// succeeded.
func Run(numParts int, fn PartFn, opts Options) int {
	if numParts <= 0 {
		return 0
	}

	maxInFlight := opts.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, maxInFlight)
		halted  bool
		results = make([]int, numParts)
	)

	runPart := func(part int) {
		defer wg.Done()
		defer func() { <-sem }()

		retries := 0
		for {
			mu.Lock()
			stop := halted
			mu.Unlock()
			if stop && retries > 0 {
				return
			}

			result := fn(part)
			if result == 0 {
				return
			}
			if (result == ErrAgain || result == ErrTimedOut) && retries < opts.MaxRetries {
				retries++
				continue
			}

			mu.Lock()
			results[part] = result
			halted = true
			mu.Unlock()
			return
		}
	}

	nextPart := 0
	for {
		mu.Lock()
		stop := halted || nextPart >= numParts
		mu.Unlock()
		if stop {
			break
		}

		part := nextPart
		nextPart++

		sem <- struct{}{}
		wg.Add(1)
		go runPart(part)
	}

	wg.Wait()

	for _, r := range results {
		if r != 0 {
			return r
		}
	}
	return 0
}
