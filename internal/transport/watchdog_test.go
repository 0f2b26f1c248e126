package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchdogCancelsPastDeadlineExactlyOnce(t *testing.T) {
	wd := NewWatchdog(10 * time.Millisecond)
	req := NewRequest(nil)
	req.Init(MethodGET)
	req.setDeadline(time.Now().Add(-time.Second)) // already expired

	wd.Register(req)
	wd.Start()
	defer wd.Stop()

	require.Eventually(t, func() bool {
		return req.isCancelled()
	}, time.Second, 5*time.Millisecond)

	// further checks must not flip anything or panic
	justCancelled := req.CheckTimeout(time.Now())
	require.False(t, justCancelled, "cancellation must be observable exactly once")
}

func TestWatchdogLeavesFreshRequestsAlone(t *testing.T) {
	wd := NewWatchdog(10 * time.Millisecond)
	req := NewRequest(nil)
	req.Init(MethodGET)
	req.setDeadline(time.Now().Add(time.Hour))

	wd.Register(req)
	wd.Start()
	defer wd.Stop()

	time.Sleep(30 * time.Millisecond)
	require.False(t, req.isCancelled())
}

func TestRequestInitPanicsAfterTermination(t *testing.T) {
	req := NewRequest(nil)
	req.Init(MethodGET)
	req.terminate()

	require.Panics(t, func() {
		req.Init(MethodGET)
	})
}
