package transfer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	mu    sync.Mutex
	data  []byte
	calls []string
	fail  map[int64]int // offset -> remaining failures
}

func (g *fakeGetter) GetObject(ctx context.Context, key string, offset, size int64) ([]byte, error) {
	g.mu.Lock()
	g.calls = append(g.calls, fmt.Sprintf("%d+%d", offset, size))
	if n, ok := g.fail[offset]; ok && n > 0 {
		g.fail[offset]--
		g.mu.Unlock()
		return nil, fmt.Errorf("boom at %d", offset)
	}
	g.mu.Unlock()
	return g.data[offset : offset+size], nil
}

func TestDownloadSingleUsesOneGet(t *testing.T) {
	getter := &fakeGetter{data: []byte("hello world")}
	d := NewDownloader(getter, 1024, 4)

	var got []byte
	err := d.Download("f", int64(len(getter.data)), func(off int64, chunk []byte) {
		got = append(got, chunk...)
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
	require.Len(t, getter.calls, 1)
}

func TestDownloadMultiSplitsIntoChunks(t *testing.T) {
	data := make([]byte, 30)
	for i := range data {
		data[i] = byte(i)
	}
	getter := &fakeGetter{data: data}
	d := NewDownloader(getter, 10, 2)

	chunks := map[int64][]byte{}
	var mu sync.Mutex
	err := d.Download("f", int64(len(data)), func(off int64, chunk []byte) {
		mu.Lock()
		chunks[off] = append([]byte{}, chunk...)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Equal(t, data[0:10], chunks[0])
	require.Equal(t, data[10:20], chunks[10])
	require.Equal(t, data[20:30], chunks[20])
}

func TestDownloadMultiPropagatesPersistentFailure(t *testing.T) {
	data := make([]byte, 20)
	getter := &fakeGetter{data: data, fail: map[int64]int{10: 99}}
	d := NewDownloader(getter, 10, 2)

	err := d.Download("f", int64(len(data)), func(off int64, chunk []byte) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "f")
}

func TestDownloadMultiRetriesTransientFailure(t *testing.T) {
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	getter := &fakeGetter{data: data, fail: map[int64]int{10: 1}}
	d := NewDownloader(getter, 10, 1)

	var got []byte
	err := d.Download("f", int64(len(data)), func(off int64, chunk []byte) {
		got = append(got, chunk...)
	})
	require.NoError(t, err)
	require.Len(t, got, 20)
}
