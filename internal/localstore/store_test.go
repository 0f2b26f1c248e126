package localstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAndReadWriteRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Create("a.txt", 0))
	n, err := s.WriteAt("a.txt", []byte("hello"), 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = s.ReadAt("a.txt", buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestSizeAndTotalBytesTrackWrites(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Create("a.txt", 10))
	require.Equal(t, int64(10), s.TotalBytes())

	_, err = s.WriteAt("a.txt", []byte("0123456789012345"), 0) // grows past 10
	require.NoError(t, err)
	require.Equal(t, int64(16), s.TotalBytes())

	size, err := s.Size("a.txt")
	require.NoError(t, err)
	require.Equal(t, int64(16), size)
}

func TestPurgeRemovesFileAndReleasesBytes(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Create("a.txt", 100))
	require.NoError(t, s.Purge("a.txt"))
	require.Equal(t, int64(0), s.TotalBytes())
	require.False(t, s.Exists("a.txt"))
}

func TestOldestFirstOrdersByLastTouch(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Create("a.txt", 1))
	require.NoError(t, s.Create("b.txt", 1))
	require.NoError(t, s.Create("c.txt", 1))
	_, _ = s.WriteAt("a.txt", []byte("x"), 0) // touches a.txt again, moving it to front

	order := s.OldestFirst()
	require.Equal(t, []string{"b.txt", "c.txt", "a.txt"}, order)
}
