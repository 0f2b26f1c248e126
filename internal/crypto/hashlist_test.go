package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashListRootStableWithoutChanges(t *testing.T) {
	hl := NewHashList(3 * ChunkSize)
	root1 := hl.Root()
	root2 := hl.Root()
	require.Equal(t, root1, root2)
}

func TestHashListRootChangesWhenChunkUpdates(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, ChunkSize)
	hl := NewHashList(int64(len(data)))
	before := hl.Root()

	err := hl.UpdateRange(0, data, func(idx int64) ([]byte, error) {
		return data, nil
	})
	require.NoError(t, err)

	after := hl.Root()
	require.NotEqual(t, before, after)
}

func TestHashListGrowsForOutOfRangeWrite(t *testing.T) {
	hl := NewHashList(0)
	require.Equal(t, 0, hl.NumChunks())

	data := []byte("some bytes")
	err := hl.UpdateRange(ChunkSize*2, data, func(idx int64) ([]byte, error) {
		return data, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, hl.NumChunks())
}
