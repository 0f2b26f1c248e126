package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeXattrSafeValuePassesThrough(t *testing.T) {
	key, value := encodeXattrMetaEntry("user.note", []byte("hello"))
	require.Equal(t, "user.note", key)
	require.Equal(t, "hello", value)
}

func TestEncodeDecodeXattrUnsafeValueRoundTrips(t *testing.T) {
	name := "user.note"
	original := []byte{0x00, 0x01, 0xff, 'h', 'i'}

	metaKey, metaValue := encodeXattrMetaEntry(name, original)
	require.Regexp(t, "^xattr_[0-9a-f]{32}$", metaKey)

	decodedName, decodedValue, err := decodeXattrMetaEntry(metaKey, metaValue)
	require.NoError(t, err)
	require.Equal(t, name, decodedName)
	require.Equal(t, original, decodedValue)
}

func TestReservedXattrNamesRejected(t *testing.T) {
	require.True(t, IsReservedXattrName("s3fuse-internal"))
	require.True(t, IsReservedXattrName("xattr_deadbeef"))
	require.False(t, IsReservedXattrName("user.note"))
}

func TestReferenceXattrNeverSerializes(t *testing.T) {
	x := NewReferenceXattr("s3fuse-sha256", func() []byte { return []byte("abc123") })
	require.False(t, x.Flags.Serializable)
	require.False(t, x.Flags.Writable)
	require.Equal(t, []byte("abc123"), x.Value())
}
