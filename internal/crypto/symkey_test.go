package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymmetricKeySerializationRoundTrip(t *testing.T) {
	k, err := RandomSymmetricKey(32, 16)
	require.NoError(t, err)

	serialized := k.String()
	parsed, err := ParseSymmetricKey(serialized)
	require.NoError(t, err)

	require.Equal(t, k.Key, parsed.Key)
	require.Equal(t, k.IV, parsed.IV)
}

func TestParseSymmetricKeyRejectsMalformed(t *testing.T) {
	_, err := ParseSymmetricKey("not-a-valid-key")
	require.Error(t, err)
}
