package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrivateFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")

	err := WritePrivateFile(path, []byte("secret material"))
	require.NoError(t, err)

	data, err := ReadPrivateFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("secret material"), data)
}

func TestReadPrivateFileRejectsPermissiveMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	require.NoError(t, os.WriteFile(path, []byte("secret"), 0644))

	_, err := ReadPrivateFile(path)
	require.Error(t, err)
}
