package crypto

import (
	"fmt"
	"os"
)

// privateFileMode is the owner-only permission private key material is
// written and expected to be read under.
const privateFileMode = 0600

// ReadPrivateFile reads a file that must carry owner-only permissions,
// refusing to read it if the mode is more permissive (group/world
// readable), which would leak key material.
func ReadPrivateFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("privatefile: stat %s: %w", path, err)
	}
	if info.Mode().Perm()&0077 != 0 {
		return nil, fmt.Errorf("privatefile: %s has permissive mode %#o, refusing to read key material", path, info.Mode().Perm())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("privatefile: read %s: %w", path, err)
	}
	return data, nil
}

// WritePrivateFile writes data to path with owner-only permissions. The
// parent directory must already exist; it is not created.
func WritePrivateFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, privateFileMode); err != nil {
		return fmt.Errorf("privatefile: write %s: %w", path, err)
	}
	// os.WriteFile only applies the mode on create; enforce it explicitly
	// in case the file pre-existed with a looser mode.
	if err := os.Chmod(path, privateFileMode); err != nil {
		return fmt.Errorf("privatefile: chmod %s: %w", path, err)
	}
	return nil
}
