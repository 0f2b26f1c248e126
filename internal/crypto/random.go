package crypto

import "crypto/rand"

// fillRandom fills b with cryptographically random bytes.
func fillRandom(b []byte) error {
	_, err := rand.Read(b)
	return err
}

// RandomIV returns n cryptographically random bytes, for callers that
// need a fresh IV without a full SymmetricKey.
func RandomIV(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := fillRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// randomSuffix returns a short random hex suffix, used to name temporary
// objects (e.g. the volume-key rotation temp object) so concurrent
// rotations cannot collide.
func randomSuffix() string {
	b := make([]byte, 8)
	_ = fillRandom(b)
	return HexEncode(b)
}
