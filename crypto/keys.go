package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// PrivateKey wraps an ed25519 private key. The matching public key doubles as
// the ledger address.
type PrivateKey struct {
	ed25519.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromSeed rebuilds a key from its 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &PrivateKey{ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed the key was derived from.
func (k *PrivateKey) Seed() []byte {
	return k.PrivateKey.Seed()
}

func (k *PrivateKey) Address() Address {
	var addr Address
	copy(addr[:], k.PrivateKey.Public().(ed25519.PublicKey))
	return addr
}
