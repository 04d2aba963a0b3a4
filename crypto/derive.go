package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds bounds the number of seeds accepted by CreateProgramAddress,
	// including the bump seed.
	MaxSeeds = 16
	// MaxSeedLength bounds the size of a single seed.
	MaxSeedLength = 32
)

var programAddressMarker = []byte("ProgramDerivedAddress")

var (
	ErrMaxSeedLengthExceeded = errors.New("crypto: seed exceeds maximum length")
	ErrTooManySeeds          = errors.New("crypto: too many seeds")
	ErrOnCurve               = errors.New("crypto: seeds derive an on-curve address")
	ErrNoViableBump          = errors.New("crypto: no viable bump seed")
)

// CreateProgramAddress derives the address controlled by programID for the
// given seeds. The result is rejected when it decodes as a valid ed25519
// point, so no private key can exist for a returned address.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrTooManySeeds
	}
	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Address{}, fmt.Errorf("%w: seed %d has %d bytes", ErrMaxSeedLengthExceeded, i, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write(programAddressMarker)

	var addr Address
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr) {
		return Address{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 downwards and returns the first
// off-curve address for seeds||bump together with that bump.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Address{}, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := math.MaxUint8; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether addr is the encoding of a point on edwards25519.
func IsOnCurve(addr Address) bool {
	_, err := new(edwards25519.Point).SetBytes(addr[:])
	return err == nil
}
