package state

import (
	"fmt"
	"math"
	"math/bits"
)

// accountStorageOverhead is charged on top of the data size of every account.
const accountStorageOverhead = 128

// MaxAccountSpace is the largest data size CreateAccount allocates.
const MaxAccountSpace = 10 << 20

// Rent is the schedule used to compute rent-exempt minimum balances.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// DefaultRent mirrors the schedule used by the reference network.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}
}

// Check rejects a schedule whose minimum balance for the largest allowed
// account does not fit in 64 bits.
func (r Rent) Check() error {
	if r.LamportsPerByteYear == 0 || r.ExemptionYears == 0 {
		return fmt.Errorf("rent: LamportsPerByteYear and ExemptionYears must be > 0")
	}
	hi, perByte := bits.Mul64(r.LamportsPerByteYear, r.ExemptionYears)
	if hi != 0 {
		return fmt.Errorf("rent: LamportsPerByteYear*ExemptionYears overflows")
	}
	if hi, _ = bits.Mul64(perByte, accountStorageOverhead+MaxAccountSpace); hi != 0 {
		return fmt.Errorf("rent: minimum balance for %d bytes overflows", MaxAccountSpace)
	}
	return nil
}

// MinimumBalance returns the lamports needed to keep size bytes rent exempt.
// The result saturates at math.MaxUint64 instead of wrapping.
func (r Rent) MinimumBalance(size uint64) uint64 {
	bytes, carry := bits.Add64(accountStorageOverhead, size, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	hi, perByte := bits.Mul64(r.LamportsPerByteYear, r.ExemptionYears)
	if hi != 0 {
		return math.MaxUint64
	}
	hi, total := bits.Mul64(bytes, perByte)
	if hi != 0 {
		return math.MaxUint64
	}
	return total
}
