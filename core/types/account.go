package types

import "atomicescrow/crypto"

// Account is the raw ledger entry stored under an address. Owner names the
// program allowed to mutate Data; Lamports fund the storage.
type Account struct {
	Lamports uint64
	Owner    crypto.Address
	Data     []byte
}

// Clone returns a deep copy so callers can mutate the copy freely.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Data = append([]byte(nil), a.Data...)
	return &clone
}

// Holding is a fungible-asset balance of a single mint controlled by Owner.
// Holdings live in accounts owned by the token program.
type Holding struct {
	Mint   crypto.Address
	Owner  crypto.Address
	Amount uint64
}

// Mint describes a fungible asset type.
type Mint struct {
	Authority crypto.Address
	Supply    uint64
	Decimals  uint8
}
