package state

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"atomicescrow/core/types"
	"atomicescrow/crypto"
	"atomicescrow/storage"
	"atomicescrow/storage/trie"

	errs "atomicescrow/core/errors"
)

var accountPrefix = []byte("acct:")

func accountKey(addr crypto.Address) []byte {
	buf := make([]byte, len(accountPrefix)+crypto.AddressLength)
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return buf
}

// Manager is the reference ledger substrate. It stores accounts RLP-encoded in
// a key-value database. Inside a snapshot every write is journaled and staged
// in memory, so a unit of work is either rolled back or committed in a single
// database batch.
//
// Manager is not safe for concurrent use; callers serialise access.
type Manager struct {
	db      storage.Database
	rent    Rent
	journal []journalEntry
	pending map[string]pendingWrite
	depth   int
}

// NewManager creates a ledger over db using the supplied rent schedule.
func NewManager(db storage.Database, rent Rent) *Manager {
	return &Manager{db: db, rent: rent}
}

// MinimumBalance returns the rent-exempt lamport balance for size bytes of
// account data.
func (m *Manager) MinimumBalance(size uint64) uint64 {
	return m.rent.MinimumBalance(size)
}

// Account loads the raw account stored at addr. The boolean is false when no
// account exists.
func (m *Manager) Account(addr crypto.Address) (*types.Account, bool, error) {
	raw, err := m.get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	acc := new(types.Account)
	if err := rlp.DecodeBytes(raw, acc); err != nil {
		return nil, false, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	return acc, true, nil
}

func (m *Manager) mustAccount(addr crypto.Address) (*types.Account, error) {
	acc, ok, err := m.Account(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrAccountNotFound, addr)
	}
	return acc, nil
}

func (m *Manager) putAccount(addr crypto.Address, acc *types.Account) error {
	encoded, err := rlp.EncodeToBytes(acc)
	if err != nil {
		return err
	}
	return m.put(accountKey(addr), encoded)
}

func (m *Manager) deleteAccount(addr crypto.Address) error {
	return m.del(accountKey(addr))
}

// Lamports returns the lamport balance of addr, zero when the account is
// absent.
func (m *Manager) Lamports(addr crypto.Address) (uint64, error) {
	acc, ok, err := m.Account(addr)
	if err != nil || !ok {
		return 0, err
	}
	return acc.Lamports, nil
}

func (m *Manager) credit(addr crypto.Address, lamports uint64) error {
	acc, ok, err := m.Account(addr)
	if err != nil {
		return err
	}
	if !ok {
		acc = &types.Account{Owner: crypto.SystemProgramID}
	}
	if acc.Lamports > ^uint64(0)-lamports {
		return fmt.Errorf("%w: lamports of %s", errs.ErrBalanceOverflow, addr)
	}
	acc.Lamports += lamports
	return m.putAccount(addr, acc)
}

func (m *Manager) debit(addr crypto.Address, lamports uint64) error {
	acc, err := m.mustAccount(addr)
	if err != nil {
		return err
	}
	if acc.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d lamports, needs %d", errs.ErrInsufficientFunds, addr, acc.Lamports, lamports)
	}
	acc.Lamports -= lamports
	return m.putAccount(addr, acc)
}

// Airdrop credits lamports to addr, creating a system account when needed.
func (m *Manager) Airdrop(addr crypto.Address, lamports uint64) error {
	return m.credit(addr, lamports)
}

// CreateAccount allocates zeroed storage of p.Space bytes at p.To, owned by
// p.Owner and funded by p.From. From must sign; To must sign or be derived
// from one of seeds under the invoking program.
//
// A system account without data already at p.To, such as one that received a
// plain lamport transfer, is allocated and assigned in place; From then only
// pays the shortfall up to p.Lamports.
func (m *Manager) CreateAccount(ictx *types.InvokeContext, p types.CreateAccountParams, seeds ...types.SignerSeeds) error {
	if !ictx.IsSigner(p.From) {
		return fmt.Errorf("%w: funder %s", errs.ErrMissingSignature, p.From)
	}
	if !authorized(ictx, p.To, seeds) {
		return fmt.Errorf("%w: new account %s", errs.ErrMissingSignature, p.To)
	}
	if p.Space > MaxAccountSpace {
		return fmt.Errorf("state: account space %d exceeds %d", p.Space, MaxAccountSpace)
	}
	if min := m.MinimumBalance(p.Space); p.Lamports < min {
		return fmt.Errorf("%w: %d < %d", errs.ErrRentNotMet, p.Lamports, min)
	}
	existing, ok, err := m.Account(p.To)
	if err != nil {
		return err
	}
	var held uint64
	if ok {
		if existing.Owner != crypto.SystemProgramID || len(existing.Data) > 0 {
			return fmt.Errorf("%w: %s", errs.ErrAccountExists, p.To)
		}
		held = existing.Lamports
	}
	lamports := held
	if held < p.Lamports {
		if err := m.debit(p.From, p.Lamports-held); err != nil {
			return err
		}
		lamports = p.Lamports
	}
	return m.putAccount(p.To, &types.Account{
		Lamports: lamports,
		Owner:    p.Owner,
		Data:     make([]byte, p.Space),
	})
}

// WriteData replaces the data of a program-owned account. The size of the
// storage is fixed at creation.
func (m *Manager) WriteData(ictx *types.InvokeContext, addr crypto.Address, data []byte) error {
	acc, err := m.mustAccount(addr)
	if err != nil {
		return err
	}
	if ictx == nil || acc.Owner != ictx.ProgramID {
		return fmt.Errorf("%w: %s", errs.ErrNotProgramOwned, addr)
	}
	if len(data) != len(acc.Data) {
		return fmt.Errorf("state: data size %d does not match storage size %d", len(data), len(acc.Data))
	}
	acc.Data = append(acc.Data[:0], data...)
	return m.putAccount(addr, acc)
}

// CloseAccount frees storage owned by the invoking program and moves its
// lamports to p.Destination.
func (m *Manager) CloseAccount(ictx *types.InvokeContext, p types.CloseAccountParams) error {
	acc, err := m.mustAccount(p.Account)
	if err != nil {
		return err
	}
	if ictx == nil || acc.Owner != ictx.ProgramID {
		return fmt.Errorf("%w: %s", errs.ErrNotProgramOwned, p.Account)
	}
	if p.Account == p.Destination {
		return fmt.Errorf("state: cannot close %s into itself", p.Account)
	}
	if err := m.deleteAccount(p.Account); err != nil {
		return err
	}
	return m.credit(p.Destination, acc.Lamports)
}

// Digest returns a BLAKE3 hash over every stored account. Two ledgers with the
// same accounts have the same digest.
func (m *Manager) Digest() ([32]byte, error) {
	h := blake3.New(32, nil)
	err := m.Iterate(accountPrefix, func(key, value []byte) bool {
		h.Write(key)
		h.Write(value)
		return true
	})
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// StateRoot returns the Merkle Patricia root over the stored accounts keyed by
// address.
func (m *Manager) StateRoot() ([32]byte, error) {
	root, err := trie.Root(m, accountPrefix)
	if err != nil {
		return [32]byte{}, err
	}
	return root, nil
}

// AccountsOwnedBy visits every account owned by program in address order.
// Returning false from fn stops the scan.
func (m *Manager) AccountsOwnedBy(program crypto.Address, fn func(addr crypto.Address, acc *types.Account) bool) error {
	var decodeErr error
	err := m.Iterate(accountPrefix, func(key, value []byte) bool {
		acc := new(types.Account)
		if decodeErr = rlp.DecodeBytes(value, acc); decodeErr != nil {
			decodeErr = fmt.Errorf("state: decode account %x: %w", key[len(accountPrefix):], decodeErr)
			return false
		}
		if acc.Owner != program {
			return true
		}
		var addr crypto.Address
		copy(addr[:], key[len(accountPrefix):])
		return fn(addr, acc)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

func authorized(ictx *types.InvokeContext, authority crypto.Address, seeds []types.SignerSeeds) bool {
	if ictx == nil {
		return false
	}
	if ictx.IsSigner(authority) {
		return true
	}
	for _, s := range seeds {
		addr, err := crypto.CreateProgramAddress(s, ictx.ProgramID)
		if err == nil && bytes.Equal(addr[:], authority[:]) {
			return true
		}
	}
	return false
}
