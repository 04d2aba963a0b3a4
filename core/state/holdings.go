package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"atomicescrow/core/types"
	"atomicescrow/crypto"

	errs "atomicescrow/core/errors"
)

const (
	// HoldingSpace is the storage charged for a holding account.
	HoldingSpace = 165
	// MintSpace is the storage charged for a mint account.
	MintSpace = 82
)

const (
	kindHolding byte = 0x01
	kindMint    byte = 0x02
)

func encodeTokenData(kind byte, v interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{kind}, body...), nil
}

func decodeHolding(acc *types.Account) (*types.Holding, error) {
	if acc.Owner != crypto.TokenProgramID || len(acc.Data) == 0 || acc.Data[0] != kindHolding {
		return nil, errs.ErrNotHolding
	}
	h := new(types.Holding)
	if err := rlp.DecodeBytes(acc.Data[1:], h); err != nil {
		return nil, fmt.Errorf("state: decode holding: %w", err)
	}
	return h, nil
}

func decodeMint(acc *types.Account) (*types.Mint, error) {
	if acc.Owner != crypto.TokenProgramID || len(acc.Data) == 0 || acc.Data[0] != kindMint {
		return nil, errs.ErrNotMint
	}
	mint := new(types.Mint)
	if err := rlp.DecodeBytes(acc.Data[1:], mint); err != nil {
		return nil, fmt.Errorf("state: decode mint: %w", err)
	}
	return mint, nil
}

// Holding loads the holding stored at addr.
func (m *Manager) Holding(addr crypto.Address) (*types.Holding, error) {
	acc, err := m.mustAccount(addr)
	if err != nil {
		return nil, err
	}
	h, err := decodeHolding(acc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, addr)
	}
	return h, nil
}

// Mint loads the mint stored at addr.
func (m *Manager) Mint(addr crypto.Address) (*types.Mint, error) {
	acc, err := m.mustAccount(addr)
	if err != nil {
		return nil, err
	}
	mint, err := decodeMint(acc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, addr)
	}
	return mint, nil
}

func (m *Manager) putHolding(addr crypto.Address, acc *types.Account, h *types.Holding) error {
	data, err := encodeTokenData(kindHolding, h)
	if err != nil {
		return err
	}
	acc.Data = data
	return m.putAccount(addr, acc)
}

// CreateMint registers a new asset type at addr. The payer funds the mint
// account and must sign.
func (m *Manager) CreateMint(ictx *types.InvokeContext, payer, addr, authority crypto.Address, decimals uint8) error {
	if !ictx.IsSigner(payer) {
		return fmt.Errorf("%w: payer %s", errs.ErrMissingSignature, payer)
	}
	if _, ok, err := m.Account(addr); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", errs.ErrAccountExists, addr)
	}
	lamports := m.MinimumBalance(MintSpace)
	if err := m.debit(payer, lamports); err != nil {
		return err
	}
	data, err := encodeTokenData(kindMint, &types.Mint{Authority: authority, Decimals: decimals})
	if err != nil {
		return err
	}
	return m.putAccount(addr, &types.Account{Lamports: lamports, Owner: crypto.TokenProgramID, Data: data})
}

// MintTo issues amount new units into holding. The mint authority must sign.
func (m *Manager) MintTo(ictx *types.InvokeContext, mintAddr, holding crypto.Address, amount uint64) error {
	mintAcc, err := m.mustAccount(mintAddr)
	if err != nil {
		return err
	}
	mint, err := decodeMint(mintAcc)
	if err != nil {
		return err
	}
	if !ictx.IsSigner(mint.Authority) {
		return fmt.Errorf("%w: mint authority %s", errs.ErrMissingSignature, mint.Authority)
	}
	acc, err := m.mustAccount(holding)
	if err != nil {
		return err
	}
	h, err := decodeHolding(acc)
	if err != nil {
		return err
	}
	if h.Mint != mintAddr {
		return fmt.Errorf("%w: %s holds %s", errs.ErrMintMismatch, holding, h.Mint)
	}
	if h.Amount > ^uint64(0)-amount || mint.Supply > ^uint64(0)-amount {
		return errs.ErrBalanceOverflow
	}
	h.Amount += amount
	mint.Supply += amount
	if err := m.putHolding(holding, acc, h); err != nil {
		return err
	}
	mintAcc.Data, err = encodeTokenData(kindMint, mint)
	if err != nil {
		return err
	}
	return m.putAccount(mintAddr, mintAcc)
}

// CreateHolding establishes the associated holding of p.Wallet for p.Mint,
// funded by p.Funder. Creating a holding that already exists empty is a no-op,
// and a data-less system account at the address is converted in place, so a
// third party cannot block creation by getting there first.
func (m *Manager) CreateHolding(ictx *types.InvokeContext, p types.CreateHoldingParams) error {
	if !ictx.IsSigner(p.Funder) {
		return fmt.Errorf("%w: funder %s", errs.ErrMissingSignature, p.Funder)
	}
	expected, err := crypto.AssociatedHoldingAddress(p.Wallet, p.Mint)
	if err != nil {
		return err
	}
	if expected != p.Holding {
		return fmt.Errorf("%w: got %s, want %s", errs.ErrInvalidHolding, p.Holding, expected)
	}
	if _, err := m.Mint(p.Mint); err != nil {
		return err
	}
	existing, ok, err := m.Account(p.Holding)
	if err != nil {
		return err
	}
	var held uint64
	if ok {
		switch {
		case existing.Owner == crypto.TokenProgramID:
			h, err := decodeHolding(existing)
			if err != nil || h.Mint != p.Mint || h.Owner != p.Wallet {
				return fmt.Errorf("%w: %s", errs.ErrAccountExists, p.Holding)
			}
			if h.Amount != 0 {
				return fmt.Errorf("%w: %s holds %d", errs.ErrHoldingNotEmpty, p.Holding, h.Amount)
			}
			return nil
		case existing.Owner == crypto.SystemProgramID && len(existing.Data) == 0:
			held = existing.Lamports
		default:
			return fmt.Errorf("%w: %s", errs.ErrAccountExists, p.Holding)
		}
	}
	lamports := m.MinimumBalance(HoldingSpace)
	if held < lamports {
		if err := m.debit(p.Funder, lamports-held); err != nil {
			return err
		}
	} else {
		lamports = held
	}
	acc := &types.Account{Lamports: lamports, Owner: crypto.TokenProgramID}
	return m.putHolding(p.Holding, acc, &types.Holding{Mint: p.Mint, Owner: p.Wallet})
}

// Transfer moves p.Amount units between two holdings of the same mint. The
// authority must own the source holding and either sign or be derivable from
// seeds under the invoking program.
func (m *Manager) Transfer(ictx *types.InvokeContext, p types.TransferParams, seeds ...types.SignerSeeds) error {
	fromAcc, err := m.mustAccount(p.From)
	if err != nil {
		return err
	}
	from, err := decodeHolding(fromAcc)
	if err != nil {
		return fmt.Errorf("%w: %s", err, p.From)
	}
	toAcc, err := m.mustAccount(p.To)
	if err != nil {
		return err
	}
	to, err := decodeHolding(toAcc)
	if err != nil {
		return fmt.Errorf("%w: %s", err, p.To)
	}
	if from.Mint != to.Mint {
		return fmt.Errorf("%w: %s -> %s", errs.ErrMintMismatch, from.Mint, to.Mint)
	}
	if from.Owner != p.Authority {
		return fmt.Errorf("%w: %s is owned by %s", errs.ErrWrongAuthority, p.From, from.Owner)
	}
	if !authorized(ictx, p.Authority, seeds) {
		return fmt.Errorf("%w: transfer authority %s", errs.ErrMissingSignature, p.Authority)
	}
	if from.Amount < p.Amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", errs.ErrInsufficientFunds, p.From, from.Amount, p.Amount)
	}
	if p.From == p.To {
		return nil
	}
	if to.Amount > ^uint64(0)-p.Amount {
		return fmt.Errorf("%w: %s", errs.ErrBalanceOverflow, p.To)
	}
	from.Amount -= p.Amount
	to.Amount += p.Amount
	if err := m.putHolding(p.From, fromAcc, from); err != nil {
		return err
	}
	return m.putHolding(p.To, toAcc, to)
}

// CloseHolding deletes an empty holding and sends its lamports to
// p.Destination.
func (m *Manager) CloseHolding(ictx *types.InvokeContext, p types.CloseHoldingParams, seeds ...types.SignerSeeds) error {
	acc, err := m.mustAccount(p.Holding)
	if err != nil {
		return err
	}
	h, err := decodeHolding(acc)
	if err != nil {
		return fmt.Errorf("%w: %s", err, p.Holding)
	}
	if h.Owner != p.Authority {
		return fmt.Errorf("%w: %s is owned by %s", errs.ErrWrongAuthority, p.Holding, h.Owner)
	}
	if !authorized(ictx, p.Authority, seeds) {
		return fmt.Errorf("%w: close authority %s", errs.ErrMissingSignature, p.Authority)
	}
	if h.Amount != 0 {
		return fmt.Errorf("%w: %s holds %d", errs.ErrHoldingNotEmpty, p.Holding, h.Amount)
	}
	if p.Holding == p.Destination {
		return fmt.Errorf("state: cannot close %s into itself", p.Holding)
	}
	if err := m.deleteAccount(p.Holding); err != nil {
		return err
	}
	return m.credit(p.Destination, acc.Lamports)
}
