package escrow

import (
	"fmt"

	"atomicescrow/core/types"
	"atomicescrow/crypto"
)

// openPlan carries everything Open needs once its checks passed.
type openPlan struct {
	record Record
	seeds  types.SignerSeeds
}

// settlement carries everything Fulfill and Cancel need once their checks
// passed.
type settlement struct {
	record  Record
	seeds   types.SignerSeeds
	custody *types.Holding
}

func (e *Engine) holding(role string, addr crypto.Address) (*types.Holding, error) {
	h, err := e.state.Holding(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s holding %s: %w", ErrMalformedInput, role, addr, err)
	}
	return h, nil
}

func (e *Engine) checkCustody(record, assetA, supplied crypto.Address) error {
	expected, err := CustodyAddress(record, assetA)
	if err != nil {
		return err
	}
	if supplied != expected {
		return fmt.Errorf("%w: custody %s, expected %s", ErrAddressMismatch, supplied, expected)
	}
	return nil
}

// loadRecord reads and decodes the record stored at addr. The storage must be
// owned by the program and the address must be the derivation of the stored
// maker and bump. When want is non-zero the record must use that layout.
func (e *Engine) loadRecord(addr crypto.Address, want Layout) (Record, error) {
	acc, ok, err := e.state.Account(addr)
	if err != nil {
		return Record{}, err
	}
	if !ok || len(acc.Data) == 0 {
		return Record{}, fmt.Errorf("%w: no escrow record at %s", ErrMalformedRecord, addr)
	}
	if acc.Owner != e.programID {
		return Record{}, fmt.Errorf("%w: record %s owned by %s", ErrOwnerMismatch, addr, acc.Owner)
	}
	view, err := LoadRecord(acc.Data)
	if err != nil {
		return Record{}, err
	}
	rec := view.Record()
	if want != 0 && rec.Layout != want {
		return Record{}, fmt.Errorf("%w: %s record, operation requires %s", ErrMalformedRecord, rec.Layout, want)
	}
	if !VerifyAuthority(addr, e.programID, rec.Maker, rec.Bump) {
		return Record{}, fmt.Errorf("%w: record %s is not derived from its maker", ErrAddressMismatch, addr)
	}
	return rec, nil
}

func (e *Engine) validateOpen(ictx *types.InvokeContext, accts OpenAccounts, req OpenRequest) (*openPlan, error) {
	if !req.Layout.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrMalformedInput, req.Layout)
	}
	if !ictx.IsSigner(accts.Maker) {
		return nil, fmt.Errorf("%w: maker %s", ErrUnauthorized, accts.Maker)
	}
	deposit, err := e.holding("maker", accts.MakerHolding)
	if err != nil {
		return nil, err
	}
	if deposit.Owner != accts.Maker {
		return nil, fmt.Errorf("%w: deposit holding owned by %s", ErrOwnerMismatch, deposit.Owner)
	}
	if deposit.Mint != accts.AssetA {
		return nil, fmt.Errorf("%w: deposit holding mint %s, expected %s", ErrAssetMismatch, deposit.Mint, accts.AssetA)
	}
	if !VerifyAuthority(accts.Record, e.programID, accts.Maker, req.Bump) {
		return nil, fmt.Errorf("%w: record %s is not derived from maker %s and bump %d", ErrAddressMismatch, accts.Record, accts.Maker, req.Bump)
	}
	if acc, ok, err := e.state.Account(accts.Record); err != nil {
		return nil, err
	} else if ok && acc.Owner == e.programID {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, accts.Record)
	}
	if err := e.checkCustody(accts.Record, accts.AssetA, accts.Custody); err != nil {
		return nil, err
	}
	return &openPlan{
		record: Record{
			Maker:           accts.Maker,
			AssetA:          accts.AssetA,
			AssetB:          accts.AssetB,
			AmountToReceive: req.AmountToReceive,
			AmountToGive:    req.AmountToGive,
			Bump:            req.Bump,
			Layout:          req.Layout,
		},
		seeds: authoritySeeds(accts.Maker, req.Bump),
	}, nil
}

// validateFulfill does not require the maker to sign: the maker's side is
// already escrowed and the counter-payment destination is pinned to the
// recorded maker.
func (e *Engine) validateFulfill(ictx *types.InvokeContext, accts FulfillAccounts, want Layout) (*settlement, error) {
	if !ictx.IsSigner(accts.Taker) {
		return nil, fmt.Errorf("%w: taker %s", ErrUnauthorized, accts.Taker)
	}
	rec, err := e.loadRecord(accts.Record, want)
	if err != nil {
		return nil, err
	}
	if accts.Maker != rec.Maker {
		return nil, fmt.Errorf("%w: maker %s, record maker %s", ErrOwnerMismatch, accts.Maker, rec.Maker)
	}
	makerB, err := e.holding("maker asset B", accts.MakerHoldingB)
	if err != nil {
		return nil, err
	}
	if makerB.Owner != rec.Maker {
		return nil, fmt.Errorf("%w: payment holding owned by %s", ErrOwnerMismatch, makerB.Owner)
	}
	if accts.AssetA != rec.AssetA || accts.AssetB != rec.AssetB {
		return nil, fmt.Errorf("%w: supplied assets do not match record", ErrAssetMismatch)
	}
	if makerB.Mint != rec.AssetB {
		return nil, fmt.Errorf("%w: payment holding mint %s", ErrAssetMismatch, makerB.Mint)
	}
	takerA, err := e.holding("taker asset A", accts.TakerHoldingA)
	if err != nil {
		return nil, err
	}
	if takerA.Mint != rec.AssetA {
		return nil, fmt.Errorf("%w: taker asset A holding mint %s", ErrAssetMismatch, takerA.Mint)
	}
	takerB, err := e.holding("taker asset B", accts.TakerHoldingB)
	if err != nil {
		return nil, err
	}
	if takerB.Mint != rec.AssetB {
		return nil, fmt.Errorf("%w: taker asset B holding mint %s", ErrAssetMismatch, takerB.Mint)
	}
	if err := e.checkCustody(accts.Record, rec.AssetA, accts.Custody); err != nil {
		return nil, err
	}
	custody, err := e.holding("custody", accts.Custody)
	if err != nil {
		return nil, err
	}
	return &settlement{record: rec, seeds: authoritySeeds(rec.Maker, rec.Bump), custody: custody}, nil
}

func (e *Engine) validateCancel(ictx *types.InvokeContext, accts CancelAccounts, want Layout) (*settlement, error) {
	if !ictx.IsSigner(accts.Maker) {
		return nil, fmt.Errorf("%w: maker %s", ErrUnauthorized, accts.Maker)
	}
	rec, err := e.loadRecord(accts.Record, want)
	if err != nil {
		return nil, err
	}
	refund, err := e.holding("maker", accts.MakerHolding)
	if err != nil {
		return nil, err
	}
	if refund.Owner != rec.Maker || accts.Maker != rec.Maker {
		return nil, fmt.Errorf("%w: caller %s, refund holding owner %s, record maker %s", ErrOwnerMismatch, accts.Maker, refund.Owner, rec.Maker)
	}
	if refund.Mint != rec.AssetA {
		return nil, fmt.Errorf("%w: refund holding mint %s", ErrAssetMismatch, refund.Mint)
	}
	if err := e.checkCustody(accts.Record, rec.AssetA, accts.Custody); err != nil {
		return nil, err
	}
	custody, err := e.holding("custody", accts.Custody)
	if err != nil {
		return nil, err
	}
	return &settlement{record: rec, seeds: authoritySeeds(rec.Maker, rec.Bump), custody: custody}, nil
}
