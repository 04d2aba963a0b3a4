package escrow

import (
	"math"
	"math/bits"
	"time"

	"atomicescrow/core/events"
	"atomicescrow/core/types"
	"atomicescrow/crypto"
	"atomicescrow/native/common"
)

type ledgerState interface {
	Account(addr crypto.Address) (*types.Account, bool, error)
	Holding(addr crypto.Address) (*types.Holding, error)
	MinimumBalance(size uint64) uint64
	CreateAccount(ictx *types.InvokeContext, p types.CreateAccountParams, seeds ...types.SignerSeeds) error
	WriteData(ictx *types.InvokeContext, addr crypto.Address, data []byte) error
	CreateHolding(ictx *types.InvokeContext, p types.CreateHoldingParams) error
	Transfer(ictx *types.InvokeContext, p types.TransferParams, seeds ...types.SignerSeeds) error
	CloseHolding(ictx *types.InvokeContext, p types.CloseHoldingParams, seeds ...types.SignerSeeds) error
	CloseAccount(ictx *types.InvokeContext, p types.CloseAccountParams) error
	AccountsOwnedBy(program crypto.Address, fn func(addr crypto.Address, acc *types.Account) bool) error
	QuotaUsage(module string, epoch uint64, addr crypto.Address) (common.QuotaNow, error)
	SetQuotaUsage(module string, addr crypto.Address, now common.QuotaNow) error
	Snapshot() int
	RevertToSnapshot(id int) error
	DiscardSnapshot(id int) error
}

// Engine applies the escrow state transitions against a ledger. Each
// operation validates every account before the first effect and runs inside a
// ledger snapshot, so a failure at any step leaves no partial effect.
type Engine struct {
	programID crypto.Address
	state     ledgerState
	emitter   events.Emitter
	quota     common.Quota
	now       func() time.Time
}

// NewEngine creates an escrow engine for the program deployed at programID
// with a no-op emitter.
func NewEngine(programID crypto.Address) *Engine {
	return &Engine{programID: programID, emitter: events.NoopEmitter{}, now: time.Now}
}

// SetQuota limits how many Opens, and how many units of asset A, each maker
// may submit per epoch. Counters are kept in the ledger.
func (e *Engine) SetQuota(q common.Quota) { e.quota = q }

// SetNowFunc overrides the clock used to pick the quota epoch.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.now = now
}

// SetState configures the ledger backend used by the engine.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// ProgramID returns the program identity the engine derives addresses under.
func (e *Engine) ProgramID() crypto.Address { return e.programID }

func (e *Engine) invokeContext(signers []crypto.Address) *types.InvokeContext {
	return &types.InvokeContext{ProgramID: e.programID, Signers: signers}
}

func (e *Engine) atomically(fn func() error) error {
	if e.state == nil {
		return errNilState
	}
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		if revertErr := e.state.RevertToSnapshot(snap); revertErr != nil {
			return revertErr
		}
		return err
	}
	return e.state.DiscardSnapshot(snap)
}

// chargeQuota adds one Open of amount units to the maker's counters for the
// current epoch. It runs inside the Open snapshot, so a failed Open is never
// charged.
func (e *Engine) chargeQuota(maker crypto.Address, amount uint64) error {
	if !e.quota.Enabled() {
		return nil
	}
	epoch := e.quota.EpochAt(e.now().Unix())
	prev, err := e.state.QuotaUsage(ModuleName, epoch, maker)
	if err != nil {
		return err
	}
	next, err := common.CheckQuota(e.quota, epoch, prev, 1, amount)
	if err != nil {
		return err
	}
	return e.state.SetQuotaUsage(ModuleName, maker, next)
}

func (e *Engine) emit(evt *types.Event) {
	if e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: evt})
}

// Open creates the escrow record at the address derived from the maker and
// bump, establishes the custodial holding and deposits AmountToGive units of
// asset A into it.
func (e *Engine) Open(signers []crypto.Address, accts OpenAccounts, req OpenRequest) (*Record, error) {
	var rec *Record
	err := e.atomically(func() error {
		ictx := e.invokeContext(signers)
		plan, err := e.validateOpen(ictx, accts, req)
		if err != nil {
			return err
		}
		if err := e.chargeQuota(accts.Maker, plan.record.AmountToGive); err != nil {
			return err
		}
		size := uint64(plan.record.Layout.Size())
		if err := e.state.CreateAccount(ictx, types.CreateAccountParams{
			From:     accts.Maker,
			To:       accts.Record,
			Lamports: e.state.MinimumBalance(size),
			Space:    size,
			Owner:    e.programID,
		}, plan.seeds); err != nil {
			return err
		}
		buf := make([]byte, size)
		if _, err := InitRecord(buf, plan.record); err != nil {
			return err
		}
		if err := e.state.WriteData(ictx, accts.Record, buf); err != nil {
			return err
		}
		if err := e.state.CreateHolding(ictx, types.CreateHoldingParams{
			Funder:  accts.Maker,
			Holding: accts.Custody,
			Wallet:  accts.Record,
			Mint:    accts.AssetA,
		}); err != nil {
			return err
		}
		if err := e.state.Transfer(ictx, types.TransferParams{
			From:      accts.MakerHolding,
			To:        accts.Custody,
			Authority: accts.Maker,
			Amount:    plan.record.AmountToGive,
		}); err != nil {
			return err
		}
		rec = &plan.record
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewOpenedEvent(accts.Record, rec))
	return rec, nil
}

// Fulfill settles an open escrow: the taker pays AmountToReceive of asset B to
// the maker and receives the custodied asset A. The custodial holding and the
// record are closed into the maker.
func (e *Engine) Fulfill(signers []crypto.Address, accts FulfillAccounts) (*Record, error) {
	return e.fulfill(signers, accts, 0)
}

func (e *Engine) fulfill(signers []crypto.Address, accts FulfillAccounts, want Layout) (*Record, error) {
	var rec *Record
	err := e.atomically(func() error {
		ictx := e.invokeContext(signers)
		s, err := e.validateFulfill(ictx, accts, want)
		if err != nil {
			return err
		}
		if err := e.state.Transfer(ictx, types.TransferParams{
			From:      accts.TakerHoldingB,
			To:        accts.MakerHoldingB,
			Authority: accts.Taker,
			Amount:    s.record.AmountToReceive,
		}); err != nil {
			return err
		}
		if err := e.state.Transfer(ictx, types.TransferParams{
			From:      accts.Custody,
			To:        accts.TakerHoldingA,
			Authority: accts.Record,
			Amount:    s.record.AmountToGive,
		}, s.seeds); err != nil {
			return err
		}
		if err := e.release(ictx, accts.Record, accts.Custody, s); err != nil {
			return err
		}
		rec = &s.record
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewFilledEvent(accts.Record, accts.Taker, rec))
	return rec, nil
}

// Cancel returns the full custodial balance of asset A to the maker and closes
// the escrow.
func (e *Engine) Cancel(signers []crypto.Address, accts CancelAccounts) (*Record, error) {
	return e.cancel(signers, accts, 0)
}

func (e *Engine) cancel(signers []crypto.Address, accts CancelAccounts, want Layout) (*Record, error) {
	var rec *Record
	err := e.atomically(func() error {
		ictx := e.invokeContext(signers)
		s, err := e.validateCancel(ictx, accts, want)
		if err != nil {
			return err
		}
		if err := e.state.Transfer(ictx, types.TransferParams{
			From:      accts.Custody,
			To:        accts.MakerHolding,
			Authority: accts.Record,
			Amount:    s.custody.Amount,
		}, s.seeds); err != nil {
			return err
		}
		if err := e.release(ictx, accts.Record, accts.Custody, s); err != nil {
			return err
		}
		rec = &s.record
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(accts.Record, rec))
	return rec, nil
}

// release closes the custodial holding and the record storage, returning the
// reclaimed lamports to the maker.
func (e *Engine) release(ictx *types.InvokeContext, record, custody crypto.Address, s *settlement) error {
	if err := e.state.CloseHolding(ictx, types.CloseHoldingParams{
		Holding:     custody,
		Destination: s.record.Maker,
		Authority:   record,
	}, s.seeds); err != nil {
		return err
	}
	return e.state.CloseAccount(ictx, types.CloseAccountParams{
		Account:     record,
		Destination: s.record.Maker,
	})
}

// Outstanding summarises the escrows currently open under the program.
type Outstanding struct {
	Count     int
	Custodied map[crypto.Address]uint64 // units of asset A by mint
}

// Outstanding scans the ledger for open escrow records.
func (e *Engine) Outstanding() (*Outstanding, error) {
	if e.state == nil {
		return nil, errNilState
	}
	out := &Outstanding{Custodied: make(map[crypto.Address]uint64)}
	err := e.state.AccountsOwnedBy(e.programID, func(_ crypto.Address, acc *types.Account) bool {
		view, err := LoadRecord(acc.Data)
		if err != nil {
			return true
		}
		out.Count++
		asset := view.AssetA()
		sum, carry := bits.Add64(out.Custodied[asset], view.AmountToGive(), 0)
		if carry != 0 {
			sum = math.MaxUint64
		}
		out.Custodied[asset] = sum
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup decodes the open escrow stored at record.
func (e *Engine) Lookup(record crypto.Address) (*Record, error) {
	if e.state == nil {
		return nil, errNilState
	}
	rec, err := e.loadRecord(record, 0)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
