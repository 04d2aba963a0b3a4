package escrow

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"atomicescrow/core/events"
	"atomicescrow/core/state"
	"atomicescrow/core/types"
	"atomicescrow/crypto"
	"atomicescrow/native/common"
	"atomicescrow/storage"

	errs "atomicescrow/core/errors"
)

const (
	giveAmount    = 500_000_000
	receiveAmount = 100_000_000
)

func testAddress(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, crypto.AddressLength))
	return addr
}

type swapFixture struct {
	t        *testing.T
	mgr      *state.Manager
	engine   *Engine
	recorder *events.Recorder

	program crypto.Address
	issuer  crypto.Address
	maker   crypto.Address
	taker   crypto.Address
	mintA   crypto.Address
	mintB   crypto.Address

	makerA crypto.Address
	makerB crypto.Address
	takerA crypto.Address
	takerB crypto.Address

	record  crypto.Address
	bump    uint8
	custody crypto.Address
}

func newSwapFixture(t *testing.T) *swapFixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	f := &swapFixture{
		t:        t,
		mgr:      state.NewManager(db, state.DefaultRent()),
		recorder: &events.Recorder{},
		program:  testAddress(0x77),
		issuer:   testAddress(0x01),
		maker:    testAddress(0x11),
		taker:    testAddress(0x22),
		mintA:    testAddress(0xA1),
		mintB:    testAddress(0xB1),
	}
	f.engine = NewEngine(f.program)
	f.engine.SetState(f.mgr)
	f.engine.SetEmitter(f.recorder)

	f.makerA = f.associated(f.maker, f.mintA)
	f.makerB = f.associated(f.maker, f.mintB)
	f.takerA = f.associated(f.taker, f.mintA)
	f.takerB = f.associated(f.taker, f.mintB)

	for _, addr := range []crypto.Address{f.issuer, f.maker, f.taker} {
		require.NoError(t, f.mgr.Airdrop(addr, 10_000_000_000))
	}
	setup := &types.InvokeContext{Signers: []crypto.Address{f.issuer}}
	require.NoError(t, f.mgr.CreateMint(setup, f.issuer, f.mintA, f.issuer, 9))
	require.NoError(t, f.mgr.CreateMint(setup, f.issuer, f.mintB, f.issuer, 6))
	for _, h := range []struct{ holding, wallet, mint crypto.Address }{
		{f.makerA, f.maker, f.mintA},
		{f.makerB, f.maker, f.mintB},
		{f.takerA, f.taker, f.mintA},
		{f.takerB, f.taker, f.mintB},
	} {
		require.NoError(t, f.mgr.CreateHolding(setup, types.CreateHoldingParams{
			Funder: f.issuer, Holding: h.holding, Wallet: h.wallet, Mint: h.mint,
		}))
	}
	require.NoError(t, f.mgr.MintTo(setup, f.mintA, f.makerA, 600_000_000))
	require.NoError(t, f.mgr.MintTo(setup, f.mintB, f.takerB, 150_000_000))

	var err error
	f.record, f.bump, err = FindAuthority(f.program, f.maker)
	require.NoError(t, err)
	f.custody, err = CustodyAddress(f.record, f.mintA)
	require.NoError(t, err)
	return f
}

func (f *swapFixture) associated(wallet, mint crypto.Address) crypto.Address {
	addr, err := crypto.AssociatedHoldingAddress(wallet, mint)
	require.NoError(f.t, err)
	return addr
}

func (f *swapFixture) balance(holding crypto.Address) uint64 {
	h, err := f.mgr.Holding(holding)
	require.NoError(f.t, err)
	return h.Amount
}

func (f *swapFixture) lamports(addr crypto.Address) uint64 {
	l, err := f.mgr.Lamports(addr)
	require.NoError(f.t, err)
	return l
}

func (f *swapFixture) exists(addr crypto.Address) bool {
	_, ok, err := f.mgr.Account(addr)
	require.NoError(f.t, err)
	return ok
}

func (f *swapFixture) digest() [32]byte {
	d, err := f.mgr.Digest()
	require.NoError(f.t, err)
	return d
}

func (f *swapFixture) openAccounts() OpenAccounts {
	return OpenAccounts{
		Maker:        f.maker,
		Record:       f.record,
		AssetA:       f.mintA,
		AssetB:       f.mintB,
		MakerHolding: f.makerA,
		Custody:      f.custody,
	}
}

func (f *swapFixture) fulfillAccounts() FulfillAccounts {
	return FulfillAccounts{
		Taker:         f.taker,
		Maker:         f.maker,
		Record:        f.record,
		AssetA:        f.mintA,
		AssetB:        f.mintB,
		TakerHoldingA: f.takerA,
		TakerHoldingB: f.takerB,
		Custody:       f.custody,
		MakerHoldingB: f.makerB,
	}
}

func (f *swapFixture) cancelAccounts() CancelAccounts {
	return CancelAccounts{
		Maker:        f.maker,
		Record:       f.record,
		MakerHolding: f.makerA,
		Custody:      f.custody,
	}
}

func (f *swapFixture) openRequest(layout Layout) OpenRequest {
	return OpenRequest{Bump: f.bump, AmountToReceive: receiveAmount, AmountToGive: giveAmount, Layout: layout}
}

func (f *swapFixture) open(layout Layout) *Record {
	f.t.Helper()
	rec, err := f.engine.Open([]crypto.Address{f.maker}, f.openAccounts(), f.openRequest(layout))
	require.NoError(f.t, err)
	return rec
}

func TestOpenThenFulfillSwapsAssets(t *testing.T) {
	f := newSwapFixture(t)
	makerLamports := f.lamports(f.maker)

	rec := f.open(LayoutCompact)
	require.Equal(t, f.maker, rec.Maker)
	require.EqualValues(t, giveAmount, f.balance(f.custody))
	require.EqualValues(t, 100_000_000, f.balance(f.makerA))

	stored, err := f.engine.Lookup(f.record)
	require.NoError(t, err)
	require.Equal(t, *rec, *stored)

	acc, ok, err := f.mgr.Account(f.record)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, f.program, acc.Owner)
	require.Len(t, acc.Data, CompactRecordSize)

	settled, err := f.engine.Fulfill([]crypto.Address{f.taker}, f.fulfillAccounts())
	require.NoError(t, err)
	require.Equal(t, *rec, *settled)

	require.EqualValues(t, giveAmount, f.balance(f.takerA))
	require.EqualValues(t, receiveAmount, f.balance(f.makerB))
	require.EqualValues(t, 50_000_000, f.balance(f.takerB))
	require.False(t, f.exists(f.custody), "custody holding must be closed")
	require.False(t, f.exists(f.record), "record storage must be freed")
	require.Equal(t, makerLamports, f.lamports(f.maker), "maker must recover all rent")

	require.Equal(t, []string{EventTypeEscrowOpened, EventTypeEscrowFilled}, f.recorder.Types())
}

func TestOpenThenCancelRefundsMaker(t *testing.T) {
	f := newSwapFixture(t)
	before := f.balance(f.makerA)
	makerLamports := f.lamports(f.maker)

	f.open(LayoutCompact)
	_, err := f.engine.Cancel([]crypto.Address{f.maker}, f.cancelAccounts())
	require.NoError(t, err)

	require.Equal(t, before, f.balance(f.makerA))
	require.False(t, f.exists(f.custody))
	require.False(t, f.exists(f.record))
	require.Equal(t, makerLamports, f.lamports(f.maker))
	require.Equal(t, []string{EventTypeEscrowOpened, EventTypeEscrowCancelled}, f.recorder.Types())
}

func TestOpenRejectsUnderivedRecordAddress(t *testing.T) {
	f := newSwapFixture(t)
	before := f.digest()

	accts := f.openAccounts()
	accts.Record = testAddress(0x55)
	_, err := f.engine.Open([]crypto.Address{f.maker}, accts, f.openRequest(LayoutCompact))
	require.ErrorIs(t, err, ErrAddressMismatch)

	req := f.openRequest(LayoutCompact)
	req.Bump = f.bump - 1
	_, err = f.engine.Open([]crypto.Address{f.maker}, f.openAccounts(), req)
	require.ErrorIs(t, err, ErrAddressMismatch)

	require.Equal(t, before, f.digest(), "failed open must not touch the ledger")
	require.Empty(t, f.recorder.Events())
}

func TestOpenRejectsSecondOpen(t *testing.T) {
	f := newSwapFixture(t)
	f.open(LayoutCompact)
	before := f.digest()

	_, err := f.engine.Open([]crypto.Address{f.maker}, f.openAccounts(), f.openRequest(LayoutCompact))
	require.ErrorIs(t, err, ErrAlreadyInitialized)
	require.Equal(t, before, f.digest())
}

func TestOpenAgainAfterSettlement(t *testing.T) {
	f := newSwapFixture(t)
	f.open(LayoutCompact)
	_, err := f.engine.Cancel([]crypto.Address{f.maker}, f.cancelAccounts())
	require.NoError(t, err)

	f.open(LayoutCompact)
	require.EqualValues(t, giveAmount, f.balance(f.custody))
}

func TestOpenValidation(t *testing.T) {
	cases := []struct {
		name    string
		signers func(f *swapFixture) []crypto.Address
		mutate  func(f *swapFixture, a *OpenAccounts)
		want    error
	}{
		{
			name:    "maker must sign",
			signers: func(f *swapFixture) []crypto.Address { return []crypto.Address{f.taker} },
			want:    ErrUnauthorized,
		},
		{
			name:   "deposit holding owned by someone else",
			mutate: func(f *swapFixture, a *OpenAccounts) { a.MakerHolding = f.takerA },
			want:   ErrOwnerMismatch,
		},
		{
			name:   "deposit holding of the wrong asset",
			mutate: func(f *swapFixture, a *OpenAccounts) { a.MakerHolding = f.makerB },
			want:   ErrAssetMismatch,
		},
		{
			name:   "deposit holding missing",
			mutate: func(f *swapFixture, a *OpenAccounts) { a.MakerHolding = testAddress(0x99) },
			want:   ErrMalformedInput,
		},
		{
			name:   "custody not derived from record",
			mutate: func(f *swapFixture, a *OpenAccounts) { a.Custody = f.associated(f.maker, f.mintA) },
			want:   ErrAddressMismatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSwapFixture(t)
			before := f.digest()
			signers := []crypto.Address{f.maker}
			if tc.signers != nil {
				signers = tc.signers(f)
			}
			accts := f.openAccounts()
			if tc.mutate != nil {
				tc.mutate(f, &accts)
			}
			_, err := f.engine.Open(signers, accts, f.openRequest(LayoutCompact))
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, before, f.digest())
		})
	}
}

func TestOpenFailureRevertsEarlierEffects(t *testing.T) {
	f := newSwapFixture(t)
	before := f.digest()

	req := f.openRequest(LayoutCompact)
	req.AmountToGive = 700_000_000
	_, err := f.engine.Open([]crypto.Address{f.maker}, f.openAccounts(), req)
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)

	require.False(t, f.exists(f.record), "record storage must be rolled back")
	require.False(t, f.exists(f.custody), "custody holding must be rolled back")
	require.Equal(t, before, f.digest())
}

func TestFulfillAgainstMissingRecord(t *testing.T) {
	f := newSwapFixture(t)
	before := f.digest()

	_, err := f.engine.Fulfill([]crypto.Address{f.taker}, f.fulfillAccounts())
	require.ErrorIs(t, err, ErrMalformedInput)
	_, err = f.engine.Cancel([]crypto.Address{f.maker}, f.cancelAccounts())
	require.ErrorIs(t, err, ErrMalformedInput)
	require.Equal(t, before, f.digest())
}

func TestFulfillValidation(t *testing.T) {
	cases := []struct {
		name    string
		signers func(f *swapFixture) []crypto.Address
		mutate  func(f *swapFixture, a *FulfillAccounts)
		want    error
	}{
		{
			name:    "taker must sign",
			signers: func(f *swapFixture) []crypto.Address { return []crypto.Address{f.maker} },
			want:    ErrUnauthorized,
		},
		{
			name:   "maker differs from record",
			mutate: func(f *swapFixture, a *FulfillAccounts) { a.Maker = f.taker },
			want:   ErrOwnerMismatch,
		},
		{
			name:   "counter-payment to a holding the maker does not own",
			mutate: func(f *swapFixture, a *FulfillAccounts) { a.MakerHoldingB = f.takerB },
			want:   ErrOwnerMismatch,
		},
		{
			name:   "counter-payment to the maker's asset A holding",
			mutate: func(f *swapFixture, a *FulfillAccounts) { a.MakerHoldingB = f.makerA },
			want:   ErrAssetMismatch,
		},
		{
			name: "taker holdings swapped",
			mutate: func(f *swapFixture, a *FulfillAccounts) {
				a.TakerHoldingA, a.TakerHoldingB = a.TakerHoldingB, a.TakerHoldingA
			},
			want: ErrAssetMismatch,
		},
		{
			name:   "supplied asset differs from record",
			mutate: func(f *swapFixture, a *FulfillAccounts) { a.AssetB = f.mintA },
			want:   ErrAssetMismatch,
		},
		{
			name:   "forged custody",
			mutate: func(f *swapFixture, a *FulfillAccounts) { a.Custody = f.makerA },
			want:   ErrAddressMismatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSwapFixture(t)
			f.open(LayoutCompact)
			before := f.digest()
			signers := []crypto.Address{f.taker}
			if tc.signers != nil {
				signers = tc.signers(f)
			}
			accts := f.fulfillAccounts()
			if tc.mutate != nil {
				tc.mutate(f, &accts)
			}
			_, err := f.engine.Fulfill(signers, accts)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, before, f.digest())
			require.True(t, f.exists(f.record), "record must stay open")
		})
	}
}

func TestFulfillWithoutMakerSignature(t *testing.T) {
	f := newSwapFixture(t)
	f.open(LayoutCompact)
	_, err := f.engine.Fulfill([]crypto.Address{f.taker}, f.fulfillAccounts())
	require.NoError(t, err)
}

func TestFulfillInsufficientCounterPayment(t *testing.T) {
	f := newSwapFixture(t)
	f.open(LayoutCompact)
	before := f.digest()

	move := &types.InvokeContext{Signers: []crypto.Address{f.taker}}
	require.NoError(t, f.mgr.Transfer(move, types.TransferParams{
		From: f.takerB, To: f.makerB, Authority: f.taker, Amount: 100_000_000,
	}))
	after := f.digest()
	require.NotEqual(t, before, after)

	_, err := f.engine.Fulfill([]crypto.Address{f.taker}, f.fulfillAccounts())
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)
	require.Equal(t, after, f.digest())
	require.EqualValues(t, giveAmount, f.balance(f.custody))
}

func TestFulfillRevertsAfterTransfersWhenCustodyCannotClose(t *testing.T) {
	f := newSwapFixture(t)
	f.open(LayoutCompact)

	// One unit donated into custody survives both transfers and blocks the
	// custody close, the last step of Fulfill.
	issuer := &types.InvokeContext{Signers: []crypto.Address{f.issuer}}
	require.NoError(t, f.mgr.MintTo(issuer, f.mintA, f.custody, 1))
	before := f.digest()

	_, err := f.engine.Fulfill([]crypto.Address{f.taker}, f.fulfillAccounts())
	require.ErrorIs(t, err, errs.ErrHoldingNotEmpty)
	require.Equal(t, before, f.digest(), "both transfers are rolled back")
	require.EqualValues(t, giveAmount+1, f.balance(f.custody))
	require.EqualValues(t, 150_000_000, f.balance(f.takerB))
	require.Zero(t, f.balance(f.takerA))
	require.Zero(t, f.balance(f.makerB))
	require.Len(t, f.recorder.Events(), 1, "only the open event was emitted")

	res, err := f.engine.Cancel([]crypto.Address{f.maker}, f.cancelAccounts())
	require.NoError(t, err)
	require.Equal(t, f.maker, res.Maker)
	require.EqualValues(t, 600_000_000+1, f.balance(f.makerA), "cancel refunds the whole custody balance")
	require.False(t, f.exists(f.custody))
}

func TestOpenOverPrefundedRecordAddress(t *testing.T) {
	f := newSwapFixture(t)
	require.NoError(t, f.mgr.Airdrop(f.record, 1))
	makerLamports := f.lamports(f.maker)

	f.open(LayoutCompact)
	acc, ok, err := f.mgr.Account(f.record)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, f.program, acc.Owner)
	require.Len(t, acc.Data, CompactRecordSize)

	_, err = f.engine.Cancel([]crypto.Address{f.maker}, f.cancelAccounts())
	require.NoError(t, err)
	require.Equal(t, makerLamports+1, f.lamports(f.maker), "the stray lamport is reclaimed by the maker")
}

func TestOpenOverPrecreatedCustody(t *testing.T) {
	f := newSwapFixture(t)
	issuer := &types.InvokeContext{Signers: []crypto.Address{f.issuer}}
	require.NoError(t, f.mgr.CreateHolding(issuer, types.CreateHoldingParams{
		Funder: f.issuer, Holding: f.custody, Wallet: f.record, Mint: f.mintA,
	}))

	f.open(LayoutCompact)
	require.EqualValues(t, giveAmount, f.balance(f.custody))
}

func TestOpenQuotaPersistsInLedger(t *testing.T) {
	f := newSwapFixture(t)
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	quota := common.Quota{MaxRequestsPerEpoch: 1, EpochSeconds: 3600}

	// Each engine stands in for a separate process over the same ledger.
	engine := func() *Engine {
		e := NewEngine(f.program)
		e.SetState(f.mgr)
		e.SetQuota(quota)
		e.SetNowFunc(clock)
		return e
	}

	bad := f.openRequest(LayoutCompact)
	bad.AmountToGive = 700_000_000
	_, err := engine().Open([]crypto.Address{f.maker}, f.openAccounts(), bad)
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)
	usage, err := f.mgr.QuotaUsage(ModuleName, quota.EpochAt(now.Unix()), f.maker)
	require.NoError(t, err)
	require.Zero(t, usage.ReqCount, "a failed open is not charged")

	_, err = engine().Open([]crypto.Address{f.maker}, f.openAccounts(), f.openRequest(LayoutCompact))
	require.NoError(t, err)
	_, err = engine().Cancel([]crypto.Address{f.maker}, f.cancelAccounts())
	require.NoError(t, err)

	before := f.digest()
	_, err = engine().Open([]crypto.Address{f.maker}, f.openAccounts(), f.openRequest(LayoutCompact))
	require.ErrorIs(t, err, common.ErrQuotaRequestsExceeded)
	require.Equal(t, before, f.digest())

	now = now.Add(time.Hour)
	_, err = engine().Open([]crypto.Address{f.maker}, f.openAccounts(), f.openRequest(LayoutCompact))
	require.NoError(t, err)
}

func TestOutstandingReadsLedger(t *testing.T) {
	f := newSwapFixture(t)
	out, err := f.engine.Outstanding()
	require.NoError(t, err)
	require.Zero(t, out.Count)

	f.open(LayoutWide)
	out, err = f.engine.Outstanding()
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	require.Equal(t, map[crypto.Address]uint64{f.mintA: giveAmount}, out.Custodied)

	// Settlement through another engine is visible here.
	other := NewEngine(f.program)
	other.SetState(f.mgr)
	_, err = other.Fulfill([]crypto.Address{f.taker}, f.fulfillAccounts())
	require.NoError(t, err)
	out, err = f.engine.Outstanding()
	require.NoError(t, err)
	require.Zero(t, out.Count)
	require.Empty(t, out.Custodied)
}

func TestCancelValidation(t *testing.T) {
	f := newSwapFixture(t)
	f.open(LayoutCompact)
	before := f.digest()

	_, err := f.engine.Cancel([]crypto.Address{f.taker}, f.cancelAccounts())
	require.ErrorIs(t, err, ErrUnauthorized)

	impostor := CancelAccounts{Maker: f.taker, Record: f.record, MakerHolding: f.takerA, Custody: f.custody}
	_, err = f.engine.Cancel([]crypto.Address{f.taker}, impostor)
	require.ErrorIs(t, err, ErrOwnerMismatch)

	wrongAsset := f.cancelAccounts()
	wrongAsset.MakerHolding = f.makerB
	_, err = f.engine.Cancel([]crypto.Address{f.maker}, wrongAsset)
	require.ErrorIs(t, err, ErrAssetMismatch)

	require.Equal(t, before, f.digest())
}

func TestWideLayoutRoundTrip(t *testing.T) {
	f := newSwapFixture(t)
	rec := f.open(LayoutWide)
	require.Equal(t, LayoutWide, rec.Layout)

	acc, _, err := f.mgr.Account(f.record)
	require.NoError(t, err)
	require.Len(t, acc.Data, WideRecordSize)

	_, err = f.engine.cancel([]crypto.Address{f.maker}, f.cancelAccounts(), LayoutCompact)
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = f.engine.fulfill([]crypto.Address{f.taker}, f.fulfillAccounts(), LayoutWide)
	require.NoError(t, err)
	require.EqualValues(t, giveAmount, f.balance(f.takerA))
}

func TestLookupRejectsForeignStorage(t *testing.T) {
	f := newSwapFixture(t)
	_, err := f.engine.Lookup(f.makerA)
	require.ErrorIs(t, err, ErrOwnerMismatch)

	_, err = f.engine.Lookup(f.record)
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestEngineWithoutState(t *testing.T) {
	e := NewEngine(testAddress(0x77))
	_, err := e.Open(nil, OpenAccounts{}, OpenRequest{Layout: LayoutCompact})
	if !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
}

func TestOpenedEventAttributes(t *testing.T) {
	f := newSwapFixture(t)
	f.open(LayoutCompact)

	evts := f.recorder.Events()
	require.Len(t, evts, 1)
	evt, ok := evts[0].(interface{ Event() *types.Event })
	require.True(t, ok)
	attrs := evt.Event().Attributes
	require.Equal(t, f.record.String(), attrs["record"])
	require.Equal(t, f.maker.String(), attrs["maker"])
	require.Equal(t, "500000000", attrs["amountToGive"])
	require.Equal(t, "100000000", attrs["amountToReceive"])
	require.Equal(t, "compact", attrs["layout"])
}
