package escrow

import (
	"strconv"

	"atomicescrow/core/types"
	"atomicescrow/crypto"
)

const (
	EventTypeEscrowOpened    = "escrow.opened"
	EventTypeEscrowFilled    = "escrow.filled"
	EventTypeEscrowCancelled = "escrow.cancelled"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// NewOpenedEvent returns the canonical event payload for a newly opened
// escrow.
func NewOpenedEvent(record crypto.Address, r *Record) *types.Event {
	return newEscrowEvent(EventTypeEscrowOpened, record, r)
}

// NewFilledEvent returns the canonical event payload emitted when a taker
// settles an escrow.
func NewFilledEvent(record, taker crypto.Address, r *Record) *types.Event {
	return newEscrowEvent(EventTypeEscrowFilled, record, r).With("taker", taker.String())
}

// NewCancelledEvent returns the canonical event payload emitted when the maker
// reclaims the deposit.
func NewCancelledEvent(record crypto.Address, r *Record) *types.Event {
	return newEscrowEvent(EventTypeEscrowCancelled, record, r)
}

func newEscrowEvent(eventType string, record crypto.Address, r *Record) *types.Event {
	evt := types.NewEvent(eventType).With("record", record.String())
	if r == nil {
		return evt
	}
	return evt.
		With("maker", r.Maker.String()).
		With("assetA", r.AssetA.String()).
		With("assetB", r.AssetB.String()).
		With("amountToReceive", strconv.FormatUint(r.AmountToReceive, 10)).
		With("amountToGive", strconv.FormatUint(r.AmountToGive, 10)).
		With("bump", strconv.Itoa(int(r.Bump))).
		With("layout", r.Layout.String())
}
