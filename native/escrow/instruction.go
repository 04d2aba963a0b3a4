package escrow

import (
	"encoding/binary"
	"fmt"

	"atomicescrow/crypto"
)

// Operation is the leading tag byte of an escrow instruction.
type Operation uint8

const (
	OpOpen        Operation = 0
	OpFulfill     Operation = 1
	OpCancel      Operation = 2
	OpOpenWide    Operation = 3
	OpFulfillWide Operation = 4
	OpCancelWide  Operation = 5
)

const (
	compactOpenPayload = 1 + 2*compactAmountSize
	wideOpenPayload    = 1 + 2*wideAmountSize
)

func (o Operation) String() string {
	switch o {
	case OpOpen:
		return "open"
	case OpFulfill:
		return "fulfill"
	case OpCancel:
		return "cancel"
	case OpOpenWide:
		return "open_wide"
	case OpFulfillWide:
		return "fulfill_wide"
	case OpCancelWide:
		return "cancel_wide"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// OpenRequest is the canonical Open payload shared by both wire encodings.
type OpenRequest struct {
	Bump            uint8
	AmountToReceive uint64
	AmountToGive    uint64
	Layout          Layout
}

// Instruction is a decoded escrow request. Open is only meaningful for
// OpOpen and OpOpenWide.
type Instruction struct {
	Op   Operation
	Open OpenRequest
}

// recordLayout returns the layout an operation creates or requires; zero
// means any layout is accepted.
func (i *Instruction) recordLayout() Layout {
	switch i.Op {
	case OpOpen:
		return LayoutCompact
	case OpOpenWide, OpFulfillWide, OpCancelWide:
		return LayoutWide
	default:
		return 0
	}
}

// DecodeInstruction strips the operation tag and decodes the payload that
// the tag selects.
func DecodeInstruction(data []byte) (*Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty instruction", ErrMalformedInput)
	}
	ix := &Instruction{Op: Operation(data[0])}
	payload := data[1:]
	switch ix.Op {
	case OpOpen:
		req, err := decodeCompactOpen(payload)
		if err != nil {
			return nil, err
		}
		ix.Open = req
	case OpOpenWide:
		req, err := decodeWideOpen(payload)
		if err != nil {
			return nil, err
		}
		ix.Open = req
	case OpFulfill, OpCancel, OpFulfillWide, OpCancelWide:
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnsupportedOperation, data[0])
	}
	return ix, nil
}

func decodeCompactOpen(payload []byte) (OpenRequest, error) {
	if len(payload) < compactOpenPayload {
		return OpenRequest{}, fmt.Errorf("%w: open payload needs %d bytes, got %d", ErrMalformedInput, compactOpenPayload, len(payload))
	}
	return OpenRequest{
		Bump:            payload[0],
		AmountToReceive: binary.LittleEndian.Uint64(payload[1:9]),
		AmountToGive:    binary.LittleEndian.Uint64(payload[9:17]),
		Layout:          LayoutCompact,
	}, nil
}

func decodeWideOpen(payload []byte) (OpenRequest, error) {
	if len(payload) < wideOpenPayload {
		return OpenRequest{}, fmt.Errorf("%w: open payload needs %d bytes, got %d", ErrMalformedInput, wideOpenPayload, len(payload))
	}
	receive, err := decodeAmountSlot(payload[1 : 1+wideAmountSize])
	if err != nil {
		return OpenRequest{}, fmt.Errorf("%w: amount to receive: %v", ErrMalformedInput, err)
	}
	give, err := decodeAmountSlot(payload[1+wideAmountSize : wideOpenPayload])
	if err != nil {
		return OpenRequest{}, fmt.Errorf("%w: amount to give: %v", ErrMalformedInput, err)
	}
	return OpenRequest{
		Bump:            payload[0],
		AmountToReceive: receive,
		AmountToGive:    give,
		Layout:          LayoutWide,
	}, nil
}

// EncodeOpen builds Open instruction data. The request layout selects the tag
// and the amount encoding; an unset layout means compact.
func EncodeOpen(req OpenRequest) []byte {
	if req.Layout == LayoutWide {
		out := make([]byte, 1+wideOpenPayload)
		out[0] = byte(OpOpenWide)
		out[1] = req.Bump
		encodeAmountSlot(out[2:], req.AmountToReceive)
		encodeAmountSlot(out[2+wideAmountSize:], req.AmountToGive)
		return out
	}
	out := make([]byte, 1+compactOpenPayload)
	out[0] = byte(OpOpen)
	out[1] = req.Bump
	binary.LittleEndian.PutUint64(out[2:10], req.AmountToReceive)
	binary.LittleEndian.PutUint64(out[10:18], req.AmountToGive)
	return out
}

func EncodeFulfill() []byte { return []byte{byte(OpFulfill)} }

func EncodeCancel() []byte { return []byte{byte(OpCancel)} }

// OpenAccounts names the accounts an Open instruction touches, in wire order.
type OpenAccounts struct {
	Maker        crypto.Address
	Record       crypto.Address
	AssetA       crypto.Address
	AssetB       crypto.Address
	MakerHolding crypto.Address
	Custody      crypto.Address
}

func (a OpenAccounts) List() []crypto.Address {
	return []crypto.Address{a.Maker, a.Record, a.AssetA, a.AssetB, a.MakerHolding, a.Custody}
}

// FulfillAccounts names the accounts a Fulfill instruction touches, in wire
// order.
type FulfillAccounts struct {
	Taker         crypto.Address
	Maker         crypto.Address
	Record        crypto.Address
	AssetA        crypto.Address
	AssetB        crypto.Address
	TakerHoldingA crypto.Address
	TakerHoldingB crypto.Address
	Custody       crypto.Address
	MakerHoldingB crypto.Address
}

func (a FulfillAccounts) List() []crypto.Address {
	return []crypto.Address{a.Taker, a.Maker, a.Record, a.AssetA, a.AssetB, a.TakerHoldingA, a.TakerHoldingB, a.Custody, a.MakerHoldingB}
}

// CancelAccounts names the accounts a Cancel instruction touches, in wire
// order.
type CancelAccounts struct {
	Maker        crypto.Address
	Record       crypto.Address
	MakerHolding crypto.Address
	Custody      crypto.Address
}

func (a CancelAccounts) List() []crypto.Address {
	return []crypto.Address{a.Maker, a.Record, a.MakerHolding, a.Custody}
}

func requireAccounts(op Operation, accounts []crypto.Address, n int) error {
	if len(accounts) < n {
		return fmt.Errorf("%w: %s needs %d accounts, got %d", ErrMalformedInput, op, n, len(accounts))
	}
	return nil
}

func openAccountsFrom(op Operation, accounts []crypto.Address) (OpenAccounts, error) {
	if err := requireAccounts(op, accounts, 6); err != nil {
		return OpenAccounts{}, err
	}
	return OpenAccounts{
		Maker:        accounts[0],
		Record:       accounts[1],
		AssetA:       accounts[2],
		AssetB:       accounts[3],
		MakerHolding: accounts[4],
		Custody:      accounts[5],
	}, nil
}

func fulfillAccountsFrom(op Operation, accounts []crypto.Address) (FulfillAccounts, error) {
	if err := requireAccounts(op, accounts, 9); err != nil {
		return FulfillAccounts{}, err
	}
	return FulfillAccounts{
		Taker:         accounts[0],
		Maker:         accounts[1],
		Record:        accounts[2],
		AssetA:        accounts[3],
		AssetB:        accounts[4],
		TakerHoldingA: accounts[5],
		TakerHoldingB: accounts[6],
		Custody:       accounts[7],
		MakerHoldingB: accounts[8],
	}, nil
}

func cancelAccountsFrom(op Operation, accounts []crypto.Address) (CancelAccounts, error) {
	if err := requireAccounts(op, accounts, 4); err != nil {
		return CancelAccounts{}, err
	}
	return CancelAccounts{
		Maker:        accounts[0],
		Record:       accounts[1],
		MakerHolding: accounts[2],
		Custody:      accounts[3],
	}, nil
}
