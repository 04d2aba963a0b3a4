package escrow

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"

	"atomicescrow/crypto"
)

// Layout selects the width of the amount fields of a record.
type Layout uint8

const (
	// LayoutCompact stores amounts as 8-byte little-endian integers.
	LayoutCompact Layout = iota + 1
	// LayoutWide stores amounts in 64-byte slots whose low 8 bytes carry the
	// little-endian value; the remaining bytes are reserved and must be zero.
	LayoutWide
)

const (
	compactAmountSize = 8
	wideAmountSize    = 64

	CompactRecordSize = 3*crypto.AddressLength + 2*compactAmountSize + 1
	WideRecordSize    = 3*crypto.AddressLength + 2*wideAmountSize + 1
)

const (
	offsetMaker   = 0
	offsetAssetA  = offsetMaker + crypto.AddressLength
	offsetAssetB  = offsetAssetA + crypto.AddressLength
	offsetAmounts = offsetAssetB + crypto.AddressLength
)

func (l Layout) Valid() bool { return l == LayoutCompact || l == LayoutWide }

// Size returns the exact storage size of a record in this layout.
func (l Layout) Size() int {
	switch l {
	case LayoutCompact:
		return CompactRecordSize
	case LayoutWide:
		return WideRecordSize
	default:
		return 0
	}
}

func (l Layout) amountSize() int {
	if l == LayoutWide {
		return wideAmountSize
	}
	return compactAmountSize
}

func (l Layout) String() string {
	switch l {
	case LayoutCompact:
		return "compact"
	case LayoutWide:
		return "wide"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

func layoutForSize(n int) (Layout, bool) {
	switch n {
	case CompactRecordSize:
		return LayoutCompact, true
	case WideRecordSize:
		return LayoutWide, true
	default:
		return 0, false
	}
}

// Record is the decoded value of a persisted escrow record.
type Record struct {
	Maker           crypto.Address
	AssetA          crypto.Address
	AssetB          crypto.Address
	AmountToReceive uint64
	AmountToGive    uint64
	Bump            uint8
	Layout          Layout
}

// RecordView gives typed access to a record stored in a raw buffer. Fields are
// read and written in place with explicit byte offsets; no memory is
// reinterpreted, so the buffer carries no alignment requirement.
type RecordView struct {
	buf    []byte
	layout Layout
}

// LoadRecord wraps buf as a record. The buffer length must match one of the
// record layouts exactly.
func LoadRecord(buf []byte) (*RecordView, error) {
	layout, ok := layoutForSize(len(buf))
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedRecord, len(buf))
	}
	view := &RecordView{buf: buf, layout: layout}
	if layout == LayoutWide {
		for _, off := range []int{view.receiveOffset(), view.giveOffset()} {
			if _, err := decodeAmountSlot(buf[off : off+wideAmountSize]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
			}
		}
	}
	return view, nil
}

// InitRecord zeroes buf and writes every field of r into it. r.Layout may be
// left unset; otherwise it must agree with the buffer size.
func InitRecord(buf []byte, r Record) (*RecordView, error) {
	layout, ok := layoutForSize(len(buf))
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedRecord, len(buf))
	}
	if r.Layout != 0 && r.Layout != layout {
		return nil, fmt.Errorf("%w: %s record in %d bytes", ErrMalformedRecord, r.Layout, len(buf))
	}
	clear(buf)
	view := &RecordView{buf: buf, layout: layout}
	view.SetMaker(r.Maker)
	view.SetAssetA(r.AssetA)
	view.SetAssetB(r.AssetB)
	view.SetAmountToReceive(r.AmountToReceive)
	view.SetAmountToGive(r.AmountToGive)
	view.SetBump(r.Bump)
	return view, nil
}

func (v *RecordView) receiveOffset() int { return offsetAmounts }
func (v *RecordView) giveOffset() int    { return offsetAmounts + v.layout.amountSize() }
func (v *RecordView) bumpOffset() int    { return offsetAmounts + 2*v.layout.amountSize() }

func (v *RecordView) Layout() Layout { return v.layout }

// Bytes returns the underlying buffer.
func (v *RecordView) Bytes() []byte { return v.buf }

func (v *RecordView) address(off int) crypto.Address {
	var addr crypto.Address
	copy(addr[:], v.buf[off:off+crypto.AddressLength])
	return addr
}

func (v *RecordView) Maker() crypto.Address         { return v.address(offsetMaker) }
func (v *RecordView) SetMaker(a crypto.Address)     { copy(v.buf[offsetMaker:], a[:]) }
func (v *RecordView) AssetA() crypto.Address        { return v.address(offsetAssetA) }
func (v *RecordView) SetAssetA(a crypto.Address)    { copy(v.buf[offsetAssetA:], a[:]) }
func (v *RecordView) AssetB() crypto.Address        { return v.address(offsetAssetB) }
func (v *RecordView) SetAssetB(a crypto.Address)    { copy(v.buf[offsetAssetB:], a[:]) }
func (v *RecordView) AmountToReceive() uint64       { return v.amount(v.receiveOffset()) }
func (v *RecordView) SetAmountToReceive(amt uint64) { v.setAmount(v.receiveOffset(), amt) }
func (v *RecordView) AmountToGive() uint64          { return v.amount(v.giveOffset()) }
func (v *RecordView) SetAmountToGive(amt uint64)    { v.setAmount(v.giveOffset(), amt) }
func (v *RecordView) Bump() uint8                   { return v.buf[v.bumpOffset()] }
func (v *RecordView) SetBump(b uint8)               { v.buf[v.bumpOffset()] = b }

// amount reads the low 8 bytes of the slot. Reserved bytes of wide slots are
// checked once in LoadRecord and kept zero by setAmount.
func (v *RecordView) amount(off int) uint64 {
	return binary.LittleEndian.Uint64(v.buf[off : off+compactAmountSize])
}

func (v *RecordView) setAmount(off int, amt uint64) {
	slot := v.buf[off : off+v.layout.amountSize()]
	clear(slot)
	binary.LittleEndian.PutUint64(slot, amt)
}

// Record copies the fields out of the buffer.
func (v *RecordView) Record() Record {
	return Record{
		Maker:           v.Maker(),
		AssetA:          v.AssetA(),
		AssetB:          v.AssetB(),
		AmountToReceive: v.AmountToReceive(),
		AmountToGive:    v.AmountToGive(),
		Bump:            v.Bump(),
		Layout:          v.layout,
	}
}

// decodeAmountSlot interprets a 64-byte little-endian slot. Bytes 32..63 are
// reserved and must be zero; the remaining 256-bit value must fit in 64 bits.
func decodeAmountSlot(slot []byte) (uint64, error) {
	if len(slot) != wideAmountSize {
		return 0, fmt.Errorf("amount slot must be %d bytes, got %d", wideAmountSize, len(slot))
	}
	for i, b := range slot[32:] {
		if b != 0 {
			return 0, fmt.Errorf("reserved amount byte %d is non-zero", 32+i)
		}
	}
	var be [32]byte
	for i := 0; i < 32; i++ {
		be[31-i] = slot[i]
	}
	value := new(uint256.Int).SetBytes32(be[:])
	if !value.IsUint64() {
		return 0, fmt.Errorf("amount %s exceeds 64 bits", value.Dec())
	}
	return value.Uint64(), nil
}

func encodeAmountSlot(dst []byte, amt uint64) {
	clear(dst[:wideAmountSize])
	binary.LittleEndian.PutUint64(dst, amt)
}
