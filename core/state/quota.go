package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"atomicescrow/crypto"
	"atomicescrow/native/common"
	"atomicescrow/storage"
)

var quotaPrefix = []byte("quota:")

type quotaCounters struct {
	ReqCount  uint32
	UnitsUsed uint64
}

// quotaKey is quota:<module>:<epoch BE>:<address>.
func quotaKey(module string, epoch uint64, addr crypto.Address) []byte {
	buf := make([]byte, 0, len(quotaPrefix)+len(module)+1+8+1+crypto.AddressLength)
	buf = append(buf, quotaPrefix...)
	buf = append(buf, module...)
	buf = append(buf, ':')
	buf = binary.BigEndian.AppendUint64(buf, epoch)
	buf = append(buf, ':')
	return append(buf, addr[:]...)
}

// QuotaUsage loads the counters of addr for module in epoch. Missing counters
// are zero.
func (m *Manager) QuotaUsage(module string, epoch uint64, addr crypto.Address) (common.QuotaNow, error) {
	raw, err := m.get(quotaKey(module, epoch, addr))
	if errors.Is(err, storage.ErrNotFound) {
		return common.QuotaNow{EpochID: epoch}, nil
	}
	if err != nil {
		return common.QuotaNow{}, fmt.Errorf("quota: load counters: %w", err)
	}
	var stored quotaCounters
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return common.QuotaNow{}, fmt.Errorf("quota: decode counters: %w", err)
	}
	return common.QuotaNow{EpochID: epoch, ReqCount: stored.ReqCount, UnitsUsed: stored.UnitsUsed}, nil
}

// SetQuotaUsage persists the counters of addr for module in now.EpochID.
// Written inside a snapshot, the counters roll back with the unit of work.
func (m *Manager) SetQuotaUsage(module string, addr crypto.Address, now common.QuotaNow) error {
	encoded, err := rlp.EncodeToBytes(quotaCounters{ReqCount: now.ReqCount, UnitsUsed: now.UnitsUsed})
	if err != nil {
		return err
	}
	if err := m.put(quotaKey(module, now.EpochID, addr), encoded); err != nil {
		return fmt.Errorf("quota: persist counters: %w", err)
	}
	return nil
}
