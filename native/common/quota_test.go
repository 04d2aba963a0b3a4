package common

import (
	"errors"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 3}
	prev := QuotaNow{EpochID: 7}

	next, err := CheckQuota(q, 7, prev, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 3 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}

	denied, err := CheckQuota(q, 7, next, 1, 0)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 8, next, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 8 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaUnitsCap(t *testing.T) {
	q := Quota{MaxUnitsPerEpoch: 500_000_000}
	prev := QuotaNow{EpochID: 2}

	next, err := CheckQuota(q, 2, prev, 1, 500_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.UnitsUsed != 500_000_000 {
		t.Fatalf("unexpected units used: %d", next.UnitsUsed)
	}

	if _, err := CheckQuota(q, 2, next, 1, 1); !errors.Is(err, ErrQuotaUnitsCapExceeded) {
		t.Fatalf("expected ErrQuotaUnitsCapExceeded, got %v", err)
	}
}

func TestCheckQuotaCounterOverflow(t *testing.T) {
	prev := QuotaNow{EpochID: 1, UnitsUsed: ^uint64(0)}
	if _, err := CheckQuota(Quota{}, 1, prev, 0, 1); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected ErrQuotaCounterOverflow, got %v", err)
	}
}

func TestQuotaEpochAt(t *testing.T) {
	q := Quota{EpochSeconds: 3600}
	if got := q.EpochAt(7200); got != 2 {
		t.Fatalf("unexpected epoch: %d", got)
	}
	if got := (Quota{}).EpochAt(125); got != 2 {
		t.Fatalf("unexpected default epoch: %d", got)
	}
	if (Quota{}).Enabled() {
		t.Fatalf("empty quota must be disabled")
	}
}

func TestGuardStaticPauses(t *testing.T) {
	pauses := StaticPauses{"escrow": true}
	if err := Guard(pauses, "escrow"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauses, "other"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Guard(nil, "escrow"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
}
