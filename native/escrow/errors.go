package escrow

import (
	"errors"
	"fmt"

	"atomicescrow/native/common"
)

var (
	// ErrMalformedInput covers too-short payloads, missing accounts, unknown
	// tags and records that fail to load.
	ErrMalformedInput = errors.New("escrow: malformed input")
	// ErrMalformedRecord reports a record buffer with the wrong size or
	// non-zero reserved bytes.
	ErrMalformedRecord = fmt.Errorf("%w: malformed record", ErrMalformedInput)
	// ErrUnsupportedOperation reports an unknown operation tag.
	ErrUnsupportedOperation = fmt.Errorf("%w: unsupported operation", ErrMalformedInput)

	ErrUnauthorized       = errors.New("escrow: missing required signer")
	ErrOwnerMismatch      = errors.New("escrow: owner mismatch")
	ErrAssetMismatch      = errors.New("escrow: asset mismatch")
	ErrAddressMismatch    = errors.New("escrow: address mismatch")
	ErrAlreadyInitialized = errors.New("escrow: record already initialized")

	errNilState = errors.New("escrow engine: state not configured")
)

// ErrorKind classifies err into a stable label for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrModulePaused):
		return "paused"
	case errors.Is(err, common.ErrQuotaRequestsExceeded), errors.Is(err, common.ErrQuotaUnitsCapExceeded),
		errors.Is(err, common.ErrQuotaCounterOverflow):
		return "quota_exceeded"
	case errors.Is(err, ErrUnsupportedOperation):
		return "unsupported_operation"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrOwnerMismatch):
		return "owner_mismatch"
	case errors.Is(err, ErrAssetMismatch):
		return "asset_mismatch"
	case errors.Is(err, ErrAddressMismatch):
		return "address_mismatch"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	default:
		return "ledger"
	}
}
