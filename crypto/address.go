package crypto

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// AddressLength is the size in bytes of every ledger address.
const AddressLength = 32

// Address identifies an account on the ledger. Addresses are either ed25519
// public keys or program-derived addresses that lie off the curve. The text
// form is base58.
type Address [AddressLength]byte

// BytesToAddress converts a raw 32-byte slice into an Address.
func BytesToAddress(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("crypto: address must be %d bytes, got %d", AddressLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// ParseAddress decodes a base58 address string.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Address{}, fmt.Errorf("crypto: empty address")
	}
	decoded := base58.Decode(trimmed)
	if len(decoded) == 0 {
		return Address{}, fmt.Errorf("crypto: invalid base58 address %q", s)
	}
	return BytesToAddress(decoded)
}

// MustParseAddress is ParseAddress for compile-time constants. It panics on
// malformed input.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string { return base58.Encode(a[:]) }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool { return a == Address{} }

// Compare orders addresses bytewise.
func (a Address) Compare(other Address) int { return bytes.Compare(a[:], other[:]) }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
