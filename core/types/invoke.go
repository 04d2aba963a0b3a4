package types

import "atomicescrow/crypto"

// SignerSeeds is the seed list a program presents to sign as one of its
// derived addresses.
type SignerSeeds [][]byte

// InvokeContext describes who authorised the current unit of work: the
// program being executed and the set of externally signing addresses.
type InvokeContext struct {
	ProgramID crypto.Address
	Signers   []crypto.Address
}

// IsSigner reports whether addr signed the enclosing request.
func (c *InvokeContext) IsSigner(addr crypto.Address) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Signers {
		if s == addr {
			return true
		}
	}
	return false
}

// CreateAccountParams allocates program-owned storage funded by From.
type CreateAccountParams struct {
	From     crypto.Address
	To       crypto.Address
	Lamports uint64
	Space    uint64
	Owner    crypto.Address
}

// CreateHoldingParams establishes the associated holding of Wallet for Mint.
type CreateHoldingParams struct {
	Funder  crypto.Address
	Holding crypto.Address
	Wallet  crypto.Address
	Mint    crypto.Address
}

// TransferParams moves Amount units between two holdings of the same mint.
type TransferParams struct {
	From      crypto.Address
	To        crypto.Address
	Authority crypto.Address
	Amount    uint64
}

// CloseHoldingParams closes an empty holding and sends its lamports to
// Destination.
type CloseHoldingParams struct {
	Holding     crypto.Address
	Destination crypto.Address
	Authority   crypto.Address
}

// CloseAccountParams frees program-owned storage and sends its lamports to
// Destination.
type CloseAccountParams struct {
	Account     crypto.Address
	Destination crypto.Address
}
