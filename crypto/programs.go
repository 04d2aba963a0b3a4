package crypto

// Well-known program identities the ledger recognises. The escrow program
// identity is configuration and deliberately not listed here.
var (
	SystemProgramID          = MustParseAddress("11111111111111111111111111111111")
	TokenProgramID           = MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustParseAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// AssociatedHoldingAddress returns the canonical holding address for wallet
// and mint.
func AssociatedHoldingAddress(wallet, mint Address) (Address, error) {
	addr, _, err := FindProgramAddress([][]byte{wallet[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)
	return addr, err
}
