package escrow

import (
	"atomicescrow/core/types"
	"atomicescrow/crypto"
)

// SeedNamespace is the fixed tag prefixed to every escrow authority seed.
const SeedNamespace = "escrow"

func authoritySeeds(maker crypto.Address, bump uint8) types.SignerSeeds {
	return types.SignerSeeds{[]byte(SeedNamespace), maker[:], {bump}}
}

// DeriveAuthority returns the record address for (maker, bump) under
// programID. The same address owns the custodial holding, so the program can
// sign for it by re-deriving the seeds.
func DeriveAuthority(programID, maker crypto.Address, bump uint8) (crypto.Address, error) {
	return crypto.CreateProgramAddress(authoritySeeds(maker, bump), programID)
}

// VerifyAuthority reports whether candidate is exactly the authority derived
// from (maker, bump).
func VerifyAuthority(candidate, programID, maker crypto.Address, bump uint8) bool {
	derived, err := DeriveAuthority(programID, maker, bump)
	if err != nil {
		return false
	}
	return derived == candidate
}

// FindAuthority searches for the canonical bump of maker and returns the
// derived authority along with it. Clients use it to build Open requests.
func FindAuthority(programID, maker crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress([][]byte{[]byte(SeedNamespace), maker[:]}, programID)
}

// CustodyAddress is the holding of assetA owned by the escrow authority.
func CustodyAddress(authority, assetA crypto.Address) (crypto.Address, error) {
	return crypto.AssociatedHoldingAddress(authority, assetA)
}
