package config

import (
	"atomicescrow/core/state"
	"atomicescrow/crypto"
	"atomicescrow/native/common"
	"atomicescrow/native/escrow"
)

// Program returns the parsed program identity.
func (c *Config) Program() (crypto.Address, error) {
	return crypto.ParseAddress(c.ProgramID)
}

// RentSchedule converts the configured rent into the ledger schedule.
func (c *Config) RentSchedule() state.Rent {
	return state.Rent{LamportsPerByteYear: c.Rent.LamportsPerByteYear, ExemptionYears: c.Rent.ExemptionYears}
}

// PauseView exposes the configured module pauses to the processor guard.
func (c *Config) PauseView() common.StaticPauses {
	return common.StaticPauses{escrow.ModuleName: c.Paused}
}

// QuotaLimits converts the configured quota into the processor limits.
func (c *Config) QuotaLimits() common.Quota {
	return common.Quota{
		MaxRequestsPerEpoch: c.Quota.MaxRequestsPerEpoch,
		MaxUnitsPerEpoch:    c.Quota.MaxUnitsPerEpoch,
		EpochSeconds:        c.Quota.EpochSeconds,
	}
}
