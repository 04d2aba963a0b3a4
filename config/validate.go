package config

import (
	"fmt"

	"atomicescrow/crypto"
)

var (
	MinEpochSeconds = uint32(60)
)

func (c *Config) Validate() error {
	if c.ProgramID == "" {
		return fmt.Errorf("ProgramID is required")
	}
	program, err := crypto.ParseAddress(c.ProgramID)
	if err != nil {
		return fmt.Errorf("ProgramID: %w", err)
	}
	if program.IsZero() {
		return fmt.Errorf("ProgramID: zero address")
	}
	if program == crypto.SystemProgramID || program == crypto.TokenProgramID || program == crypto.AssociatedTokenProgramID {
		return fmt.Errorf("ProgramID: %s is a reserved program", program)
	}
	if err := c.RentSchedule().Check(); err != nil {
		return err
	}
	if c.Quota.EpochSeconds < MinEpochSeconds {
		return fmt.Errorf("quota: EpochSeconds must be >= %d", MinEpochSeconds)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging: rotation limits must not be negative")
	}
	return nil
}
