package config

// Rent is the schedule used to compute rent-exempt minimum balances.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// DefaultRent mirrors the schedule of the reference network.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}
}

// Quota defines per-maker limits on Open requests. Zero values disable a
// limit.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxUnitsPerEpoch    uint64 // base units of asset A
	EpochSeconds        uint32 // e.g., 3600
}

// Logging controls the structured logger. When File is set logs are written
// to a rotating file instead of stdout.
type Logging struct {
	Env        string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Telemetry configures the OTLP exporters and the Prometheus push gateway
// that receives the escrow counters when a command exits.
type Telemetry struct {
	Endpoint    string
	Insecure    bool
	Headers     string
	Traces      bool
	Metrics     bool
	PushGateway string
}
