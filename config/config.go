package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"atomicescrow/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ProgramID    string    `toml:"ProgramID"`
	DataDir      string    `toml:"DataDir"`
	KeystorePath string    `toml:"KeystorePath"`
	Paused       bool      `toml:"Paused"`
	Rent         Rent      `toml:"Rent"`
	Quota        Quota     `toml:"Quota"`
	Logging      Logging   `toml:"Logging"`
	Telemetry    Telemetry `toml:"Telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// with a freshly generated program id when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults(path)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults(configPath string) {
	c.ProgramID = strings.TrimSpace(c.ProgramID)
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./escrow-data"
	}
	if c.KeystorePath == "" {
		c.KeystorePath = defaultKeystorePath(configPath)
	}
	if c.Rent == (Rent{}) {
		c.Rent = DefaultRent()
	}
	if c.Quota.EpochSeconds == 0 {
		c.Quota.EpochSeconds = 3600
	}
	if strings.TrimSpace(c.Logging.Env) == "" {
		c.Logging.Env = "local"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ProgramID: key.Address().String(),
		DataDir:   "./escrow-data",
		Rent:      DefaultRent(),
		Quota:     Quota{EpochSeconds: 3600},
		Logging:   Logging{Env: "local"},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
	}
	cfg.KeystorePath = defaultKeystorePath(path)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as TOML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
