package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress     string    `toml:"RPCAddress"`
	MetricsAddress string    `toml:"MetricsAddress"`
	DataDir        string    `toml:"DataDir"`
	GenesisFile    string    `toml:"GenesisFile"`
	JournalDSN     string    `toml:"JournalDSN"`
	EngineAddress  string    `toml:"EngineAddress"`
	LogicManifests []string  `toml:"LogicManifests"`
	Environment    string    `toml:"Environment"`
	RPCAuthToken   string    `toml:"RPCAuthToken"`
	Log            Log       `toml:"Log"`
	RateLimit      RateLimit `toml:"RateLimit"`
}

// Load loads the configuration from the given path. A default file is written
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
	}

	cfg.applyDefaults(path)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults(path string) {
	defaults := Default()
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaults.RPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaults.DataDir
	}
	if !filepath.IsAbs(c.DataDir) {
		c.DataDir = filepath.Join(filepath.Dir(path), c.DataDir)
	}
	if strings.TrimSpace(c.JournalDSN) == "" {
		c.JournalDSN = filepath.Join(c.DataDir, "journal.db")
	}
	if strings.TrimSpace(c.EngineAddress) == "" {
		c.EngineAddress = defaults.EngineAddress
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = defaults.Environment
	}
	if c.LogicManifests == nil {
		c.LogicManifests = []string{}
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = defaults.RateLimit.RequestsPerMinute
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = defaults.RateLimit.Burst
	}
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:     "127.0.0.1:8545",
		MetricsAddress: "127.0.0.1:9100",
		DataDir:        "./taxledger-data",
		GenesisFile:    "genesis.json",
		EngineAddress:  DefaultEngineAddress,
		LogicManifests: []string{},
		Environment:    "local",
		RateLimit:      RateLimit{RequestsPerMinute: 600, Burst: 60},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults(path)
	return cfg, nil
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
