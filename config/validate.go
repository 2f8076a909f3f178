package config

import (
	"fmt"
	"strings"

	"taxledger/crypto"
)

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress required")
	}
	if _, err := c.Engine(); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("RateLimit values must be non-negative")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("Log rotation values must be non-negative")
	}
	return nil
}

// Engine decodes EngineAddress.
func (c *Config) Engine() ([20]byte, error) {
	addr, err := crypto.ParseAccount(strings.TrimSpace(c.EngineAddress))
	if err != nil {
		return [20]byte{}, fmt.Errorf("EngineAddress: %w", err)
	}
	if addr == ([20]byte{}) {
		return [20]byte{}, fmt.Errorf("EngineAddress must not be the zero account")
	}
	return addr, nil
}
