package config

import "taxledger/observability/logging"

// DefaultEngineAddress is the ledger's own account, which also holds the
// initial reward pool.
const DefaultEngineAddress = "tax1w3shsmr9v3nk2u30v4hxw6twv5qqqqqpr76t09"

// Log controls the optional rotating log file.
type Log struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// FileOptions converts the section into logging options.
func (l Log) FileOptions() logging.FileOptions {
	return logging.FileOptions{
		Path:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}

// RateLimit bounds how often one client may call the RPC server.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute"`
	Burst             int `toml:"Burst"`
	// TrustProxyHeaders keys clients by X-Real-IP/X-Forwarded-For.
	TrustProxyHeaders bool `toml:"TrustProxyHeaders"`
}
