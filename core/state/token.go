package state

import (
	"fmt"
	"math/big"
	"strings"
)

var (
	tokenMetadataKey = []byte("token/metadata")
	tokenSupplyKey   = []byte("token/supply")
	tokenOwnerKey    = []byte("token/owner")
	tokenTaxKey      = []byte("token/tax")
	tokenPoolKey     = []byte("token/pool")
	tokenExemptKey   = []byte("token/exempt/")
	tokenAllowPrefix = []byte("token/allowance/")
	tokenRescuedKey  = []byte("token/rescued/")
)

// TokenMetadata captures the immutable descriptors fixed at initialization.
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// TaxConfig stores the transfer tax rate and the account receiving the tax.
type TaxConfig struct {
	RateBps   uint32
	Reservoir [20]byte
}

func exemptKey(addr [20]byte) []byte {
	key := make([]byte, len(tokenExemptKey)+len(addr))
	copy(key, tokenExemptKey)
	copy(key[len(tokenExemptKey):], addr[:])
	return key
}

func allowanceKey(owner, spender [20]byte) []byte {
	key := make([]byte, len(tokenAllowPrefix)+len(owner)+len(spender))
	copy(key, tokenAllowPrefix)
	copy(key[len(tokenAllowPrefix):], owner[:])
	copy(key[len(tokenAllowPrefix)+len(owner):], spender[:])
	return key
}

// TokenMetadata returns the stored metadata. The boolean is false before the
// ledger has been initialized.
func (m *Manager) TokenMetadata() (*TokenMetadata, bool, error) {
	var meta TokenMetadata
	ok, err := m.KVGet(tokenMetadataKey, &meta)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &meta, true, nil
}

// SetTokenMetadata persists the token descriptors.
func (m *Manager) SetTokenMetadata(meta *TokenMetadata) error {
	if meta == nil {
		return fmt.Errorf("token metadata required")
	}
	normalized := TokenMetadata{
		Name:     strings.TrimSpace(meta.Name),
		Symbol:   strings.ToUpper(strings.TrimSpace(meta.Symbol)),
		Decimals: meta.Decimals,
	}
	if normalized.Symbol == "" {
		return fmt.Errorf("token symbol required")
	}
	return m.KVPut(tokenMetadataKey, &normalized)
}

// TotalSupply returns the recorded total supply. Missing entries default to
// zero.
func (m *Manager) TotalSupply() (*big.Int, error) {
	total := new(big.Int)
	ok, err := m.KVGet(tokenSupplyKey, total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

// SetTotalSupply overwrites the recorded total supply.
func (m *Manager) SetTotalSupply(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token supply cannot be negative")
	}
	return m.KVPut(tokenSupplyKey, amount)
}

func (m *Manager) readAccount(key []byte) ([20]byte, error) {
	var addr [20]byte
	if _, err := m.KVGet(key, &addr); err != nil {
		return [20]byte{}, err
	}
	return addr, nil
}

// TokenOwner returns the operational owner account. The zero address is
// returned when no owner is recorded.
func (m *Manager) TokenOwner() ([20]byte, error) {
	return m.readAccount(tokenOwnerKey)
}

// SetTokenOwner records the operational owner account.
func (m *Manager) SetTokenOwner(addr [20]byte) error {
	return m.KVPut(tokenOwnerKey, addr)
}

// TaxConfig returns the stored tax configuration.
func (m *Manager) TaxConfig() (TaxConfig, error) {
	var cfg TaxConfig
	if _, err := m.KVGet(tokenTaxKey, &cfg); err != nil {
		return TaxConfig{}, err
	}
	return cfg, nil
}

// SetTaxConfig replaces the tax configuration.
func (m *Manager) SetTaxConfig(cfg TaxConfig) error {
	return m.KVPut(tokenTaxKey, &cfg)
}

// RewardPool returns the account currently designated as the reward pool.
func (m *Manager) RewardPool() ([20]byte, error) {
	return m.readAccount(tokenPoolKey)
}

// SetRewardPool records the reward pool designation.
func (m *Manager) SetRewardPool(addr [20]byte) error {
	return m.KVPut(tokenPoolKey, addr)
}

// IsTaxExempt reports whether the account belongs to the exemption set.
func (m *Manager) IsTaxExempt(addr [20]byte) (bool, error) {
	return m.KVGet(exemptKey(addr), nil)
}

// SetTaxExempt adds or removes the account from the exemption set.
func (m *Manager) SetTaxExempt(addr [20]byte, exempt bool) error {
	if !exempt {
		return m.KVDelete(exemptKey(addr))
	}
	return m.KVPut(exemptKey(addr), true)
}

// Allowance returns the amount spender may move on behalf of owner.
func (m *Manager) Allowance(owner, spender [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(allowanceKey(owner, spender), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// SetAllowance stores the spender allowance. A zero amount clears the entry.
func (m *Manager) SetAllowance(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(allowanceKey(owner, spender))
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("allowance cannot be negative")
	}
	return m.KVPut(allowanceKey(owner, spender), amount)
}

// RescuedAmount returns the cumulative amount of a foreign asset released by
// rescue operations.
func (m *Manager) RescuedAmount(asset [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(append(append([]byte(nil), tokenRescuedKey...), asset[:]...), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// SetRescuedAmount overwrites the cumulative rescued amount for asset.
func (m *Manager) SetRescuedAmount(asset [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("rescued amount cannot be negative")
	}
	return m.KVPut(append(append([]byte(nil), tokenRescuedKey...), asset[:]...), amount)
}
