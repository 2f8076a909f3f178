package token

import (
	"math/big"

	"taxledger/core/state"
	"taxledger/native/access"
)

// Config summarises the tunable ledger parameters.
type Config struct {
	Name          string
	Symbol        string
	Decimals      uint8
	TaxBps        uint32
	Reservoir     [20]byte
	Pool          [20]byte
	PoolFunds     *big.Int
	Owner         [20]byte
	Logic         string
	LayoutVersion uint32
}

// Initialized reports whether Initialize has run.
func (e *Engine) Initialized() bool {
	_, ok, err := e.st.TokenMetadata()
	return err == nil && ok
}

// Metadata returns the token descriptors.
func (e *Engine) Metadata() (*state.TokenMetadata, error) {
	meta, ok, err := e.st.TokenMetadata()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return meta, nil
}

// BalanceOf returns the balance of account.
func (e *Engine) BalanceOf(account [20]byte) (*big.Int, error) {
	return e.st.Balance(account)
}

// TotalSupply returns the fixed supply recorded at initialization.
func (e *Engine) TotalSupply() (*big.Int, error) {
	return e.st.TotalSupply()
}

// Allowance returns how much spender may move out of owner's balance.
func (e *Engine) Allowance(owner, spender [20]byte) (*big.Int, error) {
	return e.st.Allowance(owner, spender)
}

// TaxRate returns the current tax in basis points.
func (e *Engine) TaxRate() (uint32, error) {
	cfg, err := e.st.TaxConfig()
	return cfg.RateBps, err
}

// Reservoir returns the tax destination.
func (e *Engine) Reservoir() ([20]byte, error) {
	cfg, err := e.st.TaxConfig()
	return cfg.Reservoir, err
}

// IsTaxExempt reports exemption set membership.
func (e *Engine) IsTaxExempt(account [20]byte) (bool, error) {
	return e.st.IsTaxExempt(account)
}

// RewardPool returns the reward pool designation.
func (e *Engine) RewardPool() ([20]byte, error) {
	return e.st.RewardPool()
}

// RewardPoolBalance returns the funds available for distribution.
func (e *Engine) RewardPoolBalance() (*big.Int, error) {
	pool, err := e.st.RewardPool()
	if err != nil {
		return nil, err
	}
	return e.st.Balance(pool)
}

// Owner returns the operational owner.
func (e *Engine) Owner() ([20]byte, error) {
	return e.st.TokenOwner()
}

// HasRole reports role membership. Unknown roles are never held.
func (e *Engine) HasRole(role string, account [20]byte) bool {
	normalized, err := access.NormalizeRole(role)
	if err != nil {
		return false
	}
	return e.st.HasRole(normalized, account[:])
}

// RoleMembers lists the accounts holding role.
func (e *Engine) RoleMembers(role string) ([][20]byte, error) {
	normalized, err := access.NormalizeRole(role)
	if err != nil {
		return nil, classifyAccess(err)
	}
	members, err := e.st.RoleMembers(normalized)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(members))
	for _, member := range members {
		var acct [20]byte
		copy(acct[:], member)
		out = append(out, acct)
	}
	return out, nil
}

// ActiveLogic returns the stored logic record.
func (e *Engine) ActiveLogic() (*state.LogicRecord, error) {
	record, ok, err := e.st.LogicRecord()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return record, nil
}

// RescuedAmount returns the cumulative amount released for asset.
func (e *Engine) RescuedAmount(asset [20]byte) (*big.Int, error) {
	return e.st.RescuedAmount(asset)
}

// Config returns a snapshot of the ledger configuration.
func (e *Engine) Config() (*Config, error) {
	meta, err := e.Metadata()
	if err != nil {
		return nil, err
	}
	cfg, err := e.st.TaxConfig()
	if err != nil {
		return nil, err
	}
	pool, err := e.st.RewardPool()
	if err != nil {
		return nil, err
	}
	funds, err := e.st.Balance(pool)
	if err != nil {
		return nil, err
	}
	owner, err := e.st.TokenOwner()
	if err != nil {
		return nil, err
	}
	logic, err := e.ActiveLogic()
	if err != nil {
		return nil, err
	}
	return &Config{
		Name:          meta.Name,
		Symbol:        meta.Symbol,
		Decimals:      meta.Decimals,
		TaxBps:        cfg.RateBps,
		Reservoir:     cfg.Reservoir,
		Pool:          pool,
		PoolFunds:     funds,
		Owner:         owner,
		Logic:         logic.Ref,
		LayoutVersion: logic.Version,
	}, nil
}
