package genesis

import (
	"fmt"

	"taxledger/native/access"
	"taxledger/native/token"
)

// Apply initializes engine from spec. Every step goes through the public
// engine operations so the genesis events land in the journal like any other.
func Apply(engine *token.Engine, spec *Spec) error {
	if engine == nil || spec == nil {
		return fmt.Errorf("genesis: engine and spec required")
	}
	if engine.Initialized() {
		return fmt.Errorf("genesis: ledger already initialized")
	}
	initializer := spec.rootAdmins[0]
	if err := engine.Initialize(initializer, token.InitParams{
		Name:      spec.Name,
		Symbol:    spec.Symbol,
		Treasury:  spec.treasury,
		Reservoir: spec.reservoir,
		TaxBps:    spec.TaxBps,
	}); err != nil {
		return fmt.Errorf("genesis: initialize: %w", err)
	}
	for _, admin := range spec.rootAdmins[1:] {
		if err := engine.GrantRole(initializer, access.RoleRootAdmin, admin); err != nil {
			return fmt.Errorf("genesis: grant root admin: %w", err)
		}
	}
	for _, manager := range spec.rewardManagers {
		if err := engine.GrantRole(initializer, access.RoleRewardManager, manager); err != nil {
			return fmt.Errorf("genesis: grant reward manager: %w", err)
		}
	}
	for _, acct := range spec.exempt {
		if err := engine.SetTaxExempt(spec.treasury, acct, true); err != nil {
			return fmt.Errorf("genesis: exempt: %w", err)
		}
	}
	if spec.seed != nil && spec.seed.Sign() > 0 {
		if err := engine.FundRewardPool(spec.treasury, spec.seed); err != nil {
			return fmt.Errorf("genesis: seed reward pool: %w", err)
		}
	}
	return nil
}
