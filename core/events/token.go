package events

import (
	"math/big"
	"strconv"

	"taxledger/core/types"
)

const (
	TypeTaxCollected        = "token.tax.collected"
	TypeTaxRateUpdated      = "token.tax.rate_updated"
	TypeReservoirUpdated    = "token.reservoir.updated"
	TypeExemptionUpdated    = "token.exemption.updated"
	TypeRewardDistributed   = "token.reward.distributed"
	TypeRewardPoolFunded    = "token.pool.funded"
	TypeRewardPoolWithdrawn = "token.pool.withdrawn"
	TypeRewardPoolMigrated  = "token.pool.migrated"
)

// TaxCollected records the tax leg of a transfer. Gross is the amount the
// sender was debited; Tax is the portion routed to the reservoir.
type TaxCollected struct {
	From  [20]byte
	To    [20]byte
	Gross *big.Int
	Tax   *big.Int
}

func (TaxCollected) EventType() string { return TypeTaxCollected }

func (e TaxCollected) Event() *types.Event {
	return &types.Event{Type: TypeTaxCollected, Attributes: map[string]string{
		"from":  formatAccount(e.From),
		"to":    formatAccount(e.To),
		"gross": formatAmount(e.Gross),
		"tax":   formatAmount(e.Tax),
	}}
}

type TaxRateUpdated struct {
	OldBps uint32
	NewBps uint32
}

func (TaxRateUpdated) EventType() string { return TypeTaxRateUpdated }

func (e TaxRateUpdated) Event() *types.Event {
	return &types.Event{Type: TypeTaxRateUpdated, Attributes: map[string]string{
		"oldBps": strconv.FormatUint(uint64(e.OldBps), 10),
		"newBps": strconv.FormatUint(uint64(e.NewBps), 10),
	}}
}

type ReservoirUpdated struct {
	Old [20]byte
	New [20]byte
}

func (ReservoirUpdated) EventType() string { return TypeReservoirUpdated }

func (e ReservoirUpdated) Event() *types.Event {
	return &types.Event{Type: TypeReservoirUpdated, Attributes: map[string]string{
		"old": formatAccount(e.Old),
		"new": formatAccount(e.New),
	}}
}

type ExemptionUpdated struct {
	Account [20]byte
	Exempt  bool
}

func (ExemptionUpdated) EventType() string { return TypeExemptionUpdated }

func (e ExemptionUpdated) Event() *types.Event {
	return &types.Event{Type: TypeExemptionUpdated, Attributes: map[string]string{
		"account": formatAccount(e.Account),
		"exempt":  strconv.FormatBool(e.Exempt),
	}}
}

// RewardDistributed is emitted for every payout from the reward pool. Context
// is the opaque activity correlation identifier (zero when absent).
type RewardDistributed struct {
	Manager   [20]byte
	Recipient [20]byte
	Amount    *big.Int
	Context   [32]byte
}

func (RewardDistributed) EventType() string { return TypeRewardDistributed }

func (e RewardDistributed) Event() *types.Event {
	attrs := map[string]string{
		"manager":   formatAccount(e.Manager),
		"recipient": formatAccount(e.Recipient),
		"amount":    formatAmount(e.Amount),
	}
	if !zeroBytes(e.Context[:]) {
		attrs["context"] = formatHash(e.Context)
	}
	return &types.Event{Type: TypeRewardDistributed, Attributes: attrs}
}

type RewardPoolFunded struct {
	Funder [20]byte
	Pool   [20]byte
	Amount *big.Int
}

func (RewardPoolFunded) EventType() string { return TypeRewardPoolFunded }

func (e RewardPoolFunded) Event() *types.Event {
	return &types.Event{Type: TypeRewardPoolFunded, Attributes: map[string]string{
		"funder": formatAccount(e.Funder),
		"pool":   formatAccount(e.Pool),
		"amount": formatAmount(e.Amount),
	}}
}

type RewardPoolWithdrawn struct {
	To     [20]byte
	Amount *big.Int
}

func (RewardPoolWithdrawn) EventType() string { return TypeRewardPoolWithdrawn }

func (e RewardPoolWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeRewardPoolWithdrawn, Attributes: map[string]string{
		"to":     formatAccount(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

type RewardPoolMigrated struct {
	OldPool [20]byte
	NewPool [20]byte
	Amount  *big.Int
}

func (RewardPoolMigrated) EventType() string { return TypeRewardPoolMigrated }

func (e RewardPoolMigrated) Event() *types.Event {
	return &types.Event{Type: TypeRewardPoolMigrated, Attributes: map[string]string{
		"oldPool": formatAccount(e.OldPool),
		"newPool": formatAccount(e.NewPool),
		"amount":  formatAmount(e.Amount),
	}}
}
