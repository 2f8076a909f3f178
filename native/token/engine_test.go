package token

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"taxledger/core/events"
	"taxledger/core/state"
	"taxledger/native/access"
	"taxledger/native/upgrade"
	"taxledger/storage"
	"taxledger/storage/trie"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func (c *capturingEmitter) types() []string {
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType())
	}
	return out
}

func (c *capturingEmitter) count(kind string) int {
	n := 0
	for _, e := range c.events {
		if e.EventType() == kind {
			n++
		}
	}
	return n
}

func account(b byte) [20]byte {
	var out [20]byte
	out[0] = 0xA0
	out[19] = b
	return out
}

var (
	admin     = account(1)
	treasury  = account(2)
	reservoir = account(3)
	alice     = account(4)
	bob       = account(5)
	manager   = account(6)
	carol     = account(7)
	engineAcc = account(0xEE)
)

var everyone = [][20]byte{admin, treasury, reservoir, alice, bob, manager, carol, engineAcc}

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// tenths returns n/10 of a whole unit.
func tenths(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil))
}

type fixture struct {
	t       *testing.T
	engine  *Engine
	emitter *capturingEmitter
}

func newFixture(t *testing.T, taxBps uint32) *fixture {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	engine, err := NewEngine(state.NewManager(tr), engineAcc)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)
	if err := engine.Initialize(admin, InitParams{
		Name:      "Tax Token",
		Symbol:    "TTX",
		Treasury:  treasury,
		Reservoir: reservoir,
		TaxBps:    taxBps,
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.GrantRole(admin, access.RoleRewardManager, manager); err != nil {
		t.Fatalf("grant reward manager: %v", err)
	}
	emitter.events = nil
	return &fixture{t: t, engine: engine, emitter: emitter}
}

func (f *fixture) balance(acct [20]byte) *big.Int {
	f.t.Helper()
	bal, err := f.engine.BalanceOf(acct)
	if err != nil {
		f.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (f *fixture) requireBalance(acct [20]byte, want *big.Int) {
	f.t.Helper()
	if got := f.balance(acct); got.Cmp(want) != 0 {
		f.t.Fatalf("balance mismatch for %x: got %s want %s", acct[19], got, want)
	}
}

func (f *fixture) requireSupplyConserved() {
	f.t.Helper()
	sum := new(big.Int)
	for _, acct := range everyone {
		sum.Add(sum, f.balance(acct))
	}
	if sum.Cmp(TotalSupplyAmount()) != 0 {
		f.t.Fatalf("supply not conserved: sum=%s total=%s", sum, TotalSupplyAmount())
	}
	total, err := f.engine.TotalSupply()
	if err != nil {
		f.t.Fatalf("total supply: %v", err)
	}
	if total.Cmp(TotalSupplyAmount()) != 0 {
		f.t.Fatalf("recorded supply changed: %s", total)
	}
}

func (f *fixture) fund(to [20]byte, amount *big.Int) {
	f.t.Helper()
	if err := f.engine.Transfer(treasury, to, amount); err != nil {
		f.t.Fatalf("fund %x: %v", to[19], err)
	}
}

func TestInitializeMintsSupplyAndConfigures(t *testing.T) {
	f := newFixture(t, 200)
	f.requireBalance(treasury, TotalSupplyAmount())
	f.requireSupplyConserved()

	for _, acct := range [][20]byte{treasury, reservoir, engineAcc} {
		exempt, err := f.engine.IsTaxExempt(acct)
		if err != nil || !exempt {
			t.Fatalf("expected %x to be exempt: %v", acct[19], err)
		}
	}
	owner, _ := f.engine.Owner()
	if owner != treasury {
		t.Fatalf("owner should be treasury")
	}
	pool, _ := f.engine.RewardPool()
	if pool != engineAcc {
		t.Fatalf("initial pool should be the engine account")
	}
	if !f.engine.HasRole(access.RoleRootAdmin, admin) {
		t.Fatalf("initializer should hold root admin")
	}
	cfg, err := f.engine.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.TaxBps != 200 || cfg.Logic != DefaultLogicRef || cfg.Symbol != "TTX" || cfg.Decimals != 18 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestInitializeOnlyOnce(t *testing.T) {
	f := newFixture(t, 0)
	err := f.engine.Initialize(alice, InitParams{Name: "Again", Symbol: "AGN", Treasury: alice, Reservoir: bob})
	if !errors.Is(err, ErrAlreadyInitialized) || !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected already initialized, got %v", err)
	}
	f.requireBalance(alice, big.NewInt(0))
	f.requireSupplyConserved()
}

func TestInitializeValidatesParams(t *testing.T) {
	tr, _ := trie.NewTrie(storage.NewMemDB(), nil)
	engine, err := NewEngine(state.NewManager(tr), engineAcc)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	cases := []struct {
		name   string
		params InitParams
		want   error
	}{
		{"zero treasury", InitParams{Name: "T", Symbol: "T", Reservoir: reservoir}, ErrZeroAddress},
		{"zero reservoir", InitParams{Name: "T", Symbol: "T", Treasury: treasury}, ErrZeroAddress},
		{"rate above cap", InitParams{Name: "T", Symbol: "T", Treasury: treasury, Reservoir: reservoir, TaxBps: 1001}, ErrTaxRateTooHigh},
		{"missing symbol", InitParams{Name: "T", Treasury: treasury, Reservoir: reservoir}, ErrInvalidMetadata},
		{"reservoir is pool", InitParams{Name: "T", Symbol: "T", Treasury: treasury, Reservoir: engineAcc}, ErrPoolReservoir},
	}
	for _, tc := range cases {
		if err := engine.Initialize(admin, tc.params); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if engine.Initialized() {
		t.Fatalf("failed initialization must not persist")
	}
	if err := engine.Transfer(treasury, alice, big.NewInt(1)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

func TestTransferTaxSplit(t *testing.T) {
	f := newFixture(t, 200)
	f.fund(alice, units(100))
	f.requireBalance(reservoir, big.NewInt(0))
	f.emitter.events = nil

	if err := f.engine.Transfer(alice, bob, units(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	f.requireBalance(bob, tenths(98))
	f.requireBalance(reservoir, tenths(2))
	f.requireBalance(alice, units(90))
	f.requireSupplyConserved()

	if f.emitter.count(events.TypeTaxCollected) != 1 {
		t.Fatalf("expected one tax event, got %v", f.emitter.types())
	}
	var collected events.TaxCollected
	for _, e := range f.emitter.events {
		if evt, ok := e.(events.TaxCollected); ok {
			collected = evt
		}
	}
	if collected.Gross.Cmp(units(10)) != 0 || collected.Tax.Cmp(tenths(2)) != 0 || collected.From != alice || collected.To != bob {
		t.Fatalf("unexpected tax event %+v", collected)
	}
}

func TestTransferExemptSideSkipsTax(t *testing.T) {
	for _, exempt := range [][20]byte{alice, bob} {
		f := newFixture(t, 200)
		f.fund(alice, units(10))
		if err := f.engine.SetTaxExempt(treasury, exempt, true); err != nil {
			t.Fatalf("set exempt: %v", err)
		}
		f.emitter.events = nil
		if err := f.engine.Transfer(alice, bob, units(10)); err != nil {
			t.Fatalf("transfer: %v", err)
		}
		f.requireBalance(bob, units(10))
		f.requireBalance(reservoir, big.NewInt(0))
		if f.emitter.count(events.TypeTaxCollected) != 0 {
			t.Fatalf("exempt transfer must not collect tax")
		}
	}
}

func TestTransferTaxTruncatesTowardRecipient(t *testing.T) {
	f := newFixture(t, 200)
	f.fund(alice, big.NewInt(1000))
	// 49 * 200 / 10000 truncates to zero.
	if err := f.engine.Transfer(alice, bob, big.NewInt(49)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	f.requireBalance(bob, big.NewInt(49))
	f.requireBalance(reservoir, big.NewInt(0))
	// 149 * 200 / 10000 = 2.98 truncates to 2.
	if err := f.engine.Transfer(alice, bob, big.NewInt(149)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	f.requireBalance(bob, big.NewInt(49+147))
	f.requireBalance(reservoir, big.NewInt(2))
	f.requireSupplyConserved()
}

func TestTransferFailuresLeaveNoTrace(t *testing.T) {
	f := newFixture(t, 200)
	f.fund(alice, units(1))
	root := f.engine.State().Root()
	f.emitter.events = nil

	if err := f.engine.Transfer(alice, bob, units(2)); !errors.Is(err, ErrInsufficientBalance) || !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := f.engine.Transfer(alice, [20]byte{}, units(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected zero address, got %v", err)
	}
	if err := f.engine.Transfer(alice, bob, big.NewInt(-1)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if f.engine.State().Root() != root {
		t.Fatalf("failed transfers mutated state")
	}
	if len(f.emitter.events) != 0 {
		t.Fatalf("failed transfers emitted events: %v", f.emitter.types())
	}
}

func TestSetTaxRateBound(t *testing.T) {
	f := newFixture(t, 0)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		bps := uint32(rng.Intn(int(MaxTaxBps) + 1))
		if err := f.engine.SetTaxRate(treasury, bps); err != nil {
			t.Fatalf("rate %d rejected: %v", bps, err)
		}
		if got, _ := f.engine.TaxRate(); got != bps {
			t.Fatalf("rate not stored: got %d want %d", got, bps)
		}
	}
	for _, bps := range []uint32{0, MaxTaxBps} {
		if err := f.engine.SetTaxRate(treasury, bps); err != nil {
			t.Fatalf("boundary rate %d rejected: %v", bps, err)
		}
	}
	before, _ := f.engine.TaxRate()
	above := []uint32{MaxTaxBps + 1, 5000, 10_000, ^uint32(0)}
	for i := 0; i < 100; i++ {
		above = append(above, MaxTaxBps+1+uint32(rng.Intn(1_000_000)))
	}
	for _, bps := range above {
		if err := f.engine.SetTaxRate(treasury, bps); !errors.Is(err, ErrTaxRateTooHigh) || !errors.Is(err, ErrInvariantViolation) {
			t.Fatalf("rate %d: expected cap violation, got %v", bps, err)
		}
	}
	if after, _ := f.engine.TaxRate(); after != before {
		t.Fatalf("rejected rate changed config")
	}
}

func TestOwnerGatedOperationsRejectOthers(t *testing.T) {
	f := newFixture(t, 200)
	f.fund(alice, units(5))
	root := f.engine.State().Root()
	f.emitter.events = nil

	calls := map[string]func(caller [20]byte) error{
		"setTaxRate":   func(c [20]byte) error { return f.engine.SetTaxRate(c, 100) },
		"setReservoir": func(c [20]byte) error { return f.engine.SetReservoirAddress(c, bob) },
		"setTaxExempt": func(c [20]byte) error { return f.engine.SetTaxExempt(c, bob, true) },
		"setPool":      func(c [20]byte) error { return f.engine.SetRewardPool(c, bob) },
		"fundPool":     func(c [20]byte) error { return f.engine.FundRewardPool(c, units(1)) },
		"withdraw":     func(c [20]byte) error { return f.engine.WithdrawFromPool(c, bob, units(1)) },
		"rescue":       func(c [20]byte) error { return f.engine.RescueForeignAsset(c, carol, bob, units(1)) },
		"ownership":    func(c [20]byte) error { return f.engine.TransferOwnership(c, bob) },
	}
	for name, call := range calls {
		for _, caller := range [][20]byte{alice, admin, manager} {
			if err := call(caller); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("%s by %x: expected unauthorized, got %v", name, caller[19], err)
			}
		}
	}
	if f.engine.State().Root() != root {
		t.Fatalf("unauthorized calls mutated state")
	}
	if len(f.emitter.events) != 0 {
		t.Fatalf("unauthorized calls emitted events")
	}
}

func TestSetTaxExemptAlwaysEmits(t *testing.T) {
	f := newFixture(t, 200)
	for i := 0; i < 2; i++ {
		if err := f.engine.SetTaxExempt(treasury, alice, false); err != nil {
			t.Fatalf("set exempt: %v", err)
		}
	}
	if f.emitter.count(events.TypeExemptionUpdated) != 2 {
		t.Fatalf("expected an event per call, got %v", f.emitter.types())
	}
	if err := f.engine.SetTaxExempt(treasury, [20]byte{}, true); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected zero address, got %v", err)
	}
}

func TestSetReservoirExemptsNewReservoir(t *testing.T) {
	f := newFixture(t, 200)
	if err := f.engine.SetReservoirAddress(treasury, [20]byte{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected zero address, got %v", err)
	}
	if err := f.engine.SetReservoirAddress(treasury, carol); err != nil {
		t.Fatalf("set reservoir: %v", err)
	}
	if exempt, _ := f.engine.IsTaxExempt(carol); !exempt {
		t.Fatalf("new reservoir must be exempt")
	}
	f.fund(alice, units(10))
	if err := f.engine.Transfer(alice, bob, units(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	f.requireBalance(carol, tenths(2))
	f.requireBalance(reservoir, big.NewInt(0))
}

func TestRewardDistribution(t *testing.T) {
	f := newFixture(t, 200)
	if err := f.engine.FundRewardPool(treasury, units(100)); err != nil {
		t.Fatalf("fund pool: %v", err)
	}
	pool, _ := f.engine.RewardPoolBalance()
	if pool.Cmp(units(100)) != 0 {
		t.Fatalf("pool balance %s", pool)
	}
	f.emitter.events = nil

	var activity [32]byte
	activity[0] = 0x42
	if err := f.engine.DistributeRewardWithContext(manager, alice, units(30), activity); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	f.requireBalance(alice, units(30))
	f.requireBalance(reservoir, big.NewInt(0))
	pool, _ = f.engine.RewardPoolBalance()
	if pool.Cmp(units(70)) != 0 {
		t.Fatalf("pool should drop by exactly the payout, got %s", pool)
	}
	f.requireSupplyConserved()

	var distributed *events.RewardDistributed
	for _, e := range f.emitter.events {
		if evt, ok := e.(events.RewardDistributed); ok {
			distributed = &evt
		}
	}
	if distributed == nil || distributed.Manager != manager || distributed.Context != activity || distributed.Amount.Cmp(units(30)) != 0 {
		t.Fatalf("unexpected reward event %+v", distributed)
	}

	if err := f.engine.DistributeReward(manager, bob, units(71)); !errors.Is(err, ErrInsufficientPool) {
		t.Fatalf("expected insufficient pool, got %v", err)
	}
	if err := f.engine.DistributeReward(manager, [20]byte{}, units(1)); !errors.Is(err, ErrZeroRecipient) {
		t.Fatalf("expected zero recipient, got %v", err)
	}
	if err := f.engine.DistributeReward(manager, bob, big.NewInt(0)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected zero amount, got %v", err)
	}
	f.requireBalance(bob, big.NewInt(0))
}

func TestDistributeRewardRequiresRole(t *testing.T) {
	f := newFixture(t, 0)
	if err := f.engine.FundRewardPool(treasury, units(10)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	for _, caller := range [][20]byte{alice, treasury, admin} {
		if err := f.engine.DistributeReward(caller, bob, units(1)); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("caller %x: expected unauthorized, got %v", caller[19], err)
		}
	}
	if err := f.engine.RevokeRole(admin, access.RoleRewardManager, manager); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := f.engine.DistributeReward(manager, bob, units(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("revoked manager: expected unauthorized, got %v", err)
	}
}

func TestDistributeNeverExceedsPool(t *testing.T) {
	f := newFixture(t, 100)
	if err := f.engine.FundRewardPool(treasury, big.NewInt(1000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		amount := big.NewInt(int64(rng.Intn(400) + 1))
		before, _ := f.engine.RewardPoolBalance()
		recipientBefore := f.balance(bob)
		err := f.engine.DistributeReward(manager, bob, amount)
		after, _ := f.engine.RewardPoolBalance()
		if amount.Cmp(before) > 0 {
			if !errors.Is(err, ErrInsufficientPool) {
				t.Fatalf("overdraw of %s from %s accepted: %v", amount, before, err)
			}
			if after.Cmp(before) != 0 {
				t.Fatalf("failed distribution changed pool")
			}
			continue
		}
		if err != nil {
			t.Fatalf("distribute %s: %v", amount, err)
		}
		if new(big.Int).Sub(before, after).Cmp(amount) != 0 {
			t.Fatalf("pool decreased by wrong amount")
		}
		if new(big.Int).Sub(f.balance(bob), recipientBefore).Cmp(amount) != 0 {
			t.Fatalf("recipient increased by wrong amount")
		}
	}
	f.requireSupplyConserved()
}

func TestWithdrawFromPool(t *testing.T) {
	f := newFixture(t, 200)
	if err := f.engine.FundRewardPool(treasury, units(5)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := f.engine.WithdrawFromPool(treasury, [20]byte{}, units(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected zero address, got %v", err)
	}
	if err := f.engine.WithdrawFromPool(treasury, alice, units(6)); !errors.Is(err, ErrInsufficientPool) {
		t.Fatalf("expected insufficient pool, got %v", err)
	}
	if err := f.engine.WithdrawFromPool(treasury, alice, units(5)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	f.requireBalance(alice, units(5))
	if f.emitter.count(events.TypeRewardPoolWithdrawn) != 1 {
		t.Fatalf("expected withdrawal event")
	}
	f.requireSupplyConserved()
}

func TestFundRewardPoolRejectsZero(t *testing.T) {
	f := newFixture(t, 200)
	if err := f.engine.FundRewardPool(treasury, big.NewInt(0)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected zero amount, got %v", err)
	}
	if err := f.engine.FundRewardPool(treasury, TotalSupplyAmount().Add(TotalSupplyAmount(), big.NewInt(1))); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestSetRewardPoolMigratesEntireBalance(t *testing.T) {
	for _, amount := range []*big.Int{big.NewInt(0), big.NewInt(1), units(250_000_000)} {
		f := newFixture(t, 200)
		if amount.Sign() > 0 {
			if err := f.engine.FundRewardPool(treasury, amount); err != nil {
				t.Fatalf("fund %s: %v", amount, err)
			}
		}
		f.emitter.events = nil
		if err := f.engine.SetRewardPool(treasury, carol); err != nil {
			t.Fatalf("migrate %s: %v", amount, err)
		}
		pool, _ := f.engine.RewardPool()
		if pool != carol {
			t.Fatalf("pool designation not updated")
		}
		f.requireBalance(carol, amount)
		f.requireBalance(engineAcc, big.NewInt(0))
		if exempt, _ := f.engine.IsTaxExempt(carol); !exempt {
			t.Fatalf("new pool must be exempt")
		}
		if exempt, _ := f.engine.IsTaxExempt(engineAcc); exempt {
			t.Fatalf("old pool exemption must be revoked")
		}
		var migrated *events.RewardPoolMigrated
		for _, e := range f.emitter.events {
			if evt, ok := e.(events.RewardPoolMigrated); ok {
				migrated = &evt
			}
		}
		if migrated == nil || migrated.OldPool != engineAcc || migrated.NewPool != carol || migrated.Amount.Cmp(amount) != 0 {
			t.Fatalf("unexpected migration event %+v", migrated)
		}
		f.requireSupplyConserved()
	}
}

func TestSetRewardPoolKeepsOwnerExempt(t *testing.T) {
	f := newFixture(t, 200)
	if err := f.engine.SetRewardPool(treasury, treasury); err != nil {
		t.Fatalf("migrate to owner: %v", err)
	}
	if err := f.engine.SetRewardPool(treasury, bob); err != nil {
		t.Fatalf("migrate away from owner: %v", err)
	}
	if exempt, _ := f.engine.IsTaxExempt(treasury); !exempt {
		t.Fatalf("owner lost its exemption")
	}
	f.requireSupplyConserved()
}

func TestReservoirAndPoolStayApart(t *testing.T) {
	f := newFixture(t, 200)
	if err := f.engine.FundRewardPool(treasury, units(5)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	root := f.engine.State().Root()
	if err := f.engine.SetRewardPool(treasury, reservoir); !errors.Is(err, ErrPoolReservoir) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected reservoir rejection, got %v", err)
	}
	if err := f.engine.SetReservoirAddress(treasury, engineAcc); !errors.Is(err, ErrPoolReservoir) {
		t.Fatalf("expected pool rejection, got %v", err)
	}
	if f.engine.State().Root() != root {
		t.Fatalf("rejected calls changed state")
	}

	f.fund(bob, units(10))
	if err := f.engine.Transfer(bob, carol, units(10)); err != nil {
		t.Fatalf("taxed transfer: %v", err)
	}
	f.requireBalance(engineAcc, units(5))
	f.requireBalance(reservoir, tenths(2))
	f.requireSupplyConserved()
}

func TestSetRewardPoolSameAddressIsNoop(t *testing.T) {
	f := newFixture(t, 200)
	root := f.engine.State().Root()
	if err := f.engine.SetRewardPool(treasury, engineAcc); err != nil {
		t.Fatalf("noop migration: %v", err)
	}
	if f.engine.State().Root() != root || len(f.emitter.events) != 0 {
		t.Fatalf("noop migration changed state or emitted events")
	}
	if err := f.engine.SetRewardPool(treasury, [20]byte{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected zero address, got %v", err)
	}
}

func TestRewardPoolCannotSendPlainTransfers(t *testing.T) {
	f := newFixture(t, 0)
	if err := f.engine.SetRewardPool(treasury, carol); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := f.engine.FundRewardPool(treasury, units(3)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := f.engine.Transfer(carol, bob, units(1)); !errors.Is(err, ErrPoolTransfer) || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected pool transfer rejection, got %v", err)
	}
	if err := f.engine.Approve(carol, alice, units(1)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.engine.TransferFrom(alice, carol, bob, units(1)); !errors.Is(err, ErrPoolTransfer) {
		t.Fatalf("expected pool transfer rejection, got %v", err)
	}
}

func TestRewardPoolOnlyCreditedByFunding(t *testing.T) {
	f := newFixture(t, 200)
	f.fund(alice, units(100))
	if err := f.engine.Transfer(alice, engineAcc, units(50)); !errors.Is(err, ErrPoolDeposit) || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected pool deposit rejection, got %v", err)
	}
	if err := f.engine.Transfer(treasury, engineAcc, units(1)); !errors.Is(err, ErrPoolDeposit) {
		t.Fatalf("owner must fund through FundRewardPool, got %v", err)
	}
	if err := f.engine.Approve(alice, bob, units(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	root := f.engine.State().Root()
	if err := f.engine.TransferFrom(bob, alice, engineAcc, units(10)); !errors.Is(err, ErrPoolDeposit) {
		t.Fatalf("expected pool deposit rejection, got %v", err)
	}
	if f.engine.State().Root() != root {
		t.Fatalf("rejected deposit changed state")
	}
	f.requireBalance(engineAcc, big.NewInt(0))

	if err := f.engine.FundRewardPool(treasury, units(7)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	f.requireBalance(engineAcc, units(7))

	// An owner-held pool accepts plain credits.
	if err := f.engine.SetRewardPool(treasury, treasury); err != nil {
		t.Fatalf("migrate to owner: %v", err)
	}
	if err := f.engine.Transfer(alice, treasury, units(1)); err != nil {
		t.Fatalf("transfer to owner pool: %v", err)
	}
	f.requireSupplyConserved()
}

func TestTransferFromSpendsAllowanceWithTax(t *testing.T) {
	f := newFixture(t, 200)
	f.fund(alice, units(20))
	if err := f.engine.Approve(alice, bob, units(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.engine.TransferFrom(bob, alice, carol, units(11)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}
	if err := f.engine.TransferFrom(bob, alice, carol, units(10)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	f.requireBalance(carol, tenths(98))
	f.requireBalance(reservoir, tenths(2))
	remaining, _ := f.engine.Allowance(alice, bob)
	if remaining.Sign() != 0 {
		t.Fatalf("allowance not consumed: %s", remaining)
	}
	f.requireSupplyConserved()
}

func TestSupplyConservedAcrossRandomOperations(t *testing.T) {
	f := newFixture(t, 250)
	rng := rand.New(rand.NewSource(42))
	holders := [][20]byte{treasury, alice, bob, carol}
	f.fund(alice, units(1000))
	f.fund(bob, units(1000))
	if err := f.engine.FundRewardPool(treasury, units(1000)); err != nil {
		t.Fatalf("fund pool: %v", err)
	}
	for i := 0; i < 300; i++ {
		amount := big.NewInt(rng.Int63n(1_000_000_000_000_000_000) + 1)
		from := holders[rng.Intn(len(holders))]
		to := holders[rng.Intn(len(holders))]
		switch rng.Intn(6) {
		case 0, 1:
			_ = f.engine.Transfer(from, to, amount)
		case 2:
			_ = f.engine.DistributeReward(manager, to, amount)
		case 3:
			_ = f.engine.SetTaxRate(treasury, uint32(rng.Intn(1200)))
		case 4:
			_ = f.engine.SetTaxExempt(treasury, to, rng.Intn(2) == 0)
		case 5:
			_ = f.engine.WithdrawFromPool(treasury, to, amount)
		}
		f.requireSupplyConserved()
	}
}

func v2Logic(t *testing.T, fields []string, reserved uint32) Logic {
	t.Helper()
	base := DefaultLogic().Layout()
	manifest := &upgrade.Manifest{
		Logic: "tax-token/v2",
		Layout: upgrade.Layout{
			Version:  base.Version + 1,
			Fields:   append(base.Fields, fields...),
			Reserved: reserved,
		},
	}
	logic, err := NewManifestLogic(manifest)
	if err != nil {
		t.Fatalf("manifest logic: %v", err)
	}
	return logic
}

func TestAuthorizeUpgradeRequiresRootAdmin(t *testing.T) {
	f := newFixture(t, 200)
	base := DefaultLogic().Layout()
	if err := f.engine.RegisterLogic(v2Logic(t, []string{"vesting"}, base.Reserved-1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, caller := range [][20]byte{treasury, manager, alice} {
		if err := f.engine.AuthorizeUpgrade(caller, "tax-token/v2"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("caller %x: expected unauthorized, got %v", caller[19], err)
		}
	}
	record, _ := f.engine.ActiveLogic()
	if record.Ref != DefaultLogicRef {
		t.Fatalf("logic changed without authorization")
	}
}

func TestAuthorizeUpgradePreservesState(t *testing.T) {
	f := newFixture(t, 200)
	f.fund(alice, units(10))
	if err := f.engine.FundRewardPool(treasury, units(7)); err != nil {
		t.Fatalf("fund pool: %v", err)
	}
	if err := f.engine.SetTaxExempt(treasury, bob, true); err != nil {
		t.Fatalf("exempt: %v", err)
	}
	balances := make(map[[20]byte]*big.Int)
	for _, acct := range everyone {
		balances[acct] = f.balance(acct)
	}
	cfgBefore, _ := f.engine.Config()

	base := DefaultLogic().Layout()
	if err := f.engine.RegisterLogic(v2Logic(t, []string{"vesting"}, base.Reserved-1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.emitter.events = nil
	if err := f.engine.AuthorizeUpgrade(admin, "tax-token/v2"); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if f.emitter.count(events.TypeUpgraded) != 1 {
		t.Fatalf("expected upgrade event")
	}
	for acct, want := range balances {
		f.requireBalance(acct, want)
	}
	cfgAfter, _ := f.engine.Config()
	if cfgAfter.Logic != "tax-token/v2" || cfgAfter.LayoutVersion != 2 {
		t.Fatalf("logic not switched: %+v", cfgAfter)
	}
	if cfgAfter.TaxBps != cfgBefore.TaxBps || cfgAfter.Reservoir != cfgBefore.Reservoir ||
		cfgAfter.Pool != cfgBefore.Pool || cfgAfter.Owner != cfgBefore.Owner ||
		cfgAfter.PoolFunds.Cmp(cfgBefore.PoolFunds) != 0 {
		t.Fatalf("config changed across upgrade: before=%+v after=%+v", cfgBefore, cfgAfter)
	}
	if exempt, _ := f.engine.IsTaxExempt(bob); !exempt {
		t.Fatalf("exemptions lost across upgrade")
	}
	if !f.engine.HasRole(access.RoleRootAdmin, admin) || !f.engine.HasRole(access.RoleRewardManager, manager) {
		t.Fatalf("roles lost across upgrade")
	}
	// The new logic serves transfers with the same tax semantics.
	if err := f.engine.Transfer(alice, carol, units(10)); err != nil {
		t.Fatalf("transfer after upgrade: %v", err)
	}
	f.requireBalance(carol, tenths(98))
	f.requireSupplyConserved()
}

func TestAuthorizeUpgradeRejectsIncompatibleLayouts(t *testing.T) {
	f := newFixture(t, 200)
	if err := f.engine.AuthorizeUpgrade(admin, "missing"); !errors.Is(err, ErrUnknownLogic) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected unknown logic, got %v", err)
	}
	base := DefaultLogic().Layout()
	reordered := append([]string(nil), base.Fields...)
	reordered[0], reordered[1] = reordered[1], reordered[0]
	bad := []*upgrade.Manifest{
		{Logic: "grow", Layout: upgrade.Layout{Version: 2, Fields: append(append([]string(nil), base.Fields...), "vesting"), Reserved: base.Reserved}},
		{Logic: "reorder", Layout: upgrade.Layout{Version: 2, Fields: reordered, Reserved: base.Reserved}},
		{Logic: "drop", Layout: upgrade.Layout{Version: 2, Fields: base.Fields[:len(base.Fields)-1], Reserved: base.Reserved + 1}},
	}
	for _, manifest := range bad {
		logic, err := NewManifestLogic(manifest)
		if err != nil {
			t.Fatalf("manifest %s: %v", manifest.Logic, err)
		}
		if err := f.engine.RegisterLogic(logic); err != nil {
			t.Fatalf("register %s: %v", manifest.Logic, err)
		}
		if err := f.engine.AuthorizeUpgrade(admin, manifest.Logic); !errors.Is(err, ErrIncompatibleUpgrade) || !errors.Is(err, ErrInvariantViolation) {
			t.Fatalf("%s: expected incompatible upgrade, got %v", manifest.Logic, err)
		}
	}
	record, _ := f.engine.ActiveLogic()
	if record.Ref != DefaultLogicRef {
		t.Fatalf("rejected upgrade switched logic to %s", record.Ref)
	}
}

func TestRestartRequiresRecordedLogic(t *testing.T) {
	f := newFixture(t, 200)
	base := DefaultLogic().Layout()
	v2 := v2Logic(t, []string{"vesting"}, base.Reserved-1)
	if err := f.engine.RegisterLogic(v2); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.engine.AuthorizeUpgrade(admin, v2.ID()); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	restarted, err := NewEngine(f.engine.State(), engineAcc)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := restarted.Transfer(treasury, alice, units(1)); !errors.Is(err, ErrUnknownLogic) {
		t.Fatalf("expected unresolved logic, got %v", err)
	}
	if err := restarted.RegisterLogic(v2Logic(t, []string{"vesting"}, base.Reserved-1)); err != nil {
		t.Fatalf("register after restart: %v", err)
	}
	if err := restarted.Transfer(treasury, alice, units(1)); err != nil {
		t.Fatalf("transfer after registering logic: %v", err)
	}
}

func TestRoleManagement(t *testing.T) {
	f := newFixture(t, 0)
	if err := f.engine.GrantRole(treasury, access.RoleRewardManager, alice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("owner must not manage roles, got %v", err)
	}
	if err := f.engine.RenounceRole(admin, access.RoleRootAdmin); !errors.Is(err, ErrLastRootAdmin) || !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected last root admin protection, got %v", err)
	}
	if err := f.engine.GrantRole(admin, "ROLE_NOPE", alice); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid role, got %v", err)
	}
	if err := f.engine.GrantRole(admin, access.RoleRootAdmin, bob); err != nil {
		t.Fatalf("grant: %v", err)
	}
	members, err := f.engine.RoleMembers(access.RoleRootAdmin)
	if err != nil || len(members) != 2 {
		t.Fatalf("expected two root admins: %v %v", members, err)
	}
	if err := f.engine.RenounceRole(admin, access.RoleRootAdmin); err != nil {
		t.Fatalf("renounce: %v", err)
	}
	if err := f.engine.AuthorizeUpgrade(admin, DefaultLogicRef); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("renounced admin kept upgrade rights: %v", err)
	}
}

func TestTransferOwnershipMovesOwnerLever(t *testing.T) {
	f := newFixture(t, 0)
	if err := f.engine.TransferOwnership(treasury, carol); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if err := f.engine.SetTaxRate(treasury, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("previous owner kept rights: %v", err)
	}
	if err := f.engine.SetTaxRate(carol, 10); err != nil {
		t.Fatalf("new owner rejected: %v", err)
	}
}

func TestQuoteTax(t *testing.T) {
	f := newFixture(t, 200)
	tax, err := f.engine.QuoteTax(alice, bob, units(10))
	if err != nil || tax.Cmp(tenths(2)) != 0 {
		t.Fatalf("unexpected quote %v %v", tax, err)
	}
	tax, err = f.engine.QuoteTax(treasury, bob, units(10))
	if err != nil || tax.Sign() != 0 {
		t.Fatalf("exempt quote should be zero: %v %v", tax, err)
	}
}
