package token

import (
	"math/big"
	"strings"

	"taxledger/core/events"
	"taxledger/core/state"
	"taxledger/native/access"
)

// txn is the working set of one engine call. Balance changes go through
// credit and debit so the net supply delta can be checked before commit.
type txn struct {
	st          *state.Manager
	emitter     events.Emitter
	access      *access.Control
	logic       Logic
	nextLogic   Logic
	engine      [20]byte
	symbol      string
	initialized bool

	delta      *big.Int
	supplyBase *big.Int
}

func newTxn(e *Engine, st *state.Manager, emitter events.Emitter) (*txn, error) {
	meta, ok, err := st.TokenMetadata()
	if err != nil {
		return nil, err
	}
	supply, err := st.TotalSupply()
	if err != nil {
		return nil, err
	}
	tx := &txn{
		st:          st,
		emitter:     emitter,
		access:      access.New(st, emitter),
		logic:       e.logic,
		engine:      e.address,
		initialized: ok,
		delta:       new(big.Int),
		supplyBase:  supply,
	}
	if ok {
		tx.symbol = meta.Symbol
	}
	return tx, nil
}

func (tx *txn) emit(evt events.Event) {
	tx.emitter.Emit(evt)
}

func (tx *txn) requireInitialized() error {
	if !tx.initialized {
		return ErrNotInitialized
	}
	return nil
}

// checkSupply verifies the net balance change equals the recorded supply
// change. Only initialization moves the recorded supply.
func (tx *txn) checkSupply() error {
	supply, err := tx.st.TotalSupply()
	if err != nil {
		return err
	}
	expected := new(big.Int).Sub(supply, tx.supplyBase)
	if expected.Cmp(tx.delta) != 0 {
		return ErrSupplyChanged
	}
	return nil
}

func (tx *txn) credit(addr [20]byte, amount *big.Int) error {
	if addr == ([20]byte{}) {
		return ErrZeroAddress
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := tx.st.Balance(addr)
	if err != nil {
		return err
	}
	if err := tx.st.SetBalance(addr, balance.Add(balance, amount)); err != nil {
		return err
	}
	tx.delta.Add(tx.delta, amount)
	return nil
}

func (tx *txn) debit(addr [20]byte, amount *big.Int) error {
	if addr == ([20]byte{}) {
		return ErrZeroAddress
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := tx.st.Balance(addr)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := tx.st.SetBalance(addr, balance.Sub(balance, amount)); err != nil {
		return err
	}
	tx.delta.Sub(tx.delta, amount)
	return nil
}

// move debits from and credits to without tax and emits a transfer event.
func (tx *txn) move(from, to [20]byte, amount *big.Int) error {
	if err := tx.debit(from, amount); err != nil {
		return err
	}
	if err := tx.credit(to, amount); err != nil {
		return err
	}
	tx.emit(events.Transfer{Token: tx.symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (tx *txn) pool() ([20]byte, error) {
	return tx.st.RewardPool()
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func positiveAmount(amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return ErrZeroAmount
	}
	return nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// Transfer moves amount from caller to to, applying the transfer tax unless
// either side is exempt. The reward pool account cannot send plain transfers.
func (e *Engine) Transfer(caller, to [20]byte, amount *big.Int) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireInitialized(); err != nil {
			return err
		}
		if err := validAmount(amount); err != nil {
			return err
		}
		if to == ([20]byte{}) || caller == ([20]byte{}) {
			return ErrZeroAddress
		}
		if err := tx.rejectPoolDebit(caller); err != nil {
			return err
		}
		return tx.route(caller, to, amount)
	})
}

// lockedPool reports whether acct is the reward pool and the pool is not the
// owner. A locked pool only moves through funding, distribution, withdrawal
// and migration.
func (tx *txn) lockedPool(acct [20]byte) (bool, error) {
	pool, err := tx.pool()
	if err != nil {
		return false, err
	}
	if acct != pool {
		return false, nil
	}
	owner, err := tx.st.TokenOwner()
	if err != nil {
		return false, err
	}
	return acct != owner, nil
}

// rejectPoolDebit stops plain transfers out of the reward pool. The owner is
// let through when it doubles as the pool since it may withdraw anyway.
func (tx *txn) rejectPoolDebit(from [20]byte) error {
	locked, err := tx.lockedPool(from)
	if err != nil {
		return err
	}
	if locked {
		return ErrPoolTransfer
	}
	return nil
}

// rejectPoolCredit stops plain transfers into the reward pool. Deposits go
// through FundRewardPool.
func (tx *txn) rejectPoolCredit(to [20]byte) error {
	locked, err := tx.lockedPool(to)
	if err != nil {
		return err
	}
	if locked {
		return ErrPoolDeposit
	}
	return nil
}

// rejectReservoirPool keeps the reservoir and the reward pool apart so tax
// never lands in the pool.
func (tx *txn) rejectReservoirPool(reservoir, pool [20]byte) error {
	if reservoir == pool {
		return ErrPoolReservoir
	}
	return nil
}
