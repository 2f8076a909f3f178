package token

import (
	"math/big"

	"taxledger/core/events"
)

// Approve sets the amount spender may move out of caller's balance.
func (e *Engine) Approve(caller, spender [20]byte, amount *big.Int) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireInitialized(); err != nil {
			return err
		}
		if caller == ([20]byte{}) || spender == ([20]byte{}) {
			return ErrZeroAddress
		}
		if err := validAmount(amount); err != nil {
			return err
		}
		if err := tx.st.SetAllowance(caller, spender, amount); err != nil {
			return err
		}
		tx.emit(events.Approval{Owner: caller, Spender: spender, Amount: new(big.Int).Set(amount)})
		return nil
	})
}

// TransferFrom spends caller's allowance over from's balance. Tax routing and
// the reward pool restriction are the same as for Transfer.
func (e *Engine) TransferFrom(caller, from, to [20]byte, amount *big.Int) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireInitialized(); err != nil {
			return err
		}
		if err := validAmount(amount); err != nil {
			return err
		}
		if from == ([20]byte{}) || to == ([20]byte{}) {
			return ErrZeroAddress
		}
		if err := tx.rejectPoolDebit(from); err != nil {
			return err
		}
		allowance, err := tx.st.Allowance(from, caller)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		if err := tx.st.SetAllowance(from, caller, allowance.Sub(allowance, amount)); err != nil {
			return err
		}
		return tx.route(from, to, amount)
	})
}
