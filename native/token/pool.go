package token

import (
	"math/big"

	"taxledger/core/events"
	"taxledger/native/access"
)

// FundRewardPool moves amount from the owner's balance into the reward pool.
// The move is never taxed.
func (e *Engine) FundRewardPool(caller [20]byte, amount *big.Int) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireOwner(caller); err != nil {
			return err
		}
		if err := positiveAmount(amount); err != nil {
			return err
		}
		pool, err := tx.pool()
		if err != nil {
			return err
		}
		if err := tx.move(caller, pool, amount); err != nil {
			return err
		}
		tx.emit(events.RewardPoolFunded{Funder: caller, Pool: pool, Amount: new(big.Int).Set(amount)})
		return nil
	})
}

// DistributeReward pays amount from the reward pool to recipient.
func (e *Engine) DistributeReward(caller, recipient [20]byte, amount *big.Int) error {
	return e.DistributeRewardWithContext(caller, recipient, amount, [32]byte{})
}

// DistributeRewardWithContext pays amount from the reward pool to recipient
// and tags the payout with an opaque activity context.
func (e *Engine) DistributeRewardWithContext(caller, recipient [20]byte, amount *big.Int, activity [32]byte) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireRole(access.RoleRewardManager, caller); err != nil {
			return err
		}
		if recipient == ([20]byte{}) {
			return ErrZeroRecipient
		}
		if err := positiveAmount(amount); err != nil {
			return err
		}
		if err := tx.spendPool(recipient, amount); err != nil {
			return err
		}
		tx.emit(events.RewardDistributed{
			Manager:   caller,
			Recipient: recipient,
			Amount:    new(big.Int).Set(amount),
			Context:   activity,
		})
		return nil
	})
}

// WithdrawFromPool returns amount from the reward pool to to.
func (e *Engine) WithdrawFromPool(caller, to [20]byte, amount *big.Int) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireOwner(caller); err != nil {
			return err
		}
		if to == ([20]byte{}) {
			return ErrZeroAddress
		}
		if err := positiveAmount(amount); err != nil {
			return err
		}
		if err := tx.spendPool(to, amount); err != nil {
			return err
		}
		tx.emit(events.RewardPoolWithdrawn{To: to, Amount: new(big.Int).Set(amount)})
		return nil
	})
}

func (tx *txn) spendPool(to [20]byte, amount *big.Int) error {
	pool, err := tx.pool()
	if err != nil {
		return err
	}
	balance, err := tx.st.Balance(pool)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientPool
	}
	return tx.move(pool, to, amount)
}

// SetRewardPool relocates the reward pool. The entire balance of the current
// pool moves to newPool in the same step, newPool becomes exempt and the old
// pool loses its exemption unless it is the owner or the reservoir. The
// reservoir cannot become the pool.
func (e *Engine) SetRewardPool(caller, newPool [20]byte) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireOwner(caller); err != nil {
			return err
		}
		if newPool == ([20]byte{}) {
			return ErrZeroAddress
		}
		oldPool, err := tx.pool()
		if err != nil {
			return err
		}
		if oldPool == newPool {
			return nil
		}
		cfg, err := tx.st.TaxConfig()
		if err != nil {
			return err
		}
		if err := tx.rejectReservoirPool(cfg.Reservoir, newPool); err != nil {
			return err
		}
		balance, err := tx.st.Balance(oldPool)
		if err != nil {
			return err
		}
		if err := tx.st.SetRewardPool(newPool); err != nil {
			return err
		}
		if err := tx.setExempt(newPool, true); err != nil {
			return err
		}
		if balance.Sign() > 0 {
			if err := tx.move(oldPool, newPool, balance); err != nil {
				return err
			}
		}
		owner, err := tx.st.TokenOwner()
		if err != nil {
			return err
		}
		if oldPool != owner && oldPool != cfg.Reservoir {
			if err := tx.setExempt(oldPool, false); err != nil {
				return err
			}
		}
		tx.emit(events.RewardPoolMigrated{OldPool: oldPool, NewPool: newPool, Amount: balance})
		return nil
	})
}
