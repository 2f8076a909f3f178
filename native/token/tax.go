package token

import (
	"math/big"

	"taxledger/core/events"
)

// route moves amount from -> to through the tax router. No tax applies when
// the rate is zero, either side is exempt or the zero address, or the computed
// tax truncates to zero.
func (tx *txn) route(from, to [20]byte, amount *big.Int) error {
	if err := tx.rejectPoolCredit(to); err != nil {
		return err
	}
	tax, err := tx.taxFor(from, to, amount)
	if err != nil {
		return err
	}
	if tax.Sign() == 0 {
		return tx.move(from, to, amount)
	}
	cfg, err := tx.st.TaxConfig()
	if err != nil {
		return err
	}
	net := new(big.Int).Sub(amount, tax)
	if err := tx.debit(from, amount); err != nil {
		return err
	}
	if err := tx.credit(cfg.Reservoir, tax); err != nil {
		return err
	}
	if err := tx.credit(to, net); err != nil {
		return err
	}
	tx.emit(events.Transfer{Token: tx.symbol, From: from, To: to, Amount: net})
	tx.emit(events.Transfer{Token: tx.symbol, From: from, To: cfg.Reservoir, Amount: new(big.Int).Set(tax)})
	tx.emit(events.TaxCollected{From: from, To: to, Gross: new(big.Int).Set(amount), Tax: tax})
	return nil
}

func (tx *txn) taxFor(from, to [20]byte, amount *big.Int) (*big.Int, error) {
	zero := big.NewInt(0)
	if from == ([20]byte{}) || to == ([20]byte{}) || amount.Sign() == 0 {
		return zero, nil
	}
	cfg, err := tx.st.TaxConfig()
	if err != nil {
		return nil, err
	}
	if cfg.RateBps == 0 {
		return zero, nil
	}
	for _, acct := range [][20]byte{from, to} {
		exempt, err := tx.st.IsTaxExempt(acct)
		if err != nil {
			return nil, err
		}
		if exempt {
			return zero, nil
		}
	}
	return tx.logic.ComputeTax(amount, cfg.RateBps)
}

// QuoteTax returns the tax a transfer of amount from -> to would pay under the
// current configuration.
func (e *Engine) QuoteTax(from, to [20]byte, amount *big.Int) (*big.Int, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if e.logic == nil {
		return nil, ErrUnknownLogic
	}
	tx, err := newTxn(e, e.st, nil)
	if err != nil {
		return nil, err
	}
	return tx.taxFor(from, to, amount)
}

// SetTaxRate updates the transfer tax. Rates above MaxTaxBps are rejected.
func (e *Engine) SetTaxRate(caller [20]byte, bps uint32) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireOwner(caller); err != nil {
			return err
		}
		if bps > MaxTaxBps {
			return ErrTaxRateTooHigh
		}
		cfg, err := tx.st.TaxConfig()
		if err != nil {
			return err
		}
		old := cfg.RateBps
		cfg.RateBps = bps
		if err := tx.st.SetTaxConfig(cfg); err != nil {
			return err
		}
		tx.emit(events.TaxRateUpdated{OldBps: old, NewBps: bps})
		return nil
	})
}

// SetReservoirAddress changes the account receiving collected tax and exempts
// it. The reward pool cannot serve as reservoir.
func (e *Engine) SetReservoirAddress(caller, reservoir [20]byte) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireOwner(caller); err != nil {
			return err
		}
		if reservoir == ([20]byte{}) {
			return ErrZeroAddress
		}
		pool, err := tx.pool()
		if err != nil {
			return err
		}
		if err := tx.rejectReservoirPool(reservoir, pool); err != nil {
			return err
		}
		cfg, err := tx.st.TaxConfig()
		if err != nil {
			return err
		}
		old := cfg.Reservoir
		cfg.Reservoir = reservoir
		if err := tx.st.SetTaxConfig(cfg); err != nil {
			return err
		}
		if err := tx.setExempt(reservoir, true); err != nil {
			return err
		}
		tx.emit(events.ReservoirUpdated{Old: old, New: reservoir})
		return nil
	})
}
