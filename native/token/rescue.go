package token

import (
	"fmt"
	"math/big"

	"taxledger/core/events"
)

// RescueForeignAsset releases amount of a foreign asset held by the engine's
// account to to.
//
// Checks and state effects are committed before the foreign ledger is called,
// so a call back into the engine from that ledger observes the updated state.
// If the foreign transfer fails the engine returns to the state it had before
// the rescue, including anything a nested call committed, and no events from
// the rescue are published.
func (e *Engine) RescueForeignAsset(caller, asset, to [20]byte, amount *big.Int) error {
	snapshot, logic := e.st, e.logic
	outer := e.pending
	rescueEvents := &events.Buffer{}
	e.pending = rescueEvents
	defer func() { e.pending = outer }()

	var target ForeignAsset
	err := e.execute(func(tx *txn) error {
		if err := tx.requireOwner(caller); err != nil {
			return err
		}
		if asset == ([20]byte{}) || to == ([20]byte{}) {
			return ErrZeroAddress
		}
		if asset == e.address {
			return ErrSelfRescue
		}
		if err := positiveAmount(amount); err != nil {
			return err
		}
		var ok bool
		if e.assets != nil {
			target, ok = e.assets(asset)
		}
		if !ok || target == nil {
			return ErrUnknownAsset
		}
		rescued, err := tx.st.RescuedAmount(asset)
		if err != nil {
			return err
		}
		if err := tx.st.SetRescuedAmount(asset, rescued.Add(rescued, amount)); err != nil {
			return err
		}
		tx.emit(events.AssetRescued{Asset: asset, To: to, Amount: new(big.Int).Set(amount)})
		return nil
	})
	if err != nil {
		return err
	}

	if callErr := target.Transfer(to, new(big.Int).Set(amount)); callErr != nil {
		e.st, e.logic = snapshot, logic
		rescueEvents.Reset()
		return fmt.Errorf("%w: %v", ErrExternalCallFailed, callErr)
	}
	e.pending = outer
	rescueEvents.Flush(e.sink())
	return nil
}
