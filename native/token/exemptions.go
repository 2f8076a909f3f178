package token

import "taxledger/core/events"

func (tx *txn) requireOwner(caller [20]byte) error {
	if err := tx.requireInitialized(); err != nil {
		return err
	}
	return classifyAccess(tx.access.RequireOwner(caller))
}

func (tx *txn) requireRole(role string, caller [20]byte) error {
	if err := tx.requireInitialized(); err != nil {
		return err
	}
	return classifyAccess(tx.access.RequireRole(role, caller))
}

// setExempt updates membership and always records the change.
func (tx *txn) setExempt(account [20]byte, exempt bool) error {
	if err := tx.st.SetTaxExempt(account, exempt); err != nil {
		return err
	}
	tx.emit(events.ExemptionUpdated{Account: account, Exempt: exempt})
	return nil
}

// SetTaxExempt adds or removes account from the exemption set. An event is
// emitted even when membership does not change.
func (e *Engine) SetTaxExempt(caller, account [20]byte, exempt bool) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireOwner(caller); err != nil {
			return err
		}
		if account == ([20]byte{}) {
			return ErrZeroAddress
		}
		return tx.setExempt(account, exempt)
	})
}
