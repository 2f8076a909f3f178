package token

import (
	"errors"
	"fmt"

	"taxledger/core/events"
	"taxledger/core/state"
	"taxledger/native/access"
	"taxledger/native/upgrade"
)

// TransferOwnership hands the owner lever to next.
func (e *Engine) TransferOwnership(caller, next [20]byte) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireInitialized(); err != nil {
			return err
		}
		return classifyAccess(tx.access.TransferOwnership(caller, next))
	})
}

// GrantRole adds account to role. Only root admins may grant.
func (e *Engine) GrantRole(caller [20]byte, role string, account [20]byte) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireInitialized(); err != nil {
			return err
		}
		return classifyAccess(tx.access.GrantRole(caller, role, account))
	})
}

// RevokeRole removes account from role. The last root admin cannot be removed.
func (e *Engine) RevokeRole(caller [20]byte, role string, account [20]byte) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireInitialized(); err != nil {
			return err
		}
		return classifyAccess(tx.access.RevokeRole(caller, role, account))
	})
}

// RenounceRole drops caller's own membership.
func (e *Engine) RenounceRole(caller [20]byte, role string) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireInitialized(); err != nil {
			return err
		}
		return classifyAccess(tx.access.RenounceRole(caller, role))
	})
}

// AuthorizeUpgrade switches the active logic to logicRef. The new logic must
// be registered and its layout must only append to the stored layout. No
// ledger value is touched; the switch takes effect when the call commits.
func (e *Engine) AuthorizeUpgrade(caller [20]byte, logicRef string) error {
	return e.execute(func(tx *txn) error {
		if err := tx.requireRole(access.RoleRootAdmin, caller); err != nil {
			return err
		}
		next, err := e.logics.Lookup(logicRef)
		if err != nil {
			if errors.Is(err, upgrade.ErrUnknownLogic) {
				return fmt.Errorf("%w: %s", ErrUnknownLogic, logicRef)
			}
			return err
		}
		record, ok, err := tx.st.LogicRecord()
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInitialized
		}
		current := upgrade.Layout{Version: record.Version, Fields: record.Fields, Reserved: record.Reserved}
		layout := next.Layout()
		if err := upgrade.CheckCompatible(current, layout); err != nil {
			return fmt.Errorf("%w: %v", ErrIncompatibleUpgrade, err)
		}
		if err := tx.st.SetLogicRecord(&state.LogicRecord{
			Ref:      next.ID(),
			Version:  layout.Version,
			Fields:   layout.Fields,
			Reserved: layout.Reserved,
		}); err != nil {
			return err
		}
		tx.nextLogic = next
		tx.emit(events.Upgraded{
			Previous:      record.Ref,
			Logic:         next.ID(),
			LayoutVersion: layout.Version,
			Sender:        caller,
		})
		return nil
	})
}
