package access

import (
	"errors"
	"fmt"
	"strings"

	"taxledger/core/events"
)

const (
	// RoleRootAdmin manages role membership and authorises logic upgrades.
	RoleRootAdmin = "ROLE_ROOT_ADMIN"
	// RoleRewardManager may spend the reward pool into recipient accounts.
	RoleRewardManager = "ROLE_REWARD_MANAGER"
)

var (
	ErrUnauthorized    = errors.New("access: unauthorized")
	ErrUnknownRole     = errors.New("access: unknown role")
	ErrZeroAccount     = errors.New("access: zero account")
	ErrLastRootAdmin   = errors.New("access: root admin membership cannot become empty")
	ErrOwnerNotDefined = errors.New("access: owner not configured")
)

var knownRoles = map[string]struct{}{
	RoleRootAdmin:     {},
	RoleRewardManager: {},
}

type roleState interface {
	HasRole(role string, addr []byte) bool
	SetRole(role string, addr []byte) (bool, error)
	RemoveRole(role string, addr []byte) (bool, error)
	RoleMembers(role string) ([][]byte, error)
	TokenOwner() ([20]byte, error)
	SetTokenOwner(addr [20]byte) error
}

// Control gates privileged ledger operations. Every check runs before any
// mutation so failed calls leave state untouched.
type Control struct {
	st      roleState
	emitter events.Emitter
}

// New returns a Control bound to the provided state.
func New(st roleState, emitter events.Emitter) *Control {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Control{st: st, emitter: emitter}
}

// NormalizeRole trims and upper-cases a role identifier and rejects roles the
// ledger does not recognise.
func NormalizeRole(role string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(role))
	if _, ok := knownRoles[normalized]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return normalized, nil
}

// Owner returns the operational owner.
func (c *Control) Owner() ([20]byte, error) {
	return c.st.TokenOwner()
}

// HasRole reports role membership.
func (c *Control) HasRole(role string, account [20]byte) bool {
	return c.st.HasRole(role, account[:])
}

// RequireOwner fails with ErrUnauthorized unless caller is the owner.
func (c *Control) RequireOwner(caller [20]byte) error {
	owner, err := c.st.TokenOwner()
	if err != nil {
		return err
	}
	if owner == ([20]byte{}) {
		return ErrOwnerNotDefined
	}
	if caller != owner {
		return ErrUnauthorized
	}
	return nil
}

// RequireRole fails with ErrUnauthorized unless caller holds role.
func (c *Control) RequireRole(role string, caller [20]byte) error {
	if !c.st.HasRole(role, caller[:]) {
		return ErrUnauthorized
	}
	return nil
}

// Bootstrap assigns the initial owner and root admin. It is only used while
// the ledger is being initialized.
func (c *Control) Bootstrap(owner, rootAdmin [20]byte) error {
	if owner == ([20]byte{}) || rootAdmin == ([20]byte{}) {
		return ErrZeroAccount
	}
	if err := c.st.SetTokenOwner(owner); err != nil {
		return err
	}
	c.emitter.Emit(events.OwnershipTransferred{New: owner})
	if _, err := c.st.SetRole(RoleRootAdmin, rootAdmin[:]); err != nil {
		return err
	}
	c.emitter.Emit(events.RoleGranted{Role: RoleRootAdmin, Account: rootAdmin, Sender: rootAdmin})
	return nil
}

// TransferOwnership hands the owner lever to next. Only the current owner may
// call it.
func (c *Control) TransferOwnership(caller, next [20]byte) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}
	if next == ([20]byte{}) {
		return ErrZeroAccount
	}
	if err := c.st.SetTokenOwner(next); err != nil {
		return err
	}
	c.emitter.Emit(events.OwnershipTransferred{Previous: caller, New: next})
	return nil
}

// GrantRole adds account to role. Granting an existing membership succeeds
// without emitting an event.
func (c *Control) GrantRole(caller [20]byte, role string, account [20]byte) error {
	if err := c.RequireRole(RoleRootAdmin, caller); err != nil {
		return err
	}
	normalized, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	if account == ([20]byte{}) {
		return ErrZeroAccount
	}
	changed, err := c.st.SetRole(normalized, account[:])
	if err != nil {
		return err
	}
	if changed {
		c.emitter.Emit(events.RoleGranted{Role: normalized, Account: account, Sender: caller})
	}
	return nil
}

// RevokeRole removes account from role.
func (c *Control) RevokeRole(caller [20]byte, role string, account [20]byte) error {
	if err := c.RequireRole(RoleRootAdmin, caller); err != nil {
		return err
	}
	normalized, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	return c.removeMember(caller, normalized, account)
}

// RenounceRole lets caller drop its own membership.
func (c *Control) RenounceRole(caller [20]byte, role string) error {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	if !c.st.HasRole(normalized, caller[:]) {
		return ErrUnauthorized
	}
	return c.removeMember(caller, normalized, caller)
}

func (c *Control) removeMember(sender [20]byte, role string, account [20]byte) error {
	if !c.st.HasRole(role, account[:]) {
		return nil
	}
	if role == RoleRootAdmin {
		members, err := c.st.RoleMembers(RoleRootAdmin)
		if err != nil {
			return err
		}
		if len(members) <= 1 {
			return ErrLastRootAdmin
		}
	}
	if _, err := c.st.RemoveRole(role, account[:]); err != nil {
		return err
	}
	c.emitter.Emit(events.RoleRevoked{Role: role, Account: account, Sender: sender})
	return nil
}
