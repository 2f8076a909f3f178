package access

import (
	"errors"
	"testing"

	"taxledger/core/events"
	"taxledger/core/state"
	"taxledger/storage"
	"taxledger/storage/trie"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func testAccount(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func newTestControl(t *testing.T) (*Control, *capturingEmitter) {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	emitter := &capturingEmitter{}
	ctl := New(state.NewManager(tr), emitter)
	if err := ctl.Bootstrap(testAccount(1), testAccount(2)); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	emitter.events = nil
	return ctl, emitter
}

func TestRequireOwner(t *testing.T) {
	ctl, _ := newTestControl(t)
	if err := ctl.RequireOwner(testAccount(1)); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if err := ctl.RequireOwner(testAccount(2)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestGrantRoleRequiresRootAdmin(t *testing.T) {
	ctl, emitter := newTestControl(t)
	manager := testAccount(3)
	if err := ctl.GrantRole(testAccount(1), RoleRewardManager, manager); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("owner must not grant roles, got %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("failed grant emitted events")
	}
	if err := ctl.GrantRole(testAccount(2), "role_reward_manager", manager); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !ctl.HasRole(RoleRewardManager, manager) {
		t.Fatalf("expected membership")
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeRoleGranted {
		t.Fatalf("expected one grant event, got %d", len(emitter.events))
	}
	if err := ctl.GrantRole(testAccount(2), "ROLE_UNKNOWN", manager); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
}

func TestLastRootAdminProtected(t *testing.T) {
	ctl, _ := newTestControl(t)
	root := testAccount(2)
	if err := ctl.RenounceRole(root, RoleRootAdmin); !errors.Is(err, ErrLastRootAdmin) {
		t.Fatalf("expected last admin error, got %v", err)
	}
	if err := ctl.RevokeRole(root, RoleRootAdmin, root); !errors.Is(err, ErrLastRootAdmin) {
		t.Fatalf("expected last admin error, got %v", err)
	}
	second := testAccount(4)
	if err := ctl.GrantRole(root, RoleRootAdmin, second); err != nil {
		t.Fatalf("grant second admin: %v", err)
	}
	if err := ctl.RenounceRole(root, RoleRootAdmin); err != nil {
		t.Fatalf("renounce with second admin present: %v", err)
	}
	if ctl.HasRole(RoleRootAdmin, root) {
		t.Fatalf("renounced admin retained role")
	}
}

func TestTransferOwnership(t *testing.T) {
	ctl, emitter := newTestControl(t)
	if err := ctl.TransferOwnership(testAccount(2), testAccount(5)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := ctl.TransferOwnership(testAccount(1), [20]byte{}); !errors.Is(err, ErrZeroAccount) {
		t.Fatalf("expected zero account error, got %v", err)
	}
	if err := ctl.TransferOwnership(testAccount(1), testAccount(5)); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	owner, _ := ctl.Owner()
	if owner != testAccount(5) {
		t.Fatalf("owner not updated")
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeOwnershipTransferred {
		t.Fatalf("expected ownership event")
	}
}
