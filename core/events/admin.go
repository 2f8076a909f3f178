package events

import (
	"math/big"
	"strconv"
	"strings"

	"taxledger/core/types"
)

const (
	TypeInitialized          = "token.initialized"
	TypeOwnershipTransferred = "token.ownership.transferred"
	TypeRoleGranted          = "token.role.granted"
	TypeRoleRevoked          = "token.role.revoked"
	TypeUpgraded             = "token.upgraded"
	TypeAssetRescued         = "token.asset.rescued"
)

type Initialized struct {
	Name      string
	Symbol    string
	Treasury  [20]byte
	Reservoir [20]byte
	Pool      [20]byte
	TaxBps    uint32
	Logic     string
}

func (Initialized) EventType() string { return TypeInitialized }

func (e Initialized) Event() *types.Event {
	return &types.Event{Type: TypeInitialized, Attributes: map[string]string{
		"name":      strings.TrimSpace(e.Name),
		"symbol":    normalizeAsset(e.Symbol),
		"treasury":  formatAccount(e.Treasury),
		"reservoir": formatAccount(e.Reservoir),
		"pool":      formatAccount(e.Pool),
		"taxBps":    strconv.FormatUint(uint64(e.TaxBps), 10),
		"logic":     e.Logic,
	}}
}

type OwnershipTransferred struct {
	Previous [20]byte
	New      [20]byte
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

func (e OwnershipTransferred) Event() *types.Event {
	attrs := map[string]string{"new": formatAccount(e.New)}
	if !zeroBytes(e.Previous[:]) {
		attrs["previous"] = formatAccount(e.Previous)
	}
	return &types.Event{Type: TypeOwnershipTransferred, Attributes: attrs}
}

// RoleGranted and RoleRevoked carry the account whose membership changed and
// the sender that authorised the change.
type RoleGranted struct {
	Role    string
	Account [20]byte
	Sender  [20]byte
}

func (RoleGranted) EventType() string { return TypeRoleGranted }

func (e RoleGranted) Event() *types.Event {
	return roleEvent(TypeRoleGranted, e.Role, e.Account, e.Sender)
}

type RoleRevoked struct {
	Role    string
	Account [20]byte
	Sender  [20]byte
}

func (RoleRevoked) EventType() string { return TypeRoleRevoked }

func (e RoleRevoked) Event() *types.Event {
	return roleEvent(TypeRoleRevoked, e.Role, e.Account, e.Sender)
}

func roleEvent(kind, role string, account, sender [20]byte) *types.Event {
	attrs := map[string]string{
		"role":    strings.TrimSpace(role),
		"account": formatAccount(account),
	}
	if !zeroBytes(sender[:]) {
		attrs["sender"] = formatAccount(sender)
	}
	return &types.Event{Type: kind, Attributes: attrs}
}

// Upgraded records a logic replacement together with the persisted layout
// version the new logic was validated against.
type Upgraded struct {
	Previous      string
	Logic         string
	LayoutVersion uint32
	Sender        [20]byte
}

func (Upgraded) EventType() string { return TypeUpgraded }

func (e Upgraded) Event() *types.Event {
	return &types.Event{Type: TypeUpgraded, Attributes: map[string]string{
		"previous":      e.Previous,
		"logic":         e.Logic,
		"layoutVersion": strconv.FormatUint(uint64(e.LayoutVersion), 10),
		"sender":        formatAccount(e.Sender),
	}}
}

type AssetRescued struct {
	Asset  [20]byte
	To     [20]byte
	Amount *big.Int
}

func (AssetRescued) EventType() string { return TypeAssetRescued }

func (e AssetRescued) Event() *types.Event {
	return &types.Event{Type: TypeAssetRescued, Attributes: map[string]string{
		"asset":  formatAccount(e.Asset),
		"to":     formatAccount(e.To),
		"amount": formatAmount(e.Amount),
	}}
}
