package events

import (
	"math/big"

	"taxledger/core/types"
)

const (
	// TypeTransfer is emitted for every balance movement between accounts,
	// including the tax leg routed to the reservoir.
	TypeTransfer = "token.transfer"
	// TypeApproval is emitted when an allowance is set or consumed.
	TypeApproval = "token.approval"
)

type Transfer struct {
	Token  string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if token := normalizeAsset(e.Token); token != "" {
		attrs["token"] = token
	}
	if !zeroBytes(e.From[:]) {
		attrs["from"] = formatAccount(e.From)
	}
	attrs["to"] = formatAccount(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

type Approval struct {
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{Type: TypeApproval, Attributes: map[string]string{
		"owner":   formatAccount(e.Owner),
		"spender": formatAccount(e.Spender),
		"amount":  formatAmount(e.Amount),
	}}
}
