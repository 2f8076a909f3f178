package core

import (
	"context"
	"math/big"

	"taxledger/core/journal"
	"taxledger/core/state"
	"taxledger/native/token"
)

// Read-only views over the committed ledger. Each call takes the node lock so
// it never observes an operation half way through.

func (n *Node) Initialized() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Initialized()
}

func (n *Node) Config() (*token.Config, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Config()
}

func (n *Node) Balance(account [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.BalanceOf(account)
}

func (n *Node) TotalSupply() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.TotalSupply()
}

func (n *Node) Allowance(owner, spender [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Allowance(owner, spender)
}

func (n *Node) IsTaxExempt(account [20]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.IsTaxExempt(account)
}

// QuoteTax returns the tax a transfer of amount from one account to another
// would pay under the current configuration.
func (n *Node) QuoteTax(from, to [20]byte, amount *big.Int) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.QuoteTax(from, to, amount)
}

func (n *Node) HasRole(role string, account [20]byte) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.HasRole(role, account)
}

func (n *Node) RoleMembers(role string) ([][20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.RoleMembers(role)
}

func (n *Node) ActiveLogic() (*state.LogicRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.ActiveLogic()
}

func (n *Node) RescuedAmount(asset [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.RescuedAmount(asset)
}

// Events pages through the journaled events after the given sequence.
func (n *Node) Events(ctx context.Context, after uint64, limit int, eventType string) ([]journal.EventRecord, error) {
	return n.journal.Events(ctx, after, limit, eventType)
}

// Receipt returns the journal receipt for an applied operation hash.
func (n *Node) Receipt(ctx context.Context, hash string) (*journal.Receipt, error) {
	return n.journal.Receipt(ctx, hash)
}
