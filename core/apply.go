package core

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"taxledger/core/types"
	"taxledger/crypto"
	"taxledger/native/token"
)

// dispatch decodes the envelope payload and routes it to the engine. The
// sender recovered from the signature is the caller of every operation.
func (n *Node) dispatch(sender [20]byte, op *types.Operation) error {
	e := n.engine
	switch op.Type {
	case types.OpTransfer:
		var p types.TransferPayload
		if err := decode(op, &p); err != nil {
			return err
		}
		to, amount, err := accountAndAmount(p.To, p.Amount)
		if err != nil {
			return err
		}
		return e.Transfer(sender, to, amount)

	case types.OpApprove:
		var p types.ApprovePayload
		if err := decode(op, &p); err != nil {
			return err
		}
		spender, amount, err := accountAndAmount(p.Spender, p.Amount)
		if err != nil {
			return err
		}
		return e.Approve(sender, spender, amount)

	case types.OpTransferFrom:
		var p types.TransferFromPayload
		if err := decode(op, &p); err != nil {
			return err
		}
		from, err := parseAccount(p.From)
		if err != nil {
			return err
		}
		to, amount, err := accountAndAmount(p.To, p.Amount)
		if err != nil {
			return err
		}
		return e.TransferFrom(sender, from, to, amount)

	case types.OpSetTaxRate:
		var p types.TaxRatePayload
		if err := decode(op, &p); err != nil {
			return err
		}
		return e.SetTaxRate(sender, p.Bps)

	case types.OpSetReservoirAddress:
		account, err := decodeAccount(op)
		if err != nil {
			return err
		}
		return e.SetReservoirAddress(sender, account)

	case types.OpSetTaxExempt:
		var p types.TaxExemptPayload
		if err := decode(op, &p); err != nil {
			return err
		}
		account, err := parseAccount(p.Account)
		if err != nil {
			return err
		}
		return e.SetTaxExempt(sender, account, p.Exempt)

	case types.OpSetRewardPool:
		account, err := decodeAccount(op)
		if err != nil {
			return err
		}
		return e.SetRewardPool(sender, account)

	case types.OpFundRewardPool:
		var p types.AmountPayload
		if err := decode(op, &p); err != nil {
			return err
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return err
		}
		return e.FundRewardPool(sender, amount)

	case types.OpWithdrawFromPool:
		var p types.WithdrawPayload
		if err := decode(op, &p); err != nil {
			return err
		}
		to, amount, err := accountAndAmount(p.To, p.Amount)
		if err != nil {
			return err
		}
		return e.WithdrawFromPool(sender, to, amount)

	case types.OpDistributeReward, types.OpDistributeRewardWithContext:
		var p types.DistributePayload
		if err := decode(op, &p); err != nil {
			return err
		}
		recipient, amount, err := accountAndAmount(p.Recipient, p.Amount)
		if err != nil {
			return err
		}
		if op.Type == types.OpDistributeReward {
			return e.DistributeReward(sender, recipient, amount)
		}
		activity, err := parseContext(p.Context)
		if err != nil {
			return err
		}
		return e.DistributeRewardWithContext(sender, recipient, amount, activity)

	case types.OpRescueForeignAsset:
		var p types.RescuePayload
		if err := decode(op, &p); err != nil {
			return err
		}
		asset, err := parseAccount(p.Asset)
		if err != nil {
			return err
		}
		to, amount, err := accountAndAmount(p.To, p.Amount)
		if err != nil {
			return err
		}
		return e.RescueForeignAsset(sender, asset, to, amount)

	case types.OpAuthorizeUpgrade:
		var p types.UpgradePayload
		if err := decode(op, &p); err != nil {
			return err
		}
		return e.AuthorizeUpgrade(sender, p.LogicRef)

	case types.OpGrantRole, types.OpRevokeRole:
		var p types.RolePayload
		if err := decode(op, &p); err != nil {
			return err
		}
		account, err := parseAccount(p.Account)
		if err != nil {
			return err
		}
		if op.Type == types.OpGrantRole {
			return e.GrantRole(sender, p.Role, account)
		}
		return e.RevokeRole(sender, p.Role, account)

	case types.OpRenounceRole:
		var p types.RolePayload
		if err := decode(op, &p); err != nil {
			return err
		}
		return e.RenounceRole(sender, p.Role)

	case types.OpTransferOwnership:
		account, err := decodeAccount(op)
		if err != nil {
			return err
		}
		return e.TransferOwnership(sender, account)

	default:
		return fmt.Errorf("%w: unsupported operation %q", token.ErrInvalidInput, op.Type)
	}
}

func decode(op *types.Operation, dst interface{}) error {
	if err := op.DecodePayload(dst); err != nil {
		return fmt.Errorf("%w: %w", token.ErrInvalidInput, err)
	}
	return nil
}

func decodeAccount(op *types.Operation) ([20]byte, error) {
	var p types.AccountPayload
	if err := decode(op, &p); err != nil {
		return [20]byte{}, err
	}
	return parseAccount(p.Account)
}

func parseAccount(value string) ([20]byte, error) {
	addr, err := crypto.ParseAccount(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: account %q: %v", token.ErrInvalidInput, value, err)
	}
	return addr, nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", token.ErrInvalidAmount, value)
	}
	return amount, nil
}

func accountAndAmount(account, amount string) ([20]byte, *big.Int, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return [20]byte{}, nil, err
	}
	value, err := parseAmount(amount)
	if err != nil {
		return [20]byte{}, nil, err
	}
	return addr, value, nil
}

// parseContext decodes a 0x-prefixed 32-byte activity identifier.
func parseContext(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != len(out) {
		return out, token.ErrInvalidContext
	}
	copy(out[:], raw)
	return out, nil
}

func accountString(addr [20]byte) string {
	return crypto.AccountString(addr)
}
