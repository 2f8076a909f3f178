package main

import (
	"fmt"
	"strconv"
	"strings"

	"taxledger/core/types"
)

// opCommand maps a CLI verb onto a signed operation. args lists the
// positional arguments after the key file.
type opCommand struct {
	kind  types.OpType
	args  []string
	build func(args []string) (interface{}, error)
}

var opCommands = map[string]opCommand{
	"transfer": {types.OpTransfer, []string{"to", "amount"}, func(a []string) (interface{}, error) {
		return types.TransferPayload{To: a[0], Amount: a[1]}, nil
	}},
	"approve": {types.OpApprove, []string{"spender", "amount"}, func(a []string) (interface{}, error) {
		return types.ApprovePayload{Spender: a[0], Amount: a[1]}, nil
	}},
	"transfer-from": {types.OpTransferFrom, []string{"from", "to", "amount"}, func(a []string) (interface{}, error) {
		return types.TransferFromPayload{From: a[0], To: a[1], Amount: a[2]}, nil
	}},
	"set-tax-rate": {types.OpSetTaxRate, []string{"bps"}, func(a []string) (interface{}, error) {
		bps, err := strconv.ParseUint(strings.TrimSpace(a[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid bps %q: %w", a[0], err)
		}
		return types.TaxRatePayload{Bps: uint32(bps)}, nil
	}},
	"set-reservoir": {types.OpSetReservoirAddress, []string{"account"}, accountPayload},
	"set-exempt": {types.OpSetTaxExempt, []string{"account", "true|false"}, func(a []string) (interface{}, error) {
		exempt, err := strconv.ParseBool(strings.TrimSpace(a[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid exempt flag %q: %w", a[1], err)
		}
		return types.TaxExemptPayload{Account: a[0], Exempt: exempt}, nil
	}},
	"set-pool": {types.OpSetRewardPool, []string{"account"}, accountPayload},
	"fund-pool": {types.OpFundRewardPool, []string{"amount"}, func(a []string) (interface{}, error) {
		return types.AmountPayload{Amount: a[0]}, nil
	}},
	"withdraw": {types.OpWithdrawFromPool, []string{"to", "amount"}, func(a []string) (interface{}, error) {
		return types.WithdrawPayload{To: a[0], Amount: a[1]}, nil
	}},
	"distribute": {types.OpDistributeReward, []string{"recipient", "amount"}, func(a []string) (interface{}, error) {
		return types.DistributePayload{Recipient: a[0], Amount: a[1]}, nil
	}},
	"distribute-ctx": {types.OpDistributeRewardWithContext, []string{"recipient", "amount", "context"}, func(a []string) (interface{}, error) {
		return types.DistributePayload{Recipient: a[0], Amount: a[1], Context: a[2]}, nil
	}},
	"rescue": {types.OpRescueForeignAsset, []string{"asset", "to", "amount"}, func(a []string) (interface{}, error) {
		return types.RescuePayload{Asset: a[0], To: a[1], Amount: a[2]}, nil
	}},
	"upgrade": {types.OpAuthorizeUpgrade, []string{"logic-ref"}, func(a []string) (interface{}, error) {
		return types.UpgradePayload{LogicRef: a[0]}, nil
	}},
	"grant-role":  {types.OpGrantRole, []string{"role", "account"}, rolePayload},
	"revoke-role": {types.OpRevokeRole, []string{"role", "account"}, rolePayload},
	"renounce-role": {types.OpRenounceRole, []string{"role"}, func(a []string) (interface{}, error) {
		return types.RolePayload{Role: a[0]}, nil
	}},
	"transfer-ownership": {types.OpTransferOwnership, []string{"account"}, accountPayload},
}

func accountPayload(a []string) (interface{}, error) {
	return types.AccountPayload{Account: a[0]}, nil
}

func rolePayload(a []string) (interface{}, error) {
	return types.RolePayload{Role: a[0], Account: a[1]}, nil
}

func (c opCommand) usage(verb string) string {
	return fmt.Sprintf("%s [--nonce N] <keystore> <%s>", verb, strings.Join(c.args, "> <"))
}

// buildOperation assembles the unsigned envelope for verb.
func buildOperation(verb string, nonce uint64, args []string) (*types.Operation, error) {
	cmd, ok := opCommands[verb]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", verb)
	}
	if len(args) != len(cmd.args) {
		return nil, fmt.Errorf("usage: %s", cmd.usage(verb))
	}
	payload, err := cmd.build(args)
	if err != nil {
		return nil, err
	}
	return types.NewOperation(cmd.kind, nonce, payload)
}
