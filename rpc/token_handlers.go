package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"taxledger/core/journal"
	"taxledger/core/types"
	"taxledger/crypto"
)

func (s *Server) handleSubmit(ctx context.Context, req *RPCRequest) (interface{}, *failure) {
	if len(req.Params) != 1 {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "signed operation parameter required", nil)
	}
	op, err := types.DecodeOperation(req.Params[0])
	if err != nil {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "invalid operation format", err.Error())
	}
	res, err := s.ledger.Apply(ctx, op)
	if err != nil {
		return nil, failWith(err)
	}
	out := SubmitResult{
		Hash:      res.Hash,
		Type:      string(res.Kind),
		Sender:    crypto.AccountString(res.Sender),
		StateRoot: res.StateRoot.Hex(),
		Events:    make([]EventResult, 0, len(res.Events)),
	}
	for _, rec := range res.Events {
		evt, err := eventResult(rec)
		if err != nil {
			return nil, failWith(err)
		}
		out.Events = append(out.Events, evt)
	}
	return out, nil
}

func (s *Server) handleBalance(_ context.Context, req *RPCRequest) (interface{}, *failure) {
	accounts, failed := accountParams(req, 1)
	if failed != nil {
		return nil, failed
	}
	balance, err := s.ledger.Balance(accounts[0])
	if err != nil {
		return nil, failWith(err)
	}
	return BalanceResult{Account: crypto.AccountString(accounts[0]), Balance: balance.String()}, nil
}

func (s *Server) handleAllowance(_ context.Context, req *RPCRequest) (interface{}, *failure) {
	accounts, failed := accountParams(req, 2)
	if failed != nil {
		return nil, failed
	}
	allowance, err := s.ledger.Allowance(accounts[0], accounts[1])
	if err != nil {
		return nil, failWith(err)
	}
	return AllowanceResult{
		Owner:     crypto.AccountString(accounts[0]),
		Spender:   crypto.AccountString(accounts[1]),
		Allowance: allowance.String(),
	}, nil
}

func (s *Server) handleConfig(_ context.Context, _ *RPCRequest) (interface{}, *failure) {
	if !s.ledger.Initialized() {
		return ConfigResult{Initialized: false}, nil
	}
	cfg, err := s.ledger.Config()
	if err != nil {
		return nil, failWith(err)
	}
	return ConfigResult{
		Initialized:   true,
		Name:          cfg.Name,
		Symbol:        cfg.Symbol,
		Decimals:      cfg.Decimals,
		TaxBps:        cfg.TaxBps,
		Reservoir:     crypto.AccountString(cfg.Reservoir),
		RewardPool:    crypto.AccountString(cfg.Pool),
		PoolFunds:     amountString(cfg.PoolFunds),
		Owner:         crypto.AccountString(cfg.Owner),
		Logic:         cfg.Logic,
		LayoutVersion: cfg.LayoutVersion,
	}, nil
}

func (s *Server) handleIsTaxExempt(_ context.Context, req *RPCRequest) (interface{}, *failure) {
	accounts, failed := accountParams(req, 1)
	if failed != nil {
		return nil, failed
	}
	exempt, err := s.ledger.IsTaxExempt(accounts[0])
	if err != nil {
		return nil, failWith(err)
	}
	return exempt, nil
}

func (s *Server) handleQuoteTax(_ context.Context, req *RPCRequest) (interface{}, *failure) {
	if len(req.Params) != 3 {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "expected from, to and amount", nil)
	}
	accounts, failed := parseAccounts(req.Params[:2])
	if failed != nil {
		return nil, failed
	}
	var raw string
	if err := json.Unmarshal(req.Params[2], &raw); err != nil {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "amount must be a string", err.Error())
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "amount must be a non-negative integer", raw)
	}
	tax, err := s.ledger.QuoteTax(accounts[0], accounts[1], amount)
	if err != nil {
		return nil, failWith(err)
	}
	return QuoteResult{
		Amount: amount.String(),
		Tax:    tax.String(),
		Net:    new(big.Int).Sub(amount, tax).String(),
	}, nil
}

func (s *Server) handleHasRole(_ context.Context, req *RPCRequest) (interface{}, *failure) {
	if len(req.Params) != 2 {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "expected role and account", nil)
	}
	role, failed := stringParam(req.Params[0], "role")
	if failed != nil {
		return nil, failed
	}
	accounts, failed := parseAccounts(req.Params[1:])
	if failed != nil {
		return nil, failed
	}
	return s.ledger.HasRole(role, accounts[0]), nil
}

func (s *Server) handleRoleMembers(_ context.Context, req *RPCRequest) (interface{}, *failure) {
	if len(req.Params) != 1 {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "expected role", nil)
	}
	role, failed := stringParam(req.Params[0], "role")
	if failed != nil {
		return nil, failed
	}
	members, err := s.ledger.RoleMembers(role)
	if err != nil {
		return nil, failWith(err)
	}
	out := make([]string, 0, len(members))
	for _, member := range members {
		out = append(out, crypto.AccountString(member))
	}
	return out, nil
}

func (s *Server) handleEvents(ctx context.Context, req *RPCRequest) (interface{}, *failure) {
	params := EventsParams{}
	if len(req.Params) > 1 {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "expected at most one parameter object", nil)
	}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			return nil, fail(http.StatusBadRequest, codeInvalidParams, "invalid events filter", err.Error())
		}
	}
	records, err := s.ledger.Events(ctx, params.After, params.Limit, params.Type)
	if err != nil {
		return nil, failWith(err)
	}
	out := make([]EventResult, 0, len(records))
	for _, rec := range records {
		evt, err := eventResult(rec)
		if err != nil {
			return nil, failWith(err)
		}
		out = append(out, evt)
	}
	return out, nil
}

func (s *Server) handleReceipt(ctx context.Context, req *RPCRequest) (interface{}, *failure) {
	if len(req.Params) != 1 {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "expected operation hash", nil)
	}
	hash, failed := stringParam(req.Params[0], "hash")
	if failed != nil {
		return nil, failed
	}
	receipt, err := s.ledger.Receipt(ctx, strings.ToLower(hash))
	if errors.Is(err, journal.ErrReceiptNotFound) {
		return nil, fail(http.StatusNotFound, codeNotFound, "receipt not found", hash)
	}
	if err != nil {
		return nil, failWith(err)
	}
	return ReceiptResult{
		Hash:       receipt.OpHash,
		Type:       receipt.Kind,
		Sender:     receipt.Sender,
		Nonce:      receipt.Nonce,
		StateRoot:  receipt.StateRoot,
		EventCount: receipt.EventCount,
		Timestamp:  receipt.CreatedAt.Unix(),
	}, nil
}

func eventResult(rec journal.EventRecord) (EventResult, error) {
	evt, err := rec.Decode()
	if err != nil {
		return EventResult{}, err
	}
	return EventResult{
		Sequence:   rec.Sequence,
		OpHash:     rec.OpHash,
		Type:       evt.Type,
		Attributes: evt.Attributes,
		Timestamp:  rec.CreatedAt.Unix(),
	}, nil
}

func stringParam(raw json.RawMessage, name string) (string, *failure) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fail(http.StatusBadRequest, codeInvalidParams, name+" must be a string", err.Error())
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fail(http.StatusBadRequest, codeInvalidParams, name+" required", nil)
	}
	return value, nil
}

func accountParams(req *RPCRequest, want int) ([][20]byte, *failure) {
	if len(req.Params) != want {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "unexpected parameter count", len(req.Params))
	}
	return parseAccounts(req.Params)
}

func parseAccounts(params []json.RawMessage) ([][20]byte, *failure) {
	out := make([][20]byte, 0, len(params))
	for _, raw := range params {
		value, failed := stringParam(raw, "account")
		if failed != nil {
			return nil, failed
		}
		addr, err := crypto.ParseAccount(value)
		if err != nil {
			return nil, fail(http.StatusBadRequest, codeInvalidParams, "invalid account", err.Error())
		}
		out = append(out, addr)
	}
	return out, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
