package rpc

import (
	"errors"
	"net/http"

	"taxledger/core"
	"taxledger/native/token"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeForbidden      = -32003
	codeDuplicateOp    = -32010
	codeRateLimited    = -32020
	codeInvariant      = -32030
	codeInsufficient   = -32040
	codeExternalCall   = -32050
	codeNotFound       = -32004
)

// ledgerError maps an engine or node error onto a JSON-RPC error and the HTTP
// status written with it.
func ledgerError(err error) (int, *RPCError) {
	rpcErr := &RPCError{Message: err.Error(), Data: token.Category(err)}
	switch {
	case errors.Is(err, core.ErrDuplicateOperation):
		rpcErr.Code = codeDuplicateOp
		rpcErr.Data = "replay"
		return http.StatusConflict, rpcErr
	case errors.Is(err, token.ErrInvalidInput):
		rpcErr.Code = codeInvalidParams
		return http.StatusBadRequest, rpcErr
	case errors.Is(err, token.ErrUnauthorized):
		rpcErr.Code = codeForbidden
		return http.StatusForbidden, rpcErr
	case errors.Is(err, token.ErrInvariantViolation):
		rpcErr.Code = codeInvariant
		return http.StatusConflict, rpcErr
	case errors.Is(err, token.ErrInsufficientFunds):
		rpcErr.Code = codeInsufficient
		return http.StatusBadRequest, rpcErr
	case errors.Is(err, token.ErrExternalCallFailed):
		rpcErr.Code = codeExternalCall
		return http.StatusBadGateway, rpcErr
	default:
		rpcErr.Code = codeServerError
		rpcErr.Message = "internal error"
		rpcErr.Data = nil
		return http.StatusInternalServerError, rpcErr
	}
}
