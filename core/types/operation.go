package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// OpType names the ledger operation carried by a signed envelope.
type OpType string

const (
	OpTransfer                    OpType = "transfer"
	OpApprove                     OpType = "approve"
	OpTransferFrom                OpType = "transferFrom"
	OpSetTaxRate                  OpType = "setTaxRate"
	OpSetReservoirAddress         OpType = "setReservoirAddress"
	OpSetTaxExempt                OpType = "setTaxExempt"
	OpSetRewardPool               OpType = "setRewardPool"
	OpFundRewardPool              OpType = "fundRewardPool"
	OpWithdrawFromPool            OpType = "withdrawFromPool"
	OpDistributeReward            OpType = "distributeReward"
	OpDistributeRewardWithContext OpType = "distributeRewardWithContext"
	OpRescueForeignAsset          OpType = "rescueForeignAsset"
	OpAuthorizeUpgrade            OpType = "authorizeUpgrade"
	OpGrantRole                   OpType = "grantRole"
	OpRevokeRole                  OpType = "revokeRole"
	OpRenounceRole                OpType = "renounceRole"
	OpTransferOwnership           OpType = "transferOwnership"
)

// ErrInvalidOperation is returned when an envelope cannot be decoded.
var ErrInvalidOperation = errors.New("invalid operation payload")

// Operation is a signed request to execute one ledger operation. The caller is
// recovered from the signature rather than trusted from the payload.
type Operation struct {
	Type    OpType          `json:"type"`
	Nonce   uint64          `json:"nonce"`
	Payload json.RawMessage `json:"payload,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *[20]byte
}

// Hash covers the type, nonce and payload but not the signature.
func (op *Operation) Hash() ([]byte, error) {
	body := struct {
		Type    OpType
		Nonce   uint64
		Payload json.RawMessage
	}{op.Type, op.Nonce, op.Payload}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

func (op *Operation) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := op.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	op.R = new(big.Int).SetBytes(sig[:32])
	op.S = new(big.Int).SetBytes(sig[32:64])
	op.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	op.from = nil
	return nil
}

// From recovers the signing account.
func (op *Operation) From() ([20]byte, error) {
	if op.from != nil {
		return *op.from, nil
	}
	if op.R == nil || op.S == nil || op.V == nil {
		return [20]byte{}, fmt.Errorf("%w: missing signature", ErrInvalidOperation)
	}
	hash, err := op.Hash()
	if err != nil {
		return [20]byte{}, err
	}
	rBytes, sBytes := op.R.Bytes(), op.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 || op.V.Uint64() < 27 {
		return [20]byte{}, fmt.Errorf("%w: malformed signature", ErrInvalidOperation)
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(op.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return [20]byte{}, err
	}
	var addr [20]byte
	copy(addr[:], crypto.PubkeyToAddress(*pubKey).Bytes())
	op.from = &addr
	return addr, nil
}

// DecodeOperation parses a signed envelope from raw JSON bytes.
func DecodeOperation(data []byte) (*Operation, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidOperation)
	}
	var op Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	if op.Type == "" {
		return nil, fmt.Errorf("%w: missing type field", ErrInvalidOperation)
	}
	return &op, nil
}

// DecodePayload unmarshals the envelope payload into dst.
func (op *Operation) DecodePayload(dst interface{}) error {
	if len(op.Payload) == 0 {
		return fmt.Errorf("%w: %s requires a payload", ErrInvalidOperation, op.Type)
	}
	if err := json.Unmarshal(op.Payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	return nil
}

// NewOperation builds an unsigned envelope around the JSON-encoded payload.
func NewOperation(kind OpType, nonce uint64, payload interface{}) (*Operation, error) {
	op := &Operation{Type: kind, Nonce: nonce}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		op.Payload = raw
	}
	return op, nil
}
