package token

import (
	_ "embed"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"taxledger/native/upgrade"
)

// Logic is the replaceable part of the ledger. Implementations address the
// persisted state described by their layout and supply the tax computation.
type Logic interface {
	upgrade.Implementation
	ComputeTax(amount *big.Int, rateBps uint32) (*big.Int, error)
}

//go:embed layouts/v1.yaml
var defaultManifest []byte

// DefaultLogicRef names the logic installed by Initialize.
const DefaultLogicRef = "tax-token/v1"

type standardLogic struct {
	id     string
	layout upgrade.Layout
}

// DefaultLogic returns the logic version every ledger starts with.
func DefaultLogic() Logic {
	manifest, err := upgrade.ParseManifest(defaultManifest)
	if err != nil {
		panic(fmt.Sprintf("token: embedded layout invalid: %v", err))
	}
	return &standardLogic{id: manifest.Logic, layout: manifest.Layout}
}

// NewManifestLogic builds a logic version from a layout manifest. The tax
// computation is the standard floor(amount * bps / 10000).
func NewManifestLogic(manifest *upgrade.Manifest) (Logic, error) {
	if manifest == nil {
		return nil, fmt.Errorf("%w: manifest required", ErrInvalidInput)
	}
	if err := manifest.Layout.Validate(); err != nil {
		return nil, err
	}
	layout := manifest.Layout
	layout.Fields = append([]string(nil), manifest.Fields...)
	return &standardLogic{id: manifest.Logic, layout: layout}, nil
}

func (l *standardLogic) ID() string { return l.id }

func (l *standardLogic) Layout() upgrade.Layout {
	out := l.layout
	out.Fields = append([]string(nil), l.layout.Fields...)
	return out
}

// ComputeTax returns floor(amount * rateBps / 10000). Truncation always favours
// the recipient.
func (l *standardLogic) ComputeTax(amount *big.Int, rateBps uint32) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if rateBps > MaxTaxBps {
		return nil, ErrTaxRateTooHigh
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("%w: amount exceeds 256 bits", ErrInvalidInput)
	}
	tax, overflow := new(uint256.Int).MulDivOverflow(value, uint256.NewInt(uint64(rateBps)), uint256.NewInt(BasisPointsDenominator))
	if overflow {
		return nil, fmt.Errorf("%w: tax computation overflow", ErrInvariantViolation)
	}
	return tax.ToBig(), nil
}
