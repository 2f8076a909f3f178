package token

import "math/big"

const (
	// Decimals is the number of fractional digits of the ledger unit.
	Decimals uint8 = 18
	// MaxTaxBps caps the transfer tax at 10%.
	MaxTaxBps uint32 = 1000
	// BasisPointsDenominator is the scale of every rate expressed in bps.
	BasisPointsDenominator uint64 = 10_000

	wholeSupply = 1_000_000_000
)

var totalSupply = new(big.Int).Mul(
	big.NewInt(wholeSupply),
	new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Decimals)), nil),
)

// TotalSupplyAmount returns the fixed supply minted at initialization.
func TotalSupplyAmount() *big.Int {
	return new(big.Int).Set(totalSupply)
}

// InitParams configures the one-time initialization.
type InitParams struct {
	Name      string
	Symbol    string
	Treasury  [20]byte
	Reservoir [20]byte
	TaxBps    uint32
}
