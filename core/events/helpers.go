package events

import (
	"encoding/hex"
	"math/big"
	"strings"

	"taxledger/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAccount(addr [20]byte) string {
	return crypto.AccountString(addr)
}

func formatHash(h [32]byte) string {
	return "0x" + strings.ToLower(hex.EncodeToString(h[:]))
}

func zeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
