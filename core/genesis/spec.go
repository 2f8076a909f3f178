package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"taxledger/crypto"
	"taxledger/native/token"
)

// Spec describes the initial ledger. The first root admin performs the
// initialization; the treasury becomes the owner.
type Spec struct {
	Name           string   `json:"name"`
	Symbol         string   `json:"symbol"`
	Treasury       string   `json:"treasury"`
	Reservoir      string   `json:"reservoir"`
	TaxBps         uint32   `json:"taxBps"`
	RootAdmins     []string `json:"rootAdmins"`
	RewardManagers []string `json:"rewardManagers,omitempty"`
	Exempt         []string `json:"exempt,omitempty"`
	RewardPoolSeed string   `json:"rewardPoolSeed,omitempty"`

	treasury       [20]byte
	reservoir      [20]byte
	rootAdmins     [][20]byte
	rewardManagers [][20]byte
	exempt         [][20]byte
	seed           *big.Int
}

// LoadSpec reads and validates a genesis file. Unknown fields are rejected.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	return ParseSpec(raw)
}

// ParseSpec decodes and validates a genesis document.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("genesis: name and symbol required")
	}
	if s.TaxBps > token.MaxTaxBps {
		return fmt.Errorf("genesis: taxBps must be <= %d", token.MaxTaxBps)
	}
	var err error
	if s.treasury, err = parseAccount("treasury", s.Treasury); err != nil {
		return err
	}
	if s.reservoir, err = parseAccount("reservoir", s.Reservoir); err != nil {
		return err
	}
	if len(s.RootAdmins) == 0 {
		return fmt.Errorf("genesis: at least one root admin required")
	}
	if s.rootAdmins, err = parseAccounts("rootAdmins", s.RootAdmins); err != nil {
		return err
	}
	if s.rewardManagers, err = parseAccounts("rewardManagers", s.RewardManagers); err != nil {
		return err
	}
	if s.exempt, err = parseAccounts("exempt", s.Exempt); err != nil {
		return err
	}
	if seed := strings.TrimSpace(s.RewardPoolSeed); seed != "" {
		amount, ok := new(big.Int).SetString(seed, 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("genesis: rewardPoolSeed must be a non-negative integer")
		}
		if amount.Cmp(token.TotalSupplyAmount()) > 0 {
			return fmt.Errorf("genesis: rewardPoolSeed exceeds total supply")
		}
		s.seed = amount
	}
	return nil
}

func parseAccount(field, value string) ([20]byte, error) {
	addr, err := crypto.ParseAccount(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("genesis: %s: %w", field, err)
	}
	if addr == ([20]byte{}) {
		return [20]byte{}, fmt.Errorf("genesis: %s must not be the zero account", field)
	}
	return addr, nil
}

func parseAccounts(field string, values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	seen := make(map[[20]byte]struct{}, len(values))
	for i, value := range values {
		addr, err := parseAccount(fmt.Sprintf("%s[%d]", field, i), value)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("genesis: %s[%d] duplicates %s", field, i, value)
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}
