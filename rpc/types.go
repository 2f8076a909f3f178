package rpc

// Amounts are rendered as base-10 strings in the smallest unit and accounts
// as bech32 strings.

type SubmitResult struct {
	Hash      string        `json:"hash"`
	Type      string        `json:"type"`
	Sender    string        `json:"sender"`
	StateRoot string        `json:"stateRoot"`
	Events    []EventResult `json:"events"`
}

type EventResult struct {
	Sequence   uint64            `json:"sequence"`
	OpHash     string            `json:"opHash"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

type BalanceResult struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type AllowanceResult struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

type ConfigResult struct {
	Initialized   bool   `json:"initialized"`
	Name          string `json:"name,omitempty"`
	Symbol        string `json:"symbol,omitempty"`
	Decimals      uint8  `json:"decimals,omitempty"`
	TaxBps        uint32 `json:"taxBps"`
	Reservoir     string `json:"reservoir,omitempty"`
	RewardPool    string `json:"rewardPool,omitempty"`
	PoolFunds     string `json:"poolFunds,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Logic         string `json:"logic,omitempty"`
	LayoutVersion uint32 `json:"layoutVersion,omitempty"`
}

type QuoteResult struct {
	Amount string `json:"amount"`
	Tax    string `json:"tax"`
	Net    string `json:"net"`
}

type ReceiptResult struct {
	Hash       string `json:"hash"`
	Type       string `json:"type"`
	Sender     string `json:"sender,omitempty"`
	Nonce      uint64 `json:"nonce"`
	StateRoot  string `json:"stateRoot"`
	EventCount int    `json:"eventCount"`
	Timestamp  int64  `json:"timestamp"`
}

// EventsParams selects a page of journaled events.
type EventsParams struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit"`
	Type  string `json:"type,omitempty"`
}
