package types

// Payload shapes for the operation envelope. Accounts are bech32 strings with
// the ledger prefix and amounts are base-10 integers in the smallest unit.

type TransferPayload struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApprovePayload struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type TransferFromPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TaxRatePayload struct {
	Bps uint32 `json:"bps"`
}

type AccountPayload struct {
	Account string `json:"account"`
}

type TaxExemptPayload struct {
	Account string `json:"account"`
	Exempt  bool   `json:"exempt"`
}

type AmountPayload struct {
	Amount string `json:"amount"`
}

type WithdrawPayload struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type DistributePayload struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	// Context is an optional 0x-prefixed 32-byte hex string.
	Context string `json:"context,omitempty"`
}

type RescuePayload struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type UpgradePayload struct {
	LogicRef string `json:"logicRef"`
}

type RolePayload struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}
