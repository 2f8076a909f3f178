package token

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategory(t *testing.T) {
	cases := map[error]string{
		nil:                        "ok",
		ErrZeroAmount:              "invalid_input",
		ErrUnknownLogic:            "invalid_input",
		ErrPoolTransfer:            "unauthorized",
		ErrTaxRateTooHigh:          "invariant_violation",
		ErrLastRootAdmin:           "invariant_violation",
		ErrInsufficientAllowance:   "insufficient_funds",
		ErrExternalCallFailed:      "external_call_failed",
		errors.New("disk on fire"): "internal",
		fmt.Errorf("wrapped: %w", ErrInsufficientPool): "insufficient_funds",
	}
	for err, want := range cases {
		if got := Category(err); got != want {
			t.Fatalf("Category(%v) = %q, want %q", err, got, want)
		}
	}
}
