package intents

import (
	"fmt"
	"math/big"
	"strings"
)

// ToBaseUnits converts a human decimal amount like "1.5" into integer base
// units for a token with the given decimal count. It rejects negative
// amounts and fractions finer than the token can represent, rather than
// silently rounding value away.
func ToBaseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("intents: empty amount")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("intents: negative amount %q", amount)
	}

	whole, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		whole, frac = amount[:i], amount[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("intents: amount %q has more than %d decimal places", amount, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("intents: invalid amount %q", amount)
	}
	return v, nil
}
