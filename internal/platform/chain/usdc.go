package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// USDCDecimals is the fixed decimal count of USDC across all chains.
const USDCDecimals = 6

var usdcUnit = big.NewInt(1_000_000)

// FormatUSDC renders a raw 6-decimal token amount as a decimal string with
// exactly six fractional digits, e.g. 3500000 -> "3.500000".
func FormatUSDC(raw *big.Int) string {
	return FormatUnits(raw, USDCDecimals)
}

// FormatUnits renders a raw token amount with the given decimal count as a
// fixed-point decimal string.
func FormatUnits(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0." + strings.Repeat("0", decimals)
	}
	if decimals <= 0 {
		return raw.String()
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(raw, unit, new(big.Int))
	sign := ""
	if frac.Sign() < 0 {
		frac.Neg(frac)
		if whole.Sign() == 0 {
			sign = "-"
		}
	}
	return fmt.Sprintf("%s%s.%0*d", sign, whole.String(), decimals, frac)
}

// ParseUSDC converts a decimal string such as "3.5" or "3.500000" back into
// raw 6-decimal units. Fractional digits beyond six are rejected.
func ParseUSDC(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("empty usdc amount")
	}
	negative := strings.HasPrefix(trimmed, "-")
	trimmed = strings.TrimPrefix(trimmed, "-")

	wholePart := trimmed
	fracPart := ""
	if idx := strings.Index(trimmed, "."); idx >= 0 {
		wholePart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > USDCDecimals {
		return nil, fmt.Errorf("usdc amount %q exceeds 6 decimal places", value)
	}
	fracPart = fracPart + strings.Repeat("0", USDCDecimals-len(fracPart))

	whole, ok := new(big.Int).SetString(wholePart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid usdc amount %q", value)
	}
	frac, ok := new(big.Int).SetString(fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid usdc amount %q", value)
	}
	raw := new(big.Int).Mul(whole, usdcUnit)
	raw.Add(raw, frac)
	if negative {
		raw.Neg(raw)
	}
	return raw, nil
}
