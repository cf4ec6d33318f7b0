package marketplace

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// rateScale is the denominator for all bps-style rates (discounts and broker
// commissions).
const rateScale = 10_000

// checkUint256 rejects operands outside the 256-bit money domain. Engine math
// runs on big.Int so mul-before-div never truncates, but persisted amounts
// and prices must round-trip through the fixed-width wire encoding.
func checkUint256(label string, v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 {
		return fmt.Errorf("marketplace: %s must be non-negative", label)
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return fmt.Errorf("marketplace: %s exceeds 256 bits", label)
	}
	return nil
}

// mulDiv computes a*b/denom with the multiplication performed before the
// division, flooring the result. Intermediates are arbitrary precision so
// operands near 2^255 do not overflow.
func mulDiv(a, b, denom *big.Int) (*big.Int, error) {
	if denom == nil || denom.Sign() == 0 {
		return nil, fmt.Errorf("marketplace: division by zero")
	}
	product := new(big.Int).Mul(cloneBigInt(a), cloneBigInt(b))
	return product.Div(product, denom), nil
}

// applyBps returns amount*bps/rateScale, flooring. A zero rate yields zero.
func applyBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return out.Div(out, big.NewInt(rateScale))
}

// pow10 returns 10^decimals as a big.Int.
func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
