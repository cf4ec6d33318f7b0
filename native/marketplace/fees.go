package marketplace

import (
	"fmt"
	"math/big"
)

// FeeResolver resolves the royalty denomination owed per whole unit of an
// asset at a given unit price, already adjusted for any currency-exclusive
// discount. Listings cache the result so later purchases settle against the
// terms quoted at listing time.
type FeeResolver struct {
	assets     AssetLedger
	currencies CurrencyRegistry
}

// NewFeeResolver constructs a resolver bound to the ownership ledger and the
// currency registry.
func NewFeeResolver(assets AssetLedger, currencies CurrencyRegistry) *FeeResolver {
	return &FeeResolver{assets: assets, currencies: currencies}
}

// RoyaltyFor returns the royalty receiver and the discount-adjusted royalty
// denomination for (tokenID, unitPrice) settled in the supplied currency.
func (r *FeeResolver) RoyaltyFor(tokenID uint64, unitPrice *big.Int, currency string) ([20]byte, *big.Int, error) {
	if r == nil || r.assets == nil {
		return [20]byte{}, nil, fmt.Errorf("marketplace: fee resolver not configured")
	}
	receiver, amount, err := r.assets.RoyaltyInfo(tokenID, cloneBigInt(unitPrice))
	if err != nil {
		return [20]byte{}, nil, err
	}
	denomination := cloneBigInt(amount)
	normalized := NormalizeCurrency(currency)
	if r.currencies != nil && !IsNativeCurrency(normalized) && r.currencies.IsExclusive(normalized) {
		discount := r.currencies.ExclusiveDiscountOf(normalized)
		if discount > rateScale {
			return [20]byte{}, nil, fmt.Errorf("marketplace: exclusive discount out of range: %d", discount)
		}
		denomination.Sub(denomination, applyBps(denomination, discount))
	}
	return receiver, denomination, nil
}

// Commission describes a resolved broker leg. Absence of a broker is an
// absent value, never a zero-address sentinel.
type Commission struct {
	Broker [20]byte
	Amount *big.Int
}

// Clone returns a deep copy of the commission.
func (c *Commission) Clone() *Commission {
	if c == nil {
		return nil
	}
	return &Commission{Broker: c.Broker, Amount: cloneBigInt(c.Amount)}
}

// CommissionResolver computes the broker's cut of a royalty amount from the
// external commission registry.
type CommissionResolver struct {
	registry CommissionRegistry
}

// NewCommissionResolver constructs a resolver bound to the commission
// registry.
func NewCommissionResolver(registry CommissionRegistry) *CommissionResolver {
	return &CommissionResolver{registry: registry}
}

// CommissionFor resolves the broker leg for the supplied royalty amount. A
// nil result means no broker is registered for the token's zone or the
// computed cut floors to zero.
func (r *CommissionResolver) CommissionFor(tokenID uint64, royaltyAmount *big.Int) (*Commission, error) {
	if r == nil || r.registry == nil {
		return nil, nil
	}
	broker, rateBps, err := r.registry.CommissionOf(tokenID)
	if err != nil {
		return nil, err
	}
	if broker == nil || rateBps == 0 {
		return nil, nil
	}
	if rateBps > rateScale {
		return nil, fmt.Errorf("marketplace: commission rate out of range: %d", rateBps)
	}
	amount := applyBps(royaltyAmount, rateBps)
	if amount.Sign() == 0 {
		return nil, nil
	}
	return &Commission{Broker: *broker, Amount: amount}, nil
}
