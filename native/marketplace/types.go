package marketplace

import (
	"fmt"
	"math/big"
	"strings"
)

// OfferState represents the lifecycle states of a listing. Sold and Cancelled
// are terminal.
type OfferState uint8

const (
	OfferSelling OfferState = iota
	OfferSold
	OfferCancelled
)

// CurrencyNative is the sentinel settlement currency denoting the native
// ledger coin. Any other registered symbol settles on the token rail.
const CurrencyNative = "NATIVE"

// Offer captures one listing of a quantity of fractional units belonging to a
// single underlying asset token. Identifiers are assigned sequentially
// starting at 1 and never reused; economic terms are immutable after
// creation, only SoldAmount and State move.
type Offer struct {
	ID                  uint64
	TokenID             uint64
	Seller              [20]byte
	SellingAmount       *big.Int
	SoldAmount          *big.Int
	UnitPrice           *big.Int
	Currency            string
	Divisible           bool
	RoyaltyDenomination *big.Int
	RoyaltyReceiver     [20]byte
	State               OfferState
}

// Clone returns a deep copy of the offer so callers can safely mutate the copy
// without affecting the stored instance.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.SellingAmount = cloneBigInt(o.SellingAmount)
	clone.SoldAmount = cloneBigInt(o.SoldAmount)
	clone.UnitPrice = cloneBigInt(o.UnitPrice)
	clone.RoyaltyDenomination = cloneBigInt(o.RoyaltyDenomination)
	return &clone
}

// Remaining returns the unsold quantity of the offer.
func (o *Offer) Remaining() *big.Int {
	if o == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(cloneBigInt(o.SellingAmount), cloneBigInt(o.SoldAmount))
}

// Valid reports whether the state value is within the supported range.
func (s OfferState) Valid() bool {
	switch s {
	case OfferSelling, OfferSold, OfferCancelled:
		return true
	default:
		return false
	}
}

// String renders the canonical lowercase state label used in events and RPC
// results.
func (s OfferState) String() string {
	switch s {
	case OfferSelling:
		return "selling"
	case OfferSold:
		return "sold"
	case OfferCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// NormalizeCurrency canonicalises a settlement currency symbol. The empty
// string maps to the native sentinel; everything else is upper-cased and
// trimmed.
func NormalizeCurrency(symbol string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return CurrencyNative
	}
	return trimmed
}

// IsNativeCurrency reports whether the symbol denotes the native ledger coin.
func IsNativeCurrency(symbol string) bool {
	return NormalizeCurrency(symbol) == CurrencyNative
}

// SanitizeOffer validates and normalises the supplied offer, returning a
// cloned instance with canonical currency casing and non-nil amount fields.
// The function does not mutate the original value.
func SanitizeOffer(o *Offer) (*Offer, error) {
	if o == nil {
		return nil, fmt.Errorf("nil offer")
	}
	clone := o.Clone()
	clone.Currency = NormalizeCurrency(clone.Currency)
	if clone.SellingAmount.Sign() <= 0 {
		return nil, fmt.Errorf("offer selling amount must be positive")
	}
	if clone.UnitPrice.Sign() <= 0 {
		return nil, fmt.Errorf("offer unit price must be positive")
	}
	if clone.SoldAmount.Sign() < 0 {
		return nil, fmt.Errorf("offer sold amount must be non-negative")
	}
	if clone.SoldAmount.Cmp(clone.SellingAmount) > 0 {
		return nil, fmt.Errorf("offer sold amount exceeds selling amount")
	}
	if clone.RoyaltyDenomination.Sign() < 0 {
		return nil, fmt.Errorf("offer royalty denomination must be non-negative")
	}
	if !clone.State.Valid() {
		return nil, fmt.Errorf("invalid offer state: %d", clone.State)
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
