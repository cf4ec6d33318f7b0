package marketplace

import (
	"fmt"
	"math/big"
)

// settlementLegs carries the computed payment split for one purchase.
// Conservation invariant: total = value + royalty and
// royalty = feeReceiver + commission amount.
type settlementLegs struct {
	value       *big.Int
	royalty     *big.Int
	feeReceiver *big.Int
	total       *big.Int
	commission  *Commission
}

// computeLegs derives the seller, fee receiver and broker legs for consuming
// amount units of the offer. All multiplications happen before the divisions;
// rounding is floor and any dust is retained by the protocol.
func (e *Engine) computeLegs(offer *Offer, amount *big.Int) (*settlementLegs, error) {
	decimals, err := e.assets.DecimalsOf(offer.TokenID)
	if err != nil {
		return nil, err
	}
	scale := pow10(decimals)
	value, err := mulDiv(offer.UnitPrice, amount, scale)
	if err != nil {
		return nil, err
	}
	royalty, err := mulDiv(offer.RoyaltyDenomination, amount, scale)
	if err != nil {
		return nil, err
	}
	commission, err := e.commissionFor(offer.TokenID, royalty)
	if err != nil {
		return nil, err
	}
	feeReceiver := cloneBigInt(royalty)
	if commission != nil {
		feeReceiver.Sub(feeReceiver, commission.Amount)
	}
	return &settlementLegs{
		value:       value,
		royalty:     royalty,
		feeReceiver: feeReceiver,
		total:       new(big.Int).Add(value, royalty),
		commission:  commission,
	}, nil
}

// settleNative routes payment on the push rail. The attached value is debited
// from the buyer into the module vault, the three legs are pushed out, and
// any excess over the settlement total is refunded to the buyer last. A
// failed push aborts the purchase; a failed refund is reported separately
// because it is attributable to the buyer's own receiving account.
func (e *Engine) settleNative(buyer [20]byte, offer *Offer, legs *settlementLegs, value *big.Int) error {
	if e.native == nil {
		return errNilNativeRail
	}
	if value == nil || value.Cmp(legs.total) < 0 {
		return ErrInsufficientValue
	}
	if err := checkUint256("attached value", value); err != nil {
		return ErrInvalidValue
	}
	if err := e.native.Transfer(buyer, marketVaultAddress, value); err != nil {
		return err
	}
	if err := e.pushNative(marketVaultAddress, offer.Seller, legs.value); err != nil {
		return err
	}
	if err := e.pushNative(marketVaultAddress, offer.RoyaltyReceiver, legs.feeReceiver); err != nil {
		return err
	}
	if legs.commission != nil {
		if err := e.pushNative(marketVaultAddress, legs.commission.Broker, legs.commission.Amount); err != nil {
			return err
		}
	}
	excess := new(big.Int).Sub(value, legs.total)
	if excess.Sign() > 0 {
		if err := e.native.Transfer(marketVaultAddress, buyer, excess); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedRefund, err)
		}
	}
	return nil
}

func (e *Engine) pushNative(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.native.Transfer(from, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedTransfer, err)
	}
	return nil
}

// settleToken routes payment on the pull rail: one allowance-gated inbound
// transfer of the full total from the buyer, then three outbound pushes. The
// token's own error surfaces unmodified when the inbound pull fails.
func (e *Engine) settleToken(buyer [20]byte, offer *Offer, legs *settlementLegs) error {
	if e.tokens == nil {
		return errNilTokenRail
	}
	currency := NormalizeCurrency(offer.Currency)
	if legs.total.Sign() > 0 {
		if err := e.tokens.TransferFrom(currency, buyer, marketVaultAddress, legs.total); err != nil {
			return err
		}
	}
	if err := e.pushToken(currency, offer.Seller, legs.value); err != nil {
		return err
	}
	if err := e.pushToken(currency, offer.RoyaltyReceiver, legs.feeReceiver); err != nil {
		return err
	}
	if legs.commission != nil {
		if err := e.pushToken(currency, legs.commission.Broker, legs.commission.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) pushToken(currency string, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.tokens.Transfer(currency, marketVaultAddress, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedTransfer, err)
	}
	return nil
}
