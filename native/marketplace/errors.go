package marketplace

import "errors"

// Machine-matchable failure taxonomy. Every mutator aborts with exactly one of
// these (or a collaborator error passed through unwrapped) and leaves
// committed state untouched.
var (
	// Input validation.
	ErrInvalidOfferID       = errors.New("marketplace: invalid offer id")
	ErrInvalidTokenID       = errors.New("marketplace: invalid token id")
	ErrInvalidUnitPrice     = errors.New("marketplace: invalid unit price")
	ErrInvalidCurrency      = errors.New("marketplace: invalid currency")
	ErrInvalidSellingAmount = errors.New("marketplace: invalid selling amount")
	ErrNotDivisible         = errors.New("marketplace: offer is not divisible")

	// State conflicts.
	ErrInvalidBuying         = errors.New("marketplace: invalid buying")
	ErrInvalidCancelling     = errors.New("marketplace: invalid cancelling")
	ErrNotEnoughTokensToSell = errors.New("marketplace: not enough tokens to sell")
	ErrBadAnchor             = errors.New("marketplace: anchor does not match offer terms")

	// Funds.
	ErrInsufficientValue = errors.New("marketplace: insufficient attached value")
	ErrInvalidValue      = errors.New("marketplace: attached value outside the 256-bit domain")
	ErrFailedTransfer    = errors.New("marketplace: payment transfer failed")
	ErrFailedRefund      = errors.New("marketplace: excess value refund failed")

	// Access.
	ErrUnauthorized = errors.New("marketplace: unauthorized")
)
