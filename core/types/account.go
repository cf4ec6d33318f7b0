package types

import "math/big"

// Account captures the ledger-side view of a participant: the native coin
// balance the settlement router moves on the push rail plus a replay nonce.
type Account struct {
	Nonce         uint64   `json:"nonce"`
	BalanceNative *big.Int `json:"balanceNative"`
}

// Clone returns a deep copy so callers can mutate the result without touching
// the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{BalanceNative: big.NewInt(0)}
	}
	clone := &Account{Nonce: a.Nonce, BalanceNative: big.NewInt(0)}
	if a.BalanceNative != nil {
		clone.BalanceNative = new(big.Int).Set(a.BalanceNative)
	}
	return clone
}
