package state

import (
	"fmt"
	"math/big"
)

// NativeLedger implements the marketplace native payment rail on top of the
// manager's account table.
type NativeLedger struct {
	state *Manager
}

// NewNativeLedger constructs a native rail bound to the state manager.
func NewNativeLedger(state *Manager) *NativeLedger {
	return &NativeLedger{state: state}
}

// Transfer moves native coin between accounts, failing on insufficient
// balance.
func (l *NativeLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return fmt.Errorf("state: native ledger not initialised")
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	fromAcc, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.BalanceNative.Cmp(amount) < 0 {
		return fmt.Errorf("state: insufficient native balance")
	}
	toAcc, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.BalanceNative = new(big.Int).Sub(fromAcc.BalanceNative, amount)
	toAcc.BalanceNative = new(big.Int).Add(toAcc.BalanceNative, amount)
	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}

// Mint credits freshly issued native coin to an account. Used by genesis
// seeding and tests.
func (l *NativeLedger) Mint(to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return fmt.Errorf("state: native ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: mint amount must be positive")
	}
	acc, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	acc.BalanceNative = new(big.Int).Add(acc.BalanceNative, amount)
	return l.state.PutAccount(to, acc)
}

var (
	tokenBalancePrefix   = []byte("tokens/balance/")
	tokenAllowancePrefix = []byte("tokens/allowance/")
)

func tokenBalanceKey(currency string, addr [20]byte) []byte {
	key := append([]byte(nil), tokenBalancePrefix...)
	key = append(key, currency...)
	key = append(key, '/')
	return append(key, addr[:]...)
}

func tokenAllowanceKey(currency string, owner, spender [20]byte) []byte {
	key := append([]byte(nil), tokenAllowancePrefix...)
	key = append(key, currency...)
	key = append(key, '/')
	key = append(key, owner[:]...)
	key = append(key, '/')
	return append(key, spender[:]...)
}

// TokenBook implements the marketplace token payment rail: per-currency
// balances with allowance-gated pulls.
type TokenBook struct {
	state *Manager
}

// NewTokenBook constructs a token rail bound to the state manager.
func NewTokenBook(state *Manager) *TokenBook {
	return &TokenBook{state: state}
}

func (b *TokenBook) balance(currency string, addr [20]byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := b.state.KVGet(tokenBalanceKey(currency, addr), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// BalanceOf returns the holder's balance in the supplied currency.
func (b *TokenBook) BalanceOf(currency string, addr [20]byte) (*big.Int, error) {
	if b == nil || b.state == nil {
		return nil, fmt.Errorf("state: token book not initialised")
	}
	return b.balance(currency, addr)
}

// Mint credits freshly issued tokens to an account.
func (b *TokenBook) Mint(currency string, to [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: token book not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: mint amount must be positive")
	}
	balance, err := b.balance(currency, to)
	if err != nil {
		return err
	}
	return b.state.KVPut(tokenBalanceKey(currency, to), new(big.Int).Add(balance, amount))
}

// Approve grants spender the right to pull up to amount from owner.
func (b *TokenBook) Approve(currency string, owner, spender [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: token book not initialised")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: allowance must be non-negative")
	}
	return b.state.KVPut(tokenAllowanceKey(currency, owner, spender), new(big.Int).Set(amount))
}

// Allowance returns the remaining pull allowance from owner to spender.
func (b *TokenBook) Allowance(currency string, owner, spender [20]byte) (*big.Int, error) {
	if b == nil || b.state == nil {
		return nil, fmt.Errorf("state: token book not initialised")
	}
	value := new(big.Int)
	ok, err := b.state.KVGet(tokenAllowanceKey(currency, owner, spender), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (b *TokenBook) move(currency string, from, to [20]byte, amount *big.Int) error {
	fromBalance, err := b.balance(currency, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("token %s: insufficient balance", currency)
	}
	toBalance, err := b.balance(currency, to)
	if err != nil {
		return err
	}
	if err := b.state.KVPut(tokenBalanceKey(currency, from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return b.state.KVPut(tokenBalanceKey(currency, to), new(big.Int).Add(toBalance, amount))
}

// Transfer pushes tokens between accounts.
func (b *TokenBook) Transfer(currency string, from, to [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: token book not initialised")
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	return b.move(currency, from, to, amount)
}

// TransferFrom pulls tokens from owner to the recipient against the
// recipient's allowance.
func (b *TokenBook) TransferFrom(currency string, from, to [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: token book not initialised")
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	allowance, err := b.Allowance(currency, from, to)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("token %s: insufficient allowance", currency)
	}
	if err := b.move(currency, from, to, amount); err != nil {
		return err
	}
	return b.state.KVPut(tokenAllowanceKey(currency, from, to), new(big.Int).Sub(allowance, amount))
}
