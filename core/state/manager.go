package state

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"fracmarket/core/types"
	"fracmarket/storage"
)

var accountPrefix = []byte("accounts/")

// Manager exposes rlp-encoded key-value state on top of a storage backend and
// owns the account table the native rail settles against. Between Begin and
// Commit all writes are staged in memory, so a mutator that fails partway
// discards every mutation it performed by calling Rollback.
type Manager struct {
	db storage.Database

	mu     sync.RWMutex
	staged map[string][]byte
}

// NewManager constructs a state manager bound to the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a state transaction: subsequent writes are staged and become
// visible to reads through the manager, but reach the database only on Commit.
func (m *Manager) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = make(map[string][]byte)
}

// Commit flushes the staged writes to the database and closes the transaction.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.staged
	m.staged = nil
	for key, value := range staged {
		if err := m.db.Put([]byte(key), value); err != nil {
			return err
		}
	}
	return nil
}

// Rollback discards the staged writes and closes the transaction.
func (m *Manager) Rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = nil
}

// KVGet decodes the value stored under key into out. A nil out performs a
// bare existence check. The boolean reports whether the key was present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, fmt.Errorf("state: manager not initialised")
	}
	m.mu.RLock()
	raw, stagedHit := m.staged[string(key)]
	m.mu.RUnlock()
	if !stagedHit {
		ok, err := m.db.Has(key)
		if err != nil || !ok {
			return false, err
		}
		if out == nil {
			return true, nil
		}
		raw, err = m.db.Get(key)
		if err != nil {
			return false, err
		}
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVPut stores the rlp encoding of value under key, staging it when a
// transaction is open.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staged != nil {
		m.staged[string(key)] = encoded
		return nil
	}
	return m.db.Put(key, encoded)
}

type storedAccount struct {
	Nonce         uint64
	BalanceNative *big.Int
}

func accountKey(addr [20]byte) []byte {
	key := make([]byte, len(accountPrefix)+20)
	copy(key, accountPrefix)
	copy(key[len(accountPrefix):], addr[:])
	return key
}

// GetAccount loads the account stored under addr, returning a zero-balance
// account when none exists yet.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{BalanceNative: big.NewInt(0)}, nil
	}
	account := &types.Account{Nonce: stored.Nonce, BalanceNative: big.NewInt(0)}
	if stored.BalanceNative != nil {
		account.BalanceNative = new(big.Int).Set(stored.BalanceNative)
	}
	return account, nil
}

// PutAccount persists the provided account state under the supplied address.
// Balances must fit the 256-bit wire domain.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := big.NewInt(0)
	if account.BalanceNative != nil {
		balance = new(big.Int).Set(account.BalanceNative)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance")
	}
	if _, overflow := uint256.FromBig(balance); overflow {
		return fmt.Errorf("state: balance overflow")
	}
	return m.KVPut(accountKey(addr), &storedAccount{Nonce: account.Nonce, BalanceNative: balance})
}
