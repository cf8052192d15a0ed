// Package state persists the reward ledger in a key-value database. Records
// are RLP encoded through map-free stored mirror structs; writes between
// Begin and Commit are staged in an overlay so a failed operation leaves the
// database untouched.
package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	"claimledger/core/amount"
	"claimledger/native/rewards"
	"claimledger/storage"
)

// Manager implements the reward engine's State interface on top of a
// storage.Database. A Manager is not safe for concurrent use; the engine's
// single-writer lock provides the serialization.
type Manager struct {
	db      storage.Database
	staged  bool
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewManager wraps db in a ledger state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin starts staging: subsequent writes and deletes stay in an overlay
// until Commit.
func (m *Manager) Begin() {
	m.staged = true
	m.writes = make(map[string][]byte)
	m.deletes = make(map[string]struct{})
}

// Commit flushes the staged overlay to the database in one atomic batch
// write and ends staging. A failed flush leaves the database untouched.
func (m *Manager) Commit() error {
	batch := new(storage.Batch)
	for key, value := range m.writes {
		batch.Put([]byte(key), value)
	}
	for key := range m.deletes {
		batch.Delete([]byte(key))
	}
	if err := m.db.Write(batch); err != nil {
		return err
	}
	m.staged = false
	m.writes = nil
	m.deletes = nil
	return nil
}

// Rollback drops the staged overlay.
func (m *Manager) Rollback() {
	m.staged = false
	m.writes = nil
	m.deletes = nil
}

func (m *Manager) kvGet(key []byte) ([]byte, bool, error) {
	if m.staged {
		if value, ok := m.writes[string(key)]; ok {
			return value, true, nil
		}
		if _, ok := m.deletes[string(key)]; ok {
			return nil, false, nil
		}
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) kvPut(key, value []byte) error {
	if m.staged {
		m.writes[string(key)] = value
		delete(m.deletes, string(key))
		return nil
	}
	return m.db.Put(key, value)
}

func (m *Manager) kvDelete(key []byte) error {
	if m.staged {
		m.deletes[string(key)] = struct{}{}
		delete(m.writes, string(key))
		return nil
	}
	return m.db.Delete(key)
}

// --- stored record mirrors (RLP carries no maps) ---

type storedTokenBalance struct {
	Token    string
	Subunits *big.Int
}

type storedCategory struct {
	Category string
	Tokens   []storedTokenBalance
}

type storedAccountRow struct {
	Address    string
	Credential []byte
	Categories []storedCategory
}

// RewardsGet loads one account ledger row by credential key.
func (m *Manager) RewardsGet(key string) (*rewards.AccountRow, bool, error) {
	raw, ok, err := m.kvGet(accountKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	var stored storedAccountRow
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode account row %q: %w", key, err)
	}
	row := rewards.NewAccountRow(stored.Address)
	if len(stored.Credential) > 0 {
		cred, err := uuid.FromBytes(stored.Credential)
		if err != nil {
			return nil, false, fmt.Errorf("state: decode credential for %q: %w", key, err)
		}
		row.Credential = cred
	}
	for _, category := range stored.Categories {
		tokens := make(map[string]amount.Decimal, len(category.Tokens))
		for _, balance := range category.Tokens {
			amt, err := amount.FromSubunits(balance.Subunits)
			if err != nil {
				return nil, false, fmt.Errorf("state: account row %q token %s: %w", key, balance.Token, err)
			}
			tokens[balance.Token] = amt
		}
		row.Balances[category.Category] = tokens
	}
	return row, true, nil
}

// RewardsPut stores one account ledger row under its credential key. The
// stored form is sorted so identical rows encode to identical bytes.
func (m *Manager) RewardsPut(key string, row *rewards.AccountRow) error {
	if row == nil {
		return fmt.Errorf("state: nil account row for %q", key)
	}
	stored := storedAccountRow{Address: row.Address}
	if row.Credential != uuid.Nil {
		stored.Credential = append([]byte(nil), row.Credential[:]...)
	}
	categories := make([]string, 0, len(row.Balances))
	for category := range row.Balances {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		balances := row.Balances[category]
		tokens := make([]string, 0, len(balances))
		for token := range balances {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)
		storedCat := storedCategory{Category: category}
		for _, token := range tokens {
			subunits := balances[token].Subunits()
			if subunits.Sign() < 0 {
				return fmt.Errorf("state: negative balance for account %q token %s", key, token)
			}
			storedCat.Tokens = append(storedCat.Tokens, storedTokenBalance{Token: token, Subunits: subunits})
		}
		stored.Categories = append(stored.Categories, storedCat)
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return fmt.Errorf("state: encode account row %q: %w", key, err)
	}
	return m.kvPut(accountKey(key), raw)
}

// OrderGet loads one order ledger entry by composite key.
func (m *Manager) OrderGet(key string) (amount.Decimal, bool, error) {
	raw, ok, err := m.kvGet(orderKey(key))
	if err != nil || !ok {
		return amount.Decimal{}, false, err
	}
	return decodeAmount(raw, "order "+key)
}

// OrderPut stores one order ledger entry.
func (m *Manager) OrderPut(key string, amt amount.Decimal) error {
	raw, err := encodeAmount(amt, "order "+key)
	if err != nil {
		return err
	}
	return m.kvPut(orderKey(key), raw)
}

// OrderDelete removes one order ledger entry.
func (m *Manager) OrderDelete(key string) error {
	return m.kvDelete(orderKey(key))
}

// VaultBalance loads the custody balance of a token. The second return is
// false when no vault has ever been created for the token.
func (m *Manager) VaultBalance(token string) (amount.Decimal, bool, error) {
	raw, ok, err := m.kvGet(vaultKey(token))
	if err != nil || !ok {
		return amount.Decimal{}, false, err
	}
	return decodeAmount(raw, "vault "+token)
}

// SetVaultBalance stores the custody balance of a token, creating the vault
// on first use. Vaults are never deleted.
func (m *Manager) SetVaultBalance(token string, amt amount.Decimal) error {
	raw, err := encodeAmount(amt, "vault "+token)
	if err != nil {
		return err
	}
	return m.kvPut(vaultKey(token), raw)
}

func encodeAmount(amt amount.Decimal, what string) ([]byte, error) {
	subunits := amt.Subunits()
	if subunits.Sign() < 0 {
		return nil, fmt.Errorf("state: negative amount for %s", what)
	}
	raw, err := rlp.EncodeToBytes(subunits)
	if err != nil {
		return nil, fmt.Errorf("state: encode %s: %w", what, err)
	}
	return raw, nil
}

func decodeAmount(raw []byte, what string) (amount.Decimal, bool, error) {
	subunits := new(big.Int)
	if err := rlp.DecodeBytes(raw, subunits); err != nil {
		return amount.Decimal{}, false, fmt.Errorf("state: decode %s: %w", what, err)
	}
	amt, err := amount.FromSubunits(subunits)
	if err != nil {
		return amount.Decimal{}, false, fmt.Errorf("state: decode %s: %w", what, err)
	}
	return amt, true, nil
}
