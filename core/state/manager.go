package state

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/storage"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the holder's balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrNegativeAmount rejects negative transfer, mint or burn amounts.
	ErrNegativeAmount = errors.New("state: amount must not be negative")
)

// Manager is the ledger of every component. Writes are buffered in an overlay
// and journaled so a failed transaction can be rolled back to a snapshot.
// Nothing reaches the database until Commit.
type Manager struct {
	db storage.Database

	mu      sync.RWMutex
	dirty   map[string][]byte
	journal []journalEntry
}

type journalEntry struct {
	key     string
	prev    []byte
	hadPrev bool
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string][]byte)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(hashed []byte) ([]byte, error) {
	m.mu.RLock()
	value, ok := m.dirty[string(hashed)]
	m.mu.RUnlock()
	if ok {
		return value, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// set records value under the hashed key. A nil value marks a deletion.
func (m *Manager) set(hashed []byte, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(hashed)
	prev, had := m.dirty[key]
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, hadPrev: had})
	m.dirty[key] = value
}

// Snapshot returns an identifier that RevertToSnapshot can roll back to.
func (m *Manager) Snapshot() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.journal)
}

// RevertToSnapshot undoes every write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 {
		id = 0
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.hadPrev {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	if id < len(m.journal) {
		m.journal = m.journal[:id]
	}
}

// Commit flushes the overlay to the database in a single batch.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dirty) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	if err := m.db.Write(m.dirty); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	m.dirty = make(map[string][]byte)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops every uncommitted write.
func (m *Manager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = make(map[string][]byte)
	m.journal = m.journal[:0]
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.set(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key from state.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.set(kvKey(key), nil)
	return nil
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}

// Balance returns the holder's balance of asset.
func (m *Manager) Balance(addr common.Address, asset string) (*big.Int, error) {
	if strings.TrimSpace(asset) == "" {
		return nil, fmt.Errorf("state: asset symbol required")
	}
	return m.loadAmount(balanceKey(addr, asset))
}

// SetBalance overwrites the holder's balance without touching total supply.
// It is intended for genesis seeding and tests.
func (m *Manager) SetBalance(addr common.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return m.storeAmount(balanceKey(addr, asset), new(big.Int).Set(amount))
}

// Transfer moves amount of asset between holders.
func (m *Manager) Transfer(from, to common.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := m.Balance(from, asset)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal, asset, amount)
	}
	toBal, err := m.Balance(to, asset)
	if err != nil {
		return err
	}
	if err := m.storeAmount(balanceKey(from, asset), fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return m.storeAmount(balanceKey(to, asset), toBal.Add(toBal, amount))
}

// Mint credits newly issued units of asset to the holder.
func (m *Manager) Mint(to common.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	bal, err := m.Balance(to, asset)
	if err != nil {
		return err
	}
	supply, err := m.TotalSupply(asset)
	if err != nil {
		return err
	}
	if err := m.storeAmount(balanceKey(to, asset), bal.Add(bal, amount)); err != nil {
		return err
	}
	return m.storeAmount(supplyKey(asset), supply.Add(supply, amount))
}

// Burn destroys units of asset held by the holder.
func (m *Manager) Burn(from common.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	bal, err := m.Balance(from, asset)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: burn %s %s from %s", ErrInsufficientBalance, amount, asset, from.Hex())
	}
	supply, err := m.TotalSupply(asset)
	if err != nil {
		return err
	}
	if err := m.storeAmount(balanceKey(from, asset), bal.Sub(bal, amount)); err != nil {
		return err
	}
	return m.storeAmount(supplyKey(asset), supply.Sub(supply, amount))
}

// TotalSupply returns the minted-minus-burned amount of asset.
func (m *Manager) TotalSupply(asset string) (*big.Int, error) {
	if strings.TrimSpace(asset) == "" {
		return nil, fmt.Errorf("state: asset symbol required")
	}
	return m.loadAmount(supplyKey(asset))
}
