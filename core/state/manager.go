package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"taxledger/storage/trie"
)

var errNilManager = errors.New("state: manager unavailable")

// Manager provides typed reads and writes of the ledger state held in the
// state trie. Every value is RLP encoded under a keccak hashed key.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

var (
	balancePrefix = []byte("balance:")
	rolePrefix    = []byte("role:")
)

func balanceKey(addr [20]byte) []byte {
	buf := make([]byte, len(balancePrefix)+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Copy returns a staged view of the state. Writes to the copy are invisible to
// the receiver until the caller adopts the copy in its place.
func (m *Manager) Copy() *Manager {
	if m == nil || m.trie == nil {
		return nil
	}
	return &Manager{trie: m.trie.Copy()}
}

// Commit flushes the in-memory trie to the backing store and returns the new
// state root.
func (m *Manager) Commit() (common.Hash, error) {
	if m == nil || m.trie == nil {
		return common.Hash{}, errNilManager
	}
	return m.trie.Commit()
}

// Root returns the root hash reflecting all uncommitted writes.
func (m *Manager) Root() common.Hash {
	if m == nil || m.trie == nil {
		return common.Hash{}
	}
	return m.trie.Hash()
}

// SetBalance stores an account balance.
func (m *Manager) SetBalance(addr [20]byte, amount *big.Int) error {
	if m == nil {
		return errNilManager
	}
	if addr == ([20]byte{}) {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.trie.Update(balanceKey(addr), encoded)
}

// Balance retrieves the balance for the provided account. Unknown accounts
// hold zero.
func (m *Manager) Balance(addr [20]byte) (*big.Int, error) {
	if m == nil {
		return nil, errNilManager
	}
	data, err := m.trie.Get(balanceKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) loadRole(role string) ([][]byte, error) {
	data, err := m.trie.Get(roleKey(role))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (m *Manager) writeRole(role string, members [][]byte) error {
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.trie.Update(roleKey(role), encoded)
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism. The
// boolean reports whether membership changed.
func (m *Manager) SetRole(role string, addr []byte) (bool, error) {
	if m == nil {
		return false, errNilManager
	}
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return false, fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return false, fmt.Errorf("address must not be empty")
	}
	members, err := m.loadRole(trimmed)
	if err != nil {
		return false, err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return false, nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	return true, m.writeRole(trimmed, members)
}

// RemoveRole drops an address from the specified role. The boolean reports
// whether membership changed.
func (m *Manager) RemoveRole(role string, addr []byte) (bool, error) {
	if m == nil {
		return false, errNilManager
	}
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return false, fmt.Errorf("role must not be empty")
	}
	members, err := m.loadRole(trimmed)
	if err != nil {
		return false, err
	}
	kept := members[:0]
	removed := false
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return false, nil
	}
	return true, m.writeRole(trimmed, kept)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	if m == nil {
		return nil, errNilManager
	}
	return m.loadRole(strings.TrimSpace(role))
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return so authorization fails closed.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if m == nil || len(addr) == 0 {
		return false
	}
	members, err := m.loadRole(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256 to match the requirements of
// the underlying trie implementation.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil {
		return errNilManager
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil {
		return false, errNilManager
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
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

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if m == nil {
		return errNilManager
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.trie.Delete(kvKey(key))
}
