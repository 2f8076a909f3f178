package state

import (
	"errors"
	"fmt"
	"math"

	"taxledger/storage/trie"
)

// StateVersion identifies the expected on-disk schema for the ledger state.
// Additive changes are tracked by the logic layout record instead.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")
	logicRecordKey  = []byte("token/logic")

	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// LogicRecord describes the active ledger logic and the persisted field layout
// it addresses. Fields are ordered; Reserved is the unused capacity left for
// fields appended by later logic versions.
type LogicRecord struct {
	Ref      string
	Version  uint32
	Fields   []string
	Reserved uint32
}

// SetStateVersion records the provided schema version in state.
func (m *Manager) SetStateVersion(version uint32) error {
	return m.KVPut(stateVersionKey, uint64(version))
}

// StateVersion returns the stored schema version and a boolean indicating
// whether the value was present.
func (m *Manager) StateVersion() (uint32, bool, error) {
	var stored uint64
	ok, err := m.KVGet(stateVersionKey, &stored)
	if err != nil || !ok {
		return 0, false, err
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// LogicRecord returns the active logic record, if any.
func (m *Manager) LogicRecord() (*LogicRecord, bool, error) {
	var record LogicRecord
	ok, err := m.KVGet(logicRecordKey, &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &record, true, nil
}

// SetLogicRecord replaces the active logic record.
func (m *Manager) SetLogicRecord(record *LogicRecord) error {
	if record == nil || record.Ref == "" {
		return fmt.Errorf("state: logic reference required")
	}
	return m.KVPut(logicRecordKey, record)
}

// EnsureStateVersion verifies that the on-disk state version matches the
// version supported by this binary. An empty state is accepted so a fresh data
// directory can be bootstrapped from genesis.
func EnsureStateVersion(tr *trie.Trie) error {
	if tr == nil {
		return fmt.Errorf("state: trie must not be nil")
	}
	version, ok, err := NewManager(tr).StateVersion()
	if err != nil {
		return err
	}
	if !ok || version == StateVersion {
		return nil
	}
	return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
}
