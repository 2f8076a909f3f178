package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	gethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// This allows the ledger to use any database backend (in-memory or persistent)
// while sharing a trie node database with the state layer.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Close() // A way to gracefully shut down the database connection.
	TrieDB() *triedb.Database
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	kv     ethdb.Database
	trieDB *triedb.Database
}

func NewMemDB() *MemDB {
	kv := rawdb.NewMemoryDatabase()
	return &MemDB{
		kv:     kv,
		trieDB: triedb.NewDatabase(kv, nil),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	return db.kv.Put(key, value)
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	ok, err := db.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return db.kv.Get(key)
}

// TrieDB exposes the trie node database layered on top of the store.
func (db *MemDB) TrieDB() *triedb.Database {
	return db.trieDB
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	kv     ethdb.Database
	trieDB *triedb.Database
}

const (
	levelDBCacheMB  = 16
	levelDBHandles  = 16
	levelDBMetricNS = "taxledger/db/"
)

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	store, err := gethleveldb.New(path, levelDBCacheMB, levelDBHandles, levelDBMetricNS, false)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	kv := rawdb.NewDatabase(store)
	return &LevelDB{kv: kv, trieDB: triedb.NewDatabase(kv, nil)}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.kv.Put(key, value)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.kv.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// TrieDB exposes the trie node database layered on top of the store.
func (ldb *LevelDB) TrieDB() *triedb.Database {
	return ldb.trieDB
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	_ = ldb.trieDB.Close()
	_ = ldb.kv.Close()
}
