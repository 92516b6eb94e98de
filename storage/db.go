package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned by Get when no value exists for the key. All
// backends normalise their own missing-key errors to this sentinel so callers
// can test with errors.Is regardless of the configured backend.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store. The ledger state
// manager is written against this interface so the daemon can run on an
// in-memory map, LevelDB, or BoltDB without code changes.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Close() error
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() error {
	return nil
}

// --- LevelDB (default persistent backend) ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Close closes the database connection.
func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}

// --- BoltDB (alternative persistent backend) ---

var boltBucket = []byte("state")

// BoltDB is a persistent key-value store backed by a single bbolt bucket.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates or opens a bbolt database at the specified path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltDB{db: db}, nil
}

func (bdb *BoltDB) Put(key []byte, value []byte) error {
	return bdb.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

func (bdb *BoltDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := bdb.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket(boltBucket).Get(key)
		if stored == nil {
			return ErrNotFound
		}
		value = append([]byte(nil), stored...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (bdb *BoltDB) Close() error {
	return bdb.db.Close()
}
