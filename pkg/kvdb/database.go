// Package kvdb provides a handle layer over embedded, persistent, ordered
// key-value storage engines. A Database binds one engine instance to one
// filesystem directory, guards it against use-after-close and guarantees
// the engine is closed at most once.
package kvdb

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Database is an open database directory backed by a storage engine.
// It exclusively owns the engine instance. All methods are safe for
// concurrent use; after Close every operation fails with ErrDatabaseClosed.
type Database struct {
	// held read-side by operations for their whole duration and write-side
	// by Close, so Close drains all in-flight engine calls
	mu sync.RWMutex

	store  Store
	path   string
	engine Engine
	log    *zap.Logger
	closed *atomic.Bool
}

// Open opens the database directory at path. The directory is created when
// it does not exist and opts.CreateIfMissing is set, otherwise Open fails
// with ErrDatabaseNotFound. The engine that created an existing directory
// is verified against opts.Engine.
func Open(path string, opts Options) (*Database, error) {
	opts = opts.withDefaults()

	if err := opts.validate(); err != nil {
		return nil, err
	}

	dbExisted, err := DatabaseExists(path)
	if err != nil {
		return nil, err
	}

	engine, err := CheckEngine(path, opts.CreateIfMissing, opts.Engine)
	if err != nil {
		return nil, err
	}

	if engine != EngineMapDB && dbExisted && !opts.IgnoreHealth {
		unhealthy, err := isDatabaseUnhealthy(path)
		if err != nil {
			return nil, err
		}
		if unhealthy {
			return nil, errors.Wrapf(ErrDatabaseCorrupted, "(%s) was not shut down correctly", path)
		}
	}

	store, err := newStoreForEngine(engine, path, opts)
	if err != nil {
		return nil, err
	}

	if engine != EngineMapDB {
		if err := markDatabaseUnhealthy(path); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	opts.Logger.Info("database opened",
		zap.String("path", path),
		zap.String("engine", string(engine)),
	)

	return &Database{
		store:  store,
		path:   path,
		engine: engine,
		log:    opts.Logger,
		closed: atomic.NewBool(false),
	}, nil
}

// Path returns the filesystem path of the database directory.
func (db *Database) Path() string {
	return db.path
}

// Engine returns the storage engine backing the database.
func (db *Database) Engine() Engine {
	return db.engine
}

// Get returns the raw bytes stored under key.
// Returns ErrKeyNotFound when the key is absent.
func (db *Database) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed.Load() {
		return nil, ErrDatabaseClosed
	}

	return db.store.Get(key)
}

// Has checks whether key is present.
func (db *Database) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed.Load() {
		return false, ErrDatabaseClosed
	}

	return db.store.Has(key)
}

// Set stores value under key.
func (db *Database) Set(key []byte, value []byte) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed.Load() {
		return ErrDatabaseClosed
	}

	return db.store.Set(key, value)
}

// Delete removes key. Deleting an absent key is not an error.
func (db *Database) Delete(key []byte) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed.Load() {
		return ErrDatabaseClosed
	}

	return db.store.Delete(key)
}

// Keys materializes all keys in the engine's byte order, restricted to keys
// starting with prefix if prefix is non-empty. The sequence reflects the
// engine's own iterator consistency; concurrent mutations may or may not
// be visible.
func (db *Database) Keys(prefix []byte) ([][]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed.Load() {
		return nil, ErrDatabaseClosed
	}

	keys := make([][]byte, 0)
	if err := db.store.IterateKeys(prefix, func(key []byte) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		return nil, err
	}

	return keys, nil
}

// Size returns the on-disk size of the database directory in bytes.
// An in-memory database has no directory and reports zero.
func (db *Database) Size() (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed.Load() {
		return 0, ErrDatabaseClosed
	}

	if db.engine == EngineMapDB {
		return 0, nil
	}

	return FolderSize(db.path)
}

// Close flushes buffered writes, releases the engine instance and marks
// the directory as cleanly shut down. The first caller performs the engine
// close; every later call fails with ErrDatabaseClosed. Close waits for
// all in-flight operations before touching the engine.
func (db *Database) Close() error {
	if !db.closed.CAS(false, true) {
		return ErrDatabaseClosed
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.log.Info("syncing database to disk...", zap.String("path", db.path))

	if err := db.store.Flush(); err != nil {
		_ = db.store.Close()
		return errors.Wrap(err, "flushing database failed")
	}

	if err := db.store.Close(); err != nil {
		return errors.Wrap(err, "closing database failed")
	}

	if db.engine != EngineMapDB {
		if err := markDatabaseHealthy(db.path); err != nil {
			return err
		}
	}

	db.log.Info("syncing database to disk... done", zap.String("path", db.path))

	return nil
}

// Destroy removes the database directory at path. The database must not be
// open; callers holding a handle have to close it first.
func Destroy(path string) error {
	exists, err := DatabaseExists(path)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(ErrDatabaseNotFound, "%s", path)
	}

	return os.RemoveAll(path)
}
