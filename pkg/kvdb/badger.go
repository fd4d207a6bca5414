package kvdb

import (
	"strings"

	badgerDB "github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"
	"github.com/pkg/errors"
)

// badgerStore adapts a badger instance to the Store contract.
// Badger's value log is garbage collected by its own policy, so
// KeepLogFileNum is not translated.
type badgerStore struct {
	db *badgerDB.DB
}

func newBadgerStore(path string, opts Options) (Store, error) {

	badgerOpts := badgerDB.DefaultOptions(path)
	badgerOpts.Logger = nil

	badgerOpts = badgerOpts.
		WithSyncWrites(opts.SyncWrites).
		WithNumCompactors(2).
		WithMaxCacheSize(opts.BlockCacheSize).
		WithCompression(options.None)

	db, err := badgerDB.Open(badgerOpts)
	if err != nil {
		return nil, classifyBadgerOpenError(err)
	}

	return &badgerStore{db: db}, nil
}

func classifyBadgerOpenError(err error) error {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "lock"):
		return errors.Wrap(ErrDatabaseLocked, msg)
	case strings.Contains(msg, "checksum"), strings.Contains(msg, "corrupt"), strings.Contains(msg, "MANIFEST"):
		return errors.Wrap(ErrDatabaseCorrupted, msg)
	default:
		return err
	}
}

func (s *badgerStore) Get(key []byte) ([]byte, error) {
	var value []byte

	err := s.db.View(func(txn *badgerDB.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badgerDB.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *badgerStore) Has(key []byte) (bool, error) {
	err := s.db.View(func(txn *badgerDB.Txn) error {
		_, err := txn.Get(key)
		return err
	})

	if errors.Is(err, badgerDB.ErrKeyNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (s *badgerStore) Set(key []byte, value []byte) error {
	return s.db.Update(func(txn *badgerDB.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *badgerStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badgerDB.Txn) error {
		return txn.Delete(key)
	})
}

func (s *badgerStore) IterateKeys(prefix []byte, consumer func(key []byte) bool) error {
	return s.db.View(func(txn *badgerDB.Txn) error {
		iterOpts := badgerDB.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = prefix

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if !consumer(it.Item().KeyCopy(nil)) {
				break
			}
		}

		return nil
	})
}

func (s *badgerStore) Flush() error {
	return s.db.Sync()
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
