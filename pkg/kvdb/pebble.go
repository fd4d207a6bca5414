package kvdb

import (
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/pkg/errors"
)

// pebbleStore adapts a pebble instance to the Store contract.
// Pebble deletes obsolete write-ahead-log segments eagerly, so
// KeepLogFileNum has no equivalent knob and is not translated.
type pebbleStore struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

func newPebbleStore(path string, opts Options) (Store, error) {

	cache := pebble.NewCache(opts.BlockCacheSize)
	defer cache.Unref()

	pebbleOpts := &pebble.Options{
		Cache:                       cache,
		L0CompactionThreshold:       2,
		L0StopWritesThreshold:       1000,
		LBaseMaxBytes:               64 << 20, // 64 MB
		Levels:                      make([]pebble.LevelOptions, 7),
		MaxConcurrentCompactions:    func() int { return 3 },
		MaxOpenFiles:                opts.MaxOpenFiles,
		MemTableSize:                64 << 20,
		MemTableStopWritesThreshold: 4,
	}

	for i := 0; i < len(pebbleOpts.Levels); i++ {
		l := &pebbleOpts.Levels[i]
		l.BlockSize = 32 << 10       // 32 KB
		l.IndexBlockSize = 256 << 10 // 256 KB
		l.FilterPolicy = bloom.FilterPolicy(10)
		l.FilterType = pebble.TableFilter
		if i > 0 {
			l.TargetFileSize = pebbleOpts.Levels[i-1].TargetFileSize * 2
		}
		l.EnsureDefaults()
	}
	pebbleOpts.Levels[6].FilterPolicy = nil

	pebbleOpts.EnsureDefaults()

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, classifyPebbleOpenError(err)
	}

	writeOpts := pebble.NoSync
	if opts.SyncWrites {
		writeOpts = pebble.Sync
	}

	return &pebbleStore{
		db:        db,
		writeOpts: writeOpts,
	}, nil
}

func classifyPebbleOpenError(err error) error {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "lock"):
		return errors.Wrap(ErrDatabaseLocked, msg)
	case pebble.IsCorruptionError(err), strings.Contains(msg, "corruption"):
		return errors.Wrap(ErrDatabaseCorrupted, msg)
	default:
		return err
	}
}

func (s *pebbleStore) Get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	value := make([]byte, len(v))
	copy(value, v)

	if err := closer.Close(); err != nil {
		return nil, err
	}

	return value, nil
}

func (s *pebbleStore) Has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, closer.Close()
}

func (s *pebbleStore) Set(key []byte, value []byte) error {
	return s.db.Set(key, value, s.writeOpts)
}

func (s *pebbleStore) Delete(key []byte) error {
	return s.db.Delete(key, s.writeOpts)
}

func (s *pebbleStore) IterateKeys(prefix []byte, consumer func(key []byte) bool) error {
	iterOpts := &pebble.IterOptions{}
	if len(prefix) > 0 {
		iterOpts.LowerBound = prefix
		iterOpts.UpperBound = prefixUpperBound(prefix)
	}

	it := s.db.NewIter(iterOpts)

	for it.First(); it.Valid(); it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())

		if !consumer(key) {
			break
		}
	}

	if err := it.Error(); err != nil {
		_ = it.Close()
		return err
	}

	return it.Close()
}

// prefixUpperBound returns the smallest key that is greater than every key
// starting with prefix, or nil if no such key exists (prefix is all 0xff).
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)

	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}

	return nil
}

func (s *pebbleStore) Flush() error {
	return s.db.Flush()
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}
