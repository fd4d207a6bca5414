package kvdb

import (
	"runtime"
	"strings"

	"github.com/linxGnu/grocksdb"
	"github.com/pkg/errors"
)

// rocksDBStore adapts a native RocksDB instance to the Store contract.
// RocksDB is the only supported engine that retains obsolete write-ahead-log
// segments, so KeepLogFileNum is translated verbatim.
type rocksDBStore struct {
	db     *grocksdb.DB
	dbOpts *grocksdb.Options
	cache  *grocksdb.Cache
	ro     *grocksdb.ReadOptions
	wo     *grocksdb.WriteOptions
	fo     *grocksdb.FlushOptions
}

func newRocksDBStore(path string, opts Options) (Store, error) {

	cache := grocksdb.NewLRUCache(uint64(opts.BlockCacheSize))

	blockOpts := grocksdb.NewDefaultBlockBasedTableOptions()
	blockOpts.SetBlockCache(cache)

	dbOpts := grocksdb.NewDefaultOptions()
	dbOpts.SetCreateIfMissing(opts.CreateIfMissing)
	dbOpts.SetKeepLogFileNum(uint(opts.KeepLogFileNum))
	dbOpts.SetMaxOpenFiles(opts.MaxOpenFiles)
	dbOpts.SetBlockBasedTableFactory(blockOpts)
	dbOpts.IncreaseParallelism(runtime.NumCPU() - 1)

	db, err := grocksdb.OpenDb(dbOpts, path)
	if err != nil {
		dbOpts.Destroy()
		cache.Destroy()
		return nil, classifyRocksDBOpenError(err)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(opts.SyncWrites)

	return &rocksDBStore{
		db:     db,
		dbOpts: dbOpts,
		cache:  cache,
		ro:     grocksdb.NewDefaultReadOptions(),
		wo:     wo,
		fo:     grocksdb.NewDefaultFlushOptions(),
	}, nil
}

// classifyRocksDBOpenError maps the engine's open failures onto the error
// taxonomy. RocksDB reports these conditions as status strings only.
func classifyRocksDBOpenError(err error) error {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "lock"):
		return errors.Wrap(ErrDatabaseLocked, msg)
	case strings.Contains(msg, "Corruption"):
		return errors.Wrap(ErrDatabaseCorrupted, msg)
	case strings.Contains(msg, "does not exist"), strings.Contains(msg, "No such file"):
		return errors.Wrap(ErrDatabaseNotFound, msg)
	default:
		return err
	}
}

func (s *rocksDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(s.ro, key)
	if err != nil {
		return nil, err
	}
	defer v.Free()

	if !v.Exists() {
		return nil, ErrKeyNotFound
	}

	value := make([]byte, len(v.Data()))
	copy(value, v.Data())

	return value, nil
}

func (s *rocksDBStore) Has(key []byte) (bool, error) {
	v, err := s.db.Get(s.ro, key)
	if err != nil {
		return false, err
	}
	defer v.Free()

	return v.Exists(), nil
}

func (s *rocksDBStore) Set(key []byte, value []byte) error {
	return s.db.Put(s.wo, key, value)
}

func (s *rocksDBStore) Delete(key []byte) error {
	return s.db.Delete(s.wo, key)
}

func (s *rocksDBStore) IterateKeys(prefix []byte, consumer func(key []byte) bool) error {
	it := s.db.NewIterator(s.ro)
	defer it.Close()

	if len(prefix) > 0 {
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if !consumeIteratorKey(it, consumer) {
				break
			}
		}
	} else {
		for it.SeekToFirst(); it.Valid(); it.Next() {
			if !consumeIteratorKey(it, consumer) {
				break
			}
		}
	}

	return it.Err()
}

func consumeIteratorKey(it *grocksdb.Iterator, consumer func(key []byte) bool) bool {
	k := it.Key()
	key := make([]byte, len(k.Data()))
	copy(key, k.Data())
	k.Free()

	return consumer(key)
}

func (s *rocksDBStore) Flush() error {
	return s.db.Flush(s.fo)
}

func (s *rocksDBStore) Close() error {
	s.db.Close()
	s.dbOpts.Destroy()
	s.cache.Destroy()
	s.ro.Destroy()
	s.wo.Destroy()
	s.fo.Destroy()

	return nil
}
