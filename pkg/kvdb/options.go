package kvdb

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultKeepLogFileNum is the default bound on retained write-ahead-log segments.
	DefaultKeepLogFileNum = 1000
	// DefaultBlockCacheSize is the default size of the engine block cache.
	DefaultBlockCacheSize = 64 << 20 // 64 MB
	// DefaultMaxOpenFiles is the default limit of file descriptors held by the engine.
	DefaultMaxOpenFiles = 16384
)

// Options is the immutable configuration snapshot captured when a database
// is opened. The zero value plus withDefaults yields a usable configuration.
type Options struct {
	// CreateIfMissing creates the database directory structure when the path
	// does not exist. When false, opening a nonexistent path fails with
	// ErrDatabaseNotFound.
	CreateIfMissing bool

	// KeepLogFileNum bounds the number of retained write-ahead-log segments,
	// controlling recovery cost vs. disk usage. Must be >= 1.
	// Only engines that retain obsolete log segments honor it (rocksdb);
	// the other engines delete obsolete segments eagerly and ignore it.
	KeepLogFileNum int

	// Engine selects the storage engine backing the database directory.
	// The choice is recorded in the directory and verified on reopen.
	Engine Engine

	// IgnoreHealth opens the database even if the previous session did not
	// shut down cleanly.
	IgnoreHealth bool

	// SyncWrites makes every write wait for the engine to sync it to disk.
	SyncWrites bool

	// BlockCacheSize overrides the size of the engine block cache in bytes.
	BlockCacheSize int64

	// MaxOpenFiles overrides the file descriptor limit of the engine.
	MaxOpenFiles int

	// Logger receives lifecycle log output. Defaults to a nop logger.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.KeepLogFileNum == 0 {
		o.KeepLogFileNum = DefaultKeepLogFileNum
	}
	if o.Engine == "" {
		o.Engine = EngineRocksDB
	}
	if o.BlockCacheSize == 0 {
		o.BlockCacheSize = DefaultBlockCacheSize
	}
	if o.MaxOpenFiles == 0 {
		o.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// validate fails fast on out-of-domain values, before any engine call.
func (o Options) validate() error {
	if o.KeepLogFileNum < 1 {
		return errors.Wrapf(ErrInvalidOption, "keepLogFileNum must be >= 1, got %d", o.KeepLogFileNum)
	}
	if _, err := EngineFromString(string(o.Engine)); err != nil {
		return errors.Wrap(ErrInvalidOption, err.Error())
	}
	if o.BlockCacheSize < 0 {
		return errors.Wrapf(ErrInvalidOption, "blockCacheSize must be positive, got %d", o.BlockCacheSize)
	}
	if o.MaxOpenFiles < 0 {
		return errors.Wrapf(ErrInvalidOption, "maxOpenFiles must be positive, got %d", o.MaxOpenFiles)
	}
	return nil
}
