// Package client exposes the asynchronous text interface over kvdb
// databases. Every operation validates its handle locally, dispatches the
// engine call off the caller's goroutine and resolves a Future with the
// result. Handles are opaque tokens into a registry of live databases, so
// use-after-close is a cheap local lookup failure instead of a dangling
// engine reference.
package client

import (
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/gohornet/go-kvdb/pkg/kvdb"
)

var (
	// ErrHandleClosed is returned for any operation on a closed or unknown handle.
	ErrHandleClosed = errors.New("database handle closed")
)

// Handle is an opaque token for an open database.
type Handle uint32

// Client dispatches operations against open databases.
// The zero value is not usable; construct it with New.
type Client struct {
	mu sync.Mutex
	// paths holds every path with a live or currently opening handle, so
	// concurrent Connect calls on the same path cannot both pass the
	// uniqueness check before either one registers
	paths  map[string]struct{}
	dbs    map[Handle]*kvdb.Database
	nextID *atomic.Uint32
	log    *zap.Logger
}

// Option configures a Client.
type Option func(c *Client)

// WithLogger sets the logger used by the client and all databases it opens.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a new Client.
func New(opts ...Option) *Client {
	c := &Client{
		paths:  make(map[string]struct{}),
		dbs:    make(map[Handle]*kvdb.Database),
		nextID: atomic.NewUint32(0),
		log:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect opens the database directory at path and returns a future that
// resolves with a handle to it. At most one live handle may exist per path;
// a second Connect on an already connected path fails with
// kvdb.ErrDatabaseLocked.
func (c *Client) Connect(path string, opts kvdb.Options) *Future[Handle] {
	f := newFuture[Handle]()

	go func() {
		if !c.reservePath(path) {
			f.resolve(0, errors.Wrapf(kvdb.ErrDatabaseLocked, "%s", path))
			return
		}

		if opts.Logger == nil {
			opts.Logger = c.log
		}

		db, err := kvdb.Open(path, opts)
		if err != nil {
			c.releasePath(path)
			f.resolve(0, err)
			return
		}

		c.mu.Lock()
		handle := Handle(c.nextID.Inc())
		c.dbs[handle] = db
		c.mu.Unlock()

		f.resolve(handle, nil)
	}()

	return f
}

// GetItem returns a future that resolves with the value stored under key,
// or nil when the key is absent. Absence is a regular outcome, not an error.
func (c *Client) GetItem(handle Handle, key string) *Future[*string] {
	f := newFuture[*string]()

	go func() {
		if err := validTexts(key); err != nil {
			f.resolve(nil, err)
			return
		}

		db, err := c.database(handle)
		if err != nil {
			f.resolve(nil, err)
			return
		}

		value, err := db.Get([]byte(key))
		if errors.Is(err, kvdb.ErrKeyNotFound) {
			f.resolve(nil, nil)
			return
		}
		if err != nil {
			f.resolve(nil, err)
			return
		}

		if !utf8.Valid(value) {
			f.resolve(nil, errors.Wrapf(kvdb.ErrNotUTF8, "value of key %q", key))
			return
		}

		text := string(value)
		f.resolve(&text, nil)
	}()

	return f
}

// SetItem stores value under key and returns a future that resolves when
// the write reached the engine.
func (c *Client) SetItem(handle Handle, key string, value string) *Future[struct{}] {
	f := newFuture[struct{}]()

	go func() {
		if err := validTexts(key, value); err != nil {
			f.resolve(struct{}{}, err)
			return
		}

		db, err := c.database(handle)
		if err != nil {
			f.resolve(struct{}{}, err)
			return
		}

		f.resolve(struct{}{}, db.Set([]byte(key), []byte(value)))
	}()

	return f
}

// GetKeys returns a future that resolves with all keys in the engine's byte
// order, restricted to keys starting with the optional prefix.
func (c *Client) GetKeys(handle Handle, prefix ...string) *Future[[]string] {
	f := newFuture[[]string]()

	keyPrefix := ""
	if len(prefix) > 0 {
		keyPrefix = prefix[0]
	}

	go func() {
		if err := validTexts(keyPrefix); err != nil {
			f.resolve(nil, err)
			return
		}

		db, err := c.database(handle)
		if err != nil {
			f.resolve(nil, err)
			return
		}

		keys, err := db.Keys([]byte(keyPrefix))
		if err != nil {
			f.resolve(nil, err)
			return
		}

		texts := make([]string, 0, len(keys))
		for _, key := range keys {
			if !utf8.Valid(key) {
				f.resolve(nil, errors.Wrapf(kvdb.ErrNotUTF8, "stored key %x", key))
				return
			}
			texts = append(texts, string(key))
		}

		f.resolve(texts, nil)
	}()

	return f
}

// RemoveItem deletes key and returns a future that resolves when the delete
// reached the engine. Removing an absent key is not an error.
func (c *Client) RemoveItem(handle Handle, key string) *Future[struct{}] {
	f := newFuture[struct{}]()

	go func() {
		if err := validTexts(key); err != nil {
			f.resolve(struct{}{}, err)
			return
		}

		db, err := c.database(handle)
		if err != nil {
			f.resolve(struct{}{}, err)
			return
		}

		f.resolve(struct{}{}, db.Delete([]byte(key)))
	}()

	return f
}

// Size returns a future that resolves with the on-disk size of the database
// directory in bytes.
func (c *Client) Size(handle Handle) *Future[int64] {
	f := newFuture[int64]()

	go func() {
		db, err := c.database(handle)
		if err != nil {
			f.resolve(0, err)
			return
		}

		size, err := db.Size()
		f.resolve(size, err)
	}()

	return f
}

// Close invalidates the handle, drains in-flight operations and closes the
// underlying engine. Exactly one concurrent closer performs the engine
// close; all others fail with ErrHandleClosed.
func (c *Client) Close(handle Handle) *Future[struct{}] {
	f := newFuture[struct{}]()

	go func() {
		c.mu.Lock()
		db, ok := c.dbs[handle]
		if ok {
			delete(c.dbs, handle)
		}
		c.mu.Unlock()

		if !ok {
			f.resolve(struct{}{}, errors.Wrapf(ErrHandleClosed, "handle %d", handle))
			return
		}

		err := db.Close()

		// the engine lock is only gone once the engine close finished
		c.releasePath(db.Path())

		f.resolve(struct{}{}, err)
	}()

	return f
}

// Destroy removes the database directory at path. Fails with
// kvdb.ErrDatabaseLocked while a live handle still points at the path.
func (c *Client) Destroy(path string) *Future[struct{}] {
	f := newFuture[struct{}]()

	go func() {
		if c.pathConnected(path) {
			f.resolve(struct{}{}, errors.Wrapf(kvdb.ErrDatabaseLocked, "%s", path))
			return
		}

		f.resolve(struct{}{}, kvdb.Destroy(path))
	}()

	return f
}

// database resolves a handle to its live database, without touching the
// engine. Unknown and closed handles are indistinguishable: both were
// removed from the registry.
func (c *Client) database(handle Handle) (*kvdb.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.dbs[handle]
	if !ok {
		return nil, errors.Wrapf(ErrHandleClosed, "handle %d", handle)
	}

	return db, nil
}

// reservePath claims path for a single handle. It fails when another live
// or currently opening handle already claimed it.
func (c *Client) reservePath(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.paths[path]; ok {
		return false
	}
	c.paths[path] = struct{}{}

	return true
}

func (c *Client) releasePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.paths, path)
}

func (c *Client) pathConnected(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.paths[path]

	return ok
}

func validTexts(texts ...string) error {
	for _, text := range texts {
		if !utf8.ValidString(text) {
			return errors.Wrapf(kvdb.ErrNotUTF8, "%q", text)
		}
	}

	return nil
}
