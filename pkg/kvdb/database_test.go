package kvdb

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{Engine: EngineMapDB})
	require.NoError(t, err)

	return db
}

func TestDatabaseReadWrite(t *testing.T) {
	db := newTestDatabase(t)
	defer func() { _ = db.Close() }()

	keys, err := db.Keys(nil)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = db.Get([]byte("key1"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, db.Set([]byte("key1"), []byte("value1")))

	value, err := db.Get([]byte("key1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)

	keys, err = db.Keys(nil)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("key1")}, keys)

	require.NoError(t, db.Delete([]byte("key1")))
	_, err = db.Get([]byte("key1"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDatabaseUseAfterClose(t *testing.T) {
	db := newTestDatabase(t)

	require.NoError(t, db.Close())

	_, err := db.Get([]byte("key"))
	require.ErrorIs(t, err, ErrDatabaseClosed)
	require.ErrorIs(t, db.Set([]byte("key"), []byte("value")), ErrDatabaseClosed)
	require.ErrorIs(t, db.Delete([]byte("key")), ErrDatabaseClosed)
	_, err = db.Keys(nil)
	require.ErrorIs(t, err, ErrDatabaseClosed)
	_, err = db.Size()
	require.ErrorIs(t, err, ErrDatabaseClosed)

	// a second close must not reach the engine again
	require.ErrorIs(t, db.Close(), ErrDatabaseClosed)
}

func TestDatabaseConcurrentClose(t *testing.T) {
	db := newTestDatabase(t)

	const closers = 16

	var wg sync.WaitGroup
	results := make(chan error, closers)

	for i := 0; i < closers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- db.Close()
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrDatabaseClosed)
	}

	// exactly one closer performed the engine close
	assert.Equal(t, 1, succeeded)
}

func TestDatabaseCreateIfMissing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	_, err := Open(dbPath, Options{Engine: EnginePebble})
	require.ErrorIs(t, err, ErrDatabaseNotFound)

	db, err := Open(dbPath, Options{Engine: EnginePebble, CreateIfMissing: true, KeepLogFileNum: 10})
	require.NoError(t, err)
	assert.Equal(t, EnginePebble, db.Engine())
	assert.Equal(t, dbPath, db.Path())

	require.NoError(t, db.Set([]byte("key1"), []byte("value1")))
	require.NoError(t, db.Close())

	// reopening without the create flag now succeeds and sees the data
	db, err = Open(dbPath, Options{Engine: EnginePebble})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	value, err := db.Get([]byte("key1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)
}

func TestDatabaseEngineMismatchOnReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath, Options{Engine: EnginePebble, CreateIfMissing: true})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(dbPath, Options{Engine: EngineBadger})
	require.ErrorIs(t, err, ErrEngineMismatch)
}

func TestDatabaseUncleanShutdownDetected(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath, Options{Engine: EnginePebble, CreateIfMissing: true})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// fake a crash of the previous session
	require.NoError(t, markDatabaseUnhealthy(dbPath))

	_, err = Open(dbPath, Options{Engine: EnginePebble})
	require.ErrorIs(t, err, ErrDatabaseCorrupted)

	// opting in still opens it and a clean close clears the marker
	db, err = Open(dbPath, Options{Engine: EnginePebble, IgnoreHealth: true})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	unhealthy, err := isDatabaseUnhealthy(dbPath)
	require.NoError(t, err)
	assert.False(t, unhealthy)
}

func TestDatabaseKeysOrderAndPrefix(t *testing.T) {
	db := newTestDatabase(t)
	defer func() { _ = db.Close() }()

	for _, key := range []string{"b", "a", "ab", "aa"} {
		require.NoError(t, db.Set([]byte(key), []byte("v")))
	}

	keys, err := db.Keys(nil)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("aa"), []byte("ab"), []byte("b")}, keys)

	keys, err = db.Keys([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("aa"), []byte("ab")}, keys)
}

func TestDestroy(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	require.ErrorIs(t, Destroy(dbPath), ErrDatabaseNotFound)

	db, err := Open(dbPath, Options{Engine: EnginePebble, CreateIfMissing: true})
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte("key"), []byte("value")))
	require.NoError(t, db.Close())

	require.NoError(t, Destroy(dbPath))

	exists, err := DatabaseExists(dbPath)
	require.NoError(t, err)
	assert.False(t, exists)
}
