package kvdb

// Store is the uniform contract every storage engine adapter implements.
// A Store is exclusively owned by the Database that created it; no other
// component holds a reference to the native engine instance.
//
// All methods are safe for concurrent use as long as Close has not been
// called. Close must be called at most once.
type Store interface {
	// Get returns the value stored under key.
	// Returns ErrKeyNotFound when the key is absent.
	Get(key []byte) ([]byte, error)

	// Has checks whether key is present without reading its value.
	Has(key []byte) (bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(key []byte, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// IterateKeys calls consumer for every key in the engine's byte order,
	// restricted to keys starting with prefix if prefix is non-empty.
	// Iteration stops early when the consumer returns false.
	// The underlying cursor is always released before IterateKeys returns,
	// also when an error is encountered mid-iteration.
	IterateKeys(prefix []byte, consumer func(key []byte) bool) error

	// Flush syncs any buffered writes to disk.
	Flush() error

	// Close flushes and releases all engine-held resources.
	Close() error
}
