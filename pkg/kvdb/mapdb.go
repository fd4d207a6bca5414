package kvdb

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// mapDBStore is an ordered in-memory engine, used for tests and ephemeral
// databases. It keeps the same byte-order iteration semantics as the
// persistent engines.
type mapDBStore struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

type mapDBItem struct {
	key   []byte
	value []byte
}

func (i *mapDBItem) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(*mapDBItem).key) < 0
}

func newMapDBStore() Store {
	return &mapDBStore{
		tree: btree.New(32),
	}
}

func (s *mapDBStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.tree.Get(&mapDBItem{key: key})
	if item == nil {
		return nil, ErrKeyNotFound
	}

	stored := item.(*mapDBItem).value
	value := make([]byte, len(stored))
	copy(value, stored)

	return value, nil
}

func (s *mapDBStore) Has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Has(&mapDBItem{key: key}), nil
}

func (s *mapDBStore) Set(key []byte, value []byte) error {
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.ReplaceOrInsert(&mapDBItem{key: keyCopy, value: valueCopy})

	return nil
}

func (s *mapDBStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Delete(&mapDBItem{key: key})

	return nil
}

func (s *mapDBStore) IterateKeys(prefix []byte, consumer func(key []byte) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	iterate := func(item btree.Item) bool {
		storedKey := item.(*mapDBItem).key
		if len(prefix) > 0 && !bytes.HasPrefix(storedKey, prefix) {
			return false
		}

		key := make([]byte, len(storedKey))
		copy(key, storedKey)

		return consumer(key)
	}

	if len(prefix) > 0 {
		s.tree.AscendGreaterOrEqual(&mapDBItem{key: prefix}, iterate)
	} else {
		s.tree.Ascend(iterate)
	}

	return nil
}

func (s *mapDBStore) Flush() error {
	return nil
}

func (s *mapDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Clear(false)

	return nil
}
