package namestore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "local/"

// BadgerBackend stores values in an embedded Badger database.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database in dir.
func OpenBadger(dir string) (*BadgerBackend, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerBackend{db: db}, nil
}

// OpenBadgerInMemory opens a Badger database that is discarded on Close.
func OpenBadgerInMemory() (*BadgerBackend, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

// Get implements Backend.
func (b *BadgerBackend) Get(key string) (string, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(value), true, nil
}

// Put implements Backend.
func (b *BadgerBackend) Put(key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Close implements Backend.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
