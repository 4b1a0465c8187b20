package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is a DocumentStore backed by an embedded BadgerDB. This is the
// backend for desktop hosts, where the data directory travels with the app.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logging is too chatty for a library

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// NewBadgerMemoryStore opens an in-memory Badger database, mainly for tests
func NewBadgerMemoryStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger db: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) docKey(key string) []byte {
	return []byte("doc/" + key)
}

// Load returns the document stored under key, or ErrNotFound
func (s *BadgerStore) Load(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.docKey(key))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", key, err)
	}
	return data, nil
}

// Save overwrites the document stored under key
func (s *BadgerStore) Save(_ context.Context, key string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.docKey(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
