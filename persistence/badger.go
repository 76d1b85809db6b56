package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/modaio/stylist/core"
)

const (
	productKeyPrefix = "product:"
	indexStateDBKey  = "index_state:catalog"
	vocabularyDBKey  = "vocabulary:catalog"
)

// BadgerStore implements Store using BadgerDB. Suited to larger catalogs than
// Bolt thanks to its LSM write path.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore creates a new BadgerDB-backed store. An empty path opens an
// in-memory database.
func NewBadgerStore(dbPath string) (*BadgerStore, error) {
	var opts badger.Options
	if dbPath == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		opts = badger.DefaultOptions(dbPath)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dbPath, err)
	}

	return &BadgerStore{db: db, path: dbPath}, nil
}

func productKey(id string) []byte {
	return []byte(productKeyPrefix + id)
}

// SaveProduct stores a product.
func (b *BadgerStore) SaveProduct(ctx context.Context, p core.Product) error {
	if err := core.ValidateProduct(p); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(productKey(p.ID), data)
	})
}

// SaveProductsBatch stores multiple products using a write batch.
func (b *BadgerStore) SaveProductsBatch(ctx context.Context, products []core.Product) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, p := range products {
		if err := core.ValidateProduct(p); err != nil {
			return fmt.Errorf("invalid product %s: %w", p.ID, err)
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal product %s: %w", p.ID, err)
		}
		if err := wb.Set(productKey(p.ID), data); err != nil {
			return err
		}
	}

	return wb.Flush()
}

// LoadProduct retrieves a product by id.
func (b *BadgerStore) LoadProduct(ctx context.Context, id string) (core.Product, error) {
	var p core.Product

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(productKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return core.Product{}, err
	}

	return p, nil
}

// LoadProducts retrieves the whole catalog.
func (b *BadgerStore) LoadProducts(ctx context.Context) ([]core.Product, error) {
	var products []core.Product

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(productKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var p core.Product
				if err := json.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("failed to unmarshal product: %w", err)
				}
				products = append(products, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return products, nil
}

// DeleteProduct removes a product.
func (b *BadgerStore) DeleteProduct(ctx context.Context, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(productKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
			}
			return err
		}
		return txn.Delete(productKey(id))
	})
}

// SaveIndexState stores the serialized index snapshot.
func (b *BadgerStore) SaveIndexState(ctx context.Context, data []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(indexStateDBKey), data)
	})
}

// LoadIndexState retrieves the serialized index snapshot.
func (b *BadgerStore) LoadIndexState(ctx context.Context) ([]byte, error) {
	return b.loadBlob(indexStateDBKey, "index state")
}

// SaveVocabulary stores the serialized vocabulary.
func (b *BadgerStore) SaveVocabulary(ctx context.Context, data []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(vocabularyDBKey), data)
	})
}

// LoadVocabulary retrieves the serialized vocabulary.
func (b *BadgerStore) LoadVocabulary(ctx context.Context) ([]byte, error) {
	return b.loadBlob(vocabularyDBKey, "vocabulary")
}

func (b *BadgerStore) loadBlob(key, what string) ([]byte, error) {
	var data []byte

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%s not found", what)
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
