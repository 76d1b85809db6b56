package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/modaio/stylist/core"
)

const (
	productsBucket   = "products"
	indexStateBucket = "index_state"
	vocabularyBucket = "vocabulary"

	indexStateKey = "catalog"
	vocabularyKey = "catalog"
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

// NewBoltStore creates a new BoltDB-backed store.
func NewBoltStore(dbPath string) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB at %s: %w", dbPath, err)
	}

	store := &BoltStore{db: db, path: dbPath}

	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

// initBuckets creates the required buckets if they don't exist.
func (b *BoltStore) initBuckets() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{productsBucket, indexStateBucket, vocabularyBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// SaveProduct stores a product.
func (b *BoltStore) SaveProduct(ctx context.Context, p core.Product) error {
	if err := core.ValidateProduct(p); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(productsBucket)).Put([]byte(p.ID), data)
	})
}

// SaveProductsBatch stores multiple products in a single transaction.
func (b *BoltStore) SaveProductsBatch(ctx context.Context, products []core.Product) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(productsBucket))
		for _, p := range products {
			if err := core.ValidateProduct(p); err != nil {
				return fmt.Errorf("invalid product %s: %w", p.ID, err)
			}
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to marshal product %s: %w", p.ID, err)
			}
			if err := bucket.Put([]byte(p.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadProduct retrieves a product by id.
func (b *BoltStore) LoadProduct(ctx context.Context, id string) (core.Product, error) {
	var p core.Product

	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(productsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return core.Product{}, err
	}

	return p, nil
}

// LoadProducts retrieves the whole catalog.
func (b *BoltStore) LoadProducts(ctx context.Context) ([]core.Product, error) {
	var products []core.Product

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(productsBucket)).ForEach(func(k, v []byte) error {
			var p core.Product
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("failed to unmarshal product %s: %w", string(k), err)
			}
			products = append(products, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return products, nil
}

// DeleteProduct removes a product.
func (b *BoltStore) DeleteProduct(ctx context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(productsBucket))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// SaveIndexState stores the serialized index snapshot.
func (b *BoltStore) SaveIndexState(ctx context.Context, data []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(indexStateBucket)).Put([]byte(indexStateKey), data)
	})
}

// LoadIndexState retrieves the serialized index snapshot.
func (b *BoltStore) LoadIndexState(ctx context.Context) ([]byte, error) {
	var data []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(indexStateBucket)).Get([]byte(indexStateKey))
		if v == nil {
			return fmt.Errorf("index state not found")
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// SaveVocabulary stores the serialized vocabulary.
func (b *BoltStore) SaveVocabulary(ctx context.Context, data []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(vocabularyBucket)).Put([]byte(vocabularyKey), data)
	})
}

// LoadVocabulary retrieves the serialized vocabulary.
func (b *BoltStore) LoadVocabulary(ctx context.Context) ([]byte, error) {
	var data []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(vocabularyBucket)).Get([]byte(vocabularyKey))
		if v == nil {
			return fmt.Errorf("vocabulary not found")
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
