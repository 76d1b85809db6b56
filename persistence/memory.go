package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/modaio/stylist/core"
)

// MemoryStore implements Store with in-memory maps. Used for tests and
// ephemeral deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	products   map[string]core.Product
	indexState []byte
	vocabulary []byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]core.Product),
	}
}

// SaveProduct stores a product.
func (m *MemoryStore) SaveProduct(ctx context.Context, p core.Product) error {
	if err := core.ValidateProduct(p); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

// SaveProductsBatch stores multiple products in one critical section.
func (m *MemoryStore) SaveProductsBatch(ctx context.Context, products []core.Product) error {
	for _, p := range products {
		if err := core.ValidateProduct(p); err != nil {
			return fmt.Errorf("invalid product %s: %w", p.ID, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range products {
		m.products[p.ID] = p
	}
	return nil
}

// LoadProduct retrieves a product by id.
func (m *MemoryStore) LoadProduct(ctx context.Context, id string) (core.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.products[id]
	if !exists {
		return core.Product{}, fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
	}
	return p, nil
}

// LoadProducts retrieves the whole catalog.
func (m *MemoryStore) LoadProducts(ctx context.Context) ([]core.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := make([]core.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	return products, nil
}

// DeleteProduct removes a product.
func (m *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[id]; !exists {
		return fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
	}
	delete(m.products, id)
	return nil
}

// SaveIndexState stores the serialized index snapshot.
func (m *MemoryStore) SaveIndexState(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexState = append([]byte(nil), data...)
	return nil
}

// LoadIndexState retrieves the serialized index snapshot.
func (m *MemoryStore) LoadIndexState(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.indexState == nil {
		return nil, fmt.Errorf("index state not found")
	}
	return append([]byte(nil), m.indexState...), nil
}

// SaveVocabulary stores the serialized vocabulary.
func (m *MemoryStore) SaveVocabulary(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vocabulary = append([]byte(nil), data...)
	return nil
}

// LoadVocabulary retrieves the serialized vocabulary.
func (m *MemoryStore) LoadVocabulary(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.vocabulary == nil {
		return nil, fmt.Errorf("vocabulary not found")
	}
	return append([]byte(nil), m.vocabulary...), nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
