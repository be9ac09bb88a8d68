package handler

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/rl1809/storefront-ledger/internal/adapter/storage"
	"github.com/rl1809/storefront-ledger/internal/adapter/storage/storagetest"
	"github.com/rl1809/storefront-ledger/internal/core/service"
)

// memoryIdempotency mirrors the Redis adapter's claim semantics in memory.
type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]string)}
}

func (m *memoryIdempotency) Claim(_ context.Context, key string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.keys[key]; ok {
		return false, v, nil
	}
	m.keys[key] = ""
	return true, "", nil
}

func (m *memoryIdempotency) Complete(_ context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = orderID
	return nil
}

func (m *memoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type fixture struct {
	store   *storage.MySQLAdapter
	service *service.OrderService
}

// newFixture seeds p1 (10.00, stock 7) and p2 (2.50, stock 1).
func newFixture(t *testing.T) *fixture {
	t.Helper()

	_, store := storagetest.NewSQLite(t)
	storagetest.SeedProduct(t, store, "p1", "Widget", "10.00", 7)
	storagetest.SeedProduct(t, store, "p2", "Gadget", "2.50", 1)

	ledger := service.NewLedger(store, "storefront.orders", zap.NewNop())
	svc := service.NewOrderService(ledger, store, newMemoryIdempotency(), zap.NewNop(), 0)
	return &fixture{store: store, service: svc}
}

func (f *fixture) httpHandler() *HTTPHandler {
	return NewHTTPHandler(f.service, f.store, f.store, zap.NewNop())
}
