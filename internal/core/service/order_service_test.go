package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
	"github.com/rl1809/storefront-ledger/internal/port"
)

type fakeIdempotency struct {
	mu       sync.Mutex
	keys     map[string]string
	released []string
	claimErr error
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: make(map[string]string)}
}

func (f *fakeIdempotency) Claim(_ context.Context, key string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, "", f.claimErr
	}
	if v, ok := f.keys[key]; ok {
		return false, v, nil
	}
	f.keys[key] = ""
	return true, "", nil
}

func (f *fakeIdempotency) Complete(_ context.Context, key, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = orderID
	return nil
}

func (f *fakeIdempotency) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	f.released = append(f.released, key)
	return nil
}

// blockingUnitOfWork never completes before its context does.
type blockingUnitOfWork struct{}

func (blockingUnitOfWork) Within(ctx context.Context, _ func(port.LedgerTx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

// ackLostUnitOfWork commits the first unit of work and then reports the store
// as unavailable, as if the commit acknowledgement never arrived.
type ackLostUnitOfWork struct {
	store port.UnitOfWork
	lost  atomic.Bool
}

func (u *ackLostUnitOfWork) Within(ctx context.Context, fn func(port.LedgerTx) error) error {
	if err := u.store.Within(ctx, fn); err != nil {
		return err
	}
	if u.lost.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: commit ack lost", domain.ErrStoreUnavailable)
	}
	return nil
}

// stallingTx blocks the outbox write until the unit of work's context ends.
type stallingTx struct{ port.LedgerTx }

func (stallingTx) InsertOutboxEvent(ctx context.Context, _ domain.OutboxEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

type stallingUnitOfWork struct{ store port.UnitOfWork }

func (u stallingUnitOfWork) Within(ctx context.Context, fn func(port.LedgerTx) error) error {
	return u.store.Within(ctx, func(tx port.LedgerTx) error { return fn(stallingTx{tx}) })
}

type unreachableOrders struct{ port.OrderRepository }

func (unreachableOrders) FindOrderIDByIdempotencyKey(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
}

func newOrderService(t *testing.T, idem port.IdempotencyStore) (*OrderService, *ledgerEnv) {
	t.Helper()
	env := newLedgerEnv(t)
	return NewOrderService(env.ledger, env.store, idem, zap.NewNop(), time.Second), env
}

func TestOrderService_PlaceAndRead(t *testing.T) {
	svc, _ := newOrderService(t, nil)
	ctx := context.Background()

	orderID, err := svc.PlaceOrder(ctx, validSubmission())
	require.NoError(t, err)

	order, err := svc.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "c1", order.CustomerID)

	orders, err := svc.ListOrders(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0].ID)

	orders, err = svc.ListOrders(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = svc.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = svc.ListOrders(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestOrderService_InvalidSubmissionTouchesNothing(t *testing.T) {
	idem := newFakeIdempotency()
	svc, env := newOrderService(t, idem)
	before := env.counts(t)

	sub := validSubmission()
	sub.IdempotencyKey = "k1"
	sub.Lines[0].Quantity = 0

	_, err := svc.PlaceOrder(context.Background(), sub)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, before, env.counts(t))
	assert.Empty(t, idem.keys, "validation runs before the key is claimed")
}

func TestOrderService_IdempotentReplay(t *testing.T) {
	idem := newFakeIdempotency()
	svc, env := newOrderService(t, idem)
	ctx := context.Background()

	sub := validSubmission()
	sub.IdempotencyKey = "cart-1"

	first, err := svc.PlaceOrder(ctx, sub)
	require.NoError(t, err)
	second, err := svc.PlaceOrder(ctx, sub)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 5, env.stock(t, "p1"))
	assert.Equal(t, 1, env.counts(t)["orders"])
}

func TestOrderService_InFlightKeyIsDuplicate(t *testing.T) {
	idem := newFakeIdempotency()
	idem.keys["cart-2"] = ""
	svc, _ := newOrderService(t, idem)

	sub := validSubmission()
	sub.IdempotencyKey = "cart-2"

	_, err := svc.PlaceOrder(context.Background(), sub)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)
}

func TestOrderService_FailedAttemptReleasesKey(t *testing.T) {
	idem := newFakeIdempotency()
	svc, _ := newOrderService(t, idem)
	ctx := context.Background()

	sub := validSubmission()
	sub.IdempotencyKey = "cart-3"
	sub.TotalPrice = price("19.00")

	_, err := svc.PlaceOrder(ctx, sub)
	assert.ErrorIs(t, err, domain.ErrPriceMismatch)
	assert.Equal(t, []string{"cart-3"}, idem.released)

	sub.TotalPrice = price("20.00")
	orderID, err := svc.PlaceOrder(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, orderID, idem.keys["cart-3"])
}

func TestOrderService_IdempotencyStoreDown(t *testing.T) {
	idem := newFakeIdempotency()
	idem.claimErr = errors.New("connection refused")
	svc, env := newOrderService(t, idem)

	sub := validSubmission()
	sub.IdempotencyKey = "cart-4"

	_, err := svc.PlaceOrder(context.Background(), sub)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 0, env.counts(t)["orders"])
}

func TestOrderService_TimeoutIsStoreUnavailable(t *testing.T) {
	ledger := NewLedger(blockingUnitOfWork{}, ordersTopic, zap.NewNop())
	svc := NewOrderService(ledger, nil, nil, zap.NewNop(), 20*time.Millisecond)

	_, err := svc.PlaceOrder(context.Background(), validSubmission())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrderService_LostCompletionIsSettledByOrders(t *testing.T) {
	idem := newFakeIdempotency()
	svc, env := newOrderService(t, idem)
	ctx := context.Background()

	sub := validSubmission()
	sub.IdempotencyKey = "cart-6"

	first, err := svc.PlaceOrder(ctx, sub)
	require.NoError(t, err)

	idem.keys["cart-6"] = ""
	second, err := svc.PlaceOrder(ctx, sub)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, idem.keys["cart-6"])
	assert.Equal(t, 1, env.counts(t)["orders"])
}

func TestOrderService_CommitAckLostReturnsCommittedOrder(t *testing.T) {
	tests := []struct {
		name string
		idem *fakeIdempotency
	}{
		{name: "orders table only"},
		{name: "with idempotency store", idem: newFakeIdempotency()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newLedgerEnv(t)
			var idem port.IdempotencyStore
			if tt.idem != nil {
				idem = tt.idem
			}
			ledger := NewLedger(&ackLostUnitOfWork{store: env.store}, ordersTopic, zap.NewNop())
			svc := NewOrderService(ledger, env.store, idem, zap.NewNop(), time.Second)
			ctx := context.Background()

			sub := validSubmission()
			sub.IdempotencyKey = "k1"

			first, err := svc.PlaceOrder(ctx, sub)
			require.NoError(t, err)
			second, err := svc.PlaceOrder(ctx, sub)
			require.NoError(t, err)

			assert.Equal(t, first, second)
			assert.Equal(t, 1, env.counts(t)["orders"])
			assert.Equal(t, 5, env.stock(t, "p1"))
			if tt.idem != nil {
				assert.Empty(t, tt.idem.released)
				assert.Equal(t, first, tt.idem.keys["k1"])
			}
		})
	}
}

func TestOrderService_UnknownOutcomeKeepsKey(t *testing.T) {
	env := newLedgerEnv(t)
	idem := newFakeIdempotency()
	ledger := NewLedger(&ackLostUnitOfWork{store: env.store}, ordersTopic, zap.NewNop())
	svc := NewOrderService(ledger, unreachableOrders{env.store}, idem, zap.NewNop(), time.Second)
	ctx := context.Background()

	sub := validSubmission()
	sub.IdempotencyKey = "k1"

	_, err := svc.PlaceOrder(ctx, sub)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Empty(t, idem.released)
	assert.Contains(t, idem.keys, "k1")

	_, err = svc.PlaceOrder(ctx, sub)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	assert.Equal(t, 1, env.counts(t)["orders"])
	assert.Equal(t, 5, env.stock(t, "p1"))
}

func TestOrderService_TimeoutRollsBackUnitOfWork(t *testing.T) {
	env := newLedgerEnv(t)
	idem := newFakeIdempotency()
	ledger := NewLedger(stallingUnitOfWork{store: env.store}, ordersTopic, zap.NewNop())
	svc := NewOrderService(ledger, env.store, idem, zap.NewNop(), 50*time.Millisecond)

	sub := validSubmission()
	sub.IdempotencyKey = "cart-5"

	_, err := svc.PlaceOrder(context.Background(), sub)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, map[string]int{"orders": 0, "order_lines": 0, "sales_facts": 0, "outbox_events": 0}, env.counts(t))
	assert.Equal(t, 7, env.stock(t, "p1"))
	assert.Equal(t, []string{"cart-5"}, idem.released, "nothing committed, so the key is free again")
}

func TestOrderService_ListRecentOrders(t *testing.T) {
	svc, _ := newOrderService(t, nil)
	ctx := context.Background()

	orderID, err := svc.PlaceOrder(ctx, validSubmission())
	require.NoError(t, err)

	orders, err := svc.ListRecentOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0].ID)

	_, err = svc.ListRecentOrders(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	svc, env := newOrderService(t, nil)
	ctx := context.Background()

	orderID, err := svc.PlaceOrder(ctx, validSubmission())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UpdateStatus(ctx, orderID, "lost"), domain.ErrInvalidRequest)
	require.NoError(t, svc.UpdateStatus(ctx, orderID, "shipped"))

	other, err := svc.PlaceOrder(ctx, validSubmission())
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, other, "canceled"))
	assert.Equal(t, 5, env.stock(t, "p1"))

	_, err = svc.GetOrder(ctx, other)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	assert.ErrorIs(t, svc.CancelOrder(ctx, ""), domain.ErrInvalidRequest)
}
