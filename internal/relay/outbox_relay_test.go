package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-ledger/internal/adapter/storage"
	"github.com/rl1809/storefront-ledger/internal/adapter/storage/storagetest"
	"github.com/rl1809/storefront-ledger/internal/core/domain"
	"github.com/rl1809/storefront-ledger/internal/port"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []domain.OutboxEvent
	failKeys  map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failKeys[e.Key] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) idsFor(key string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for _, e := range p.published {
		if e.Key == key {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func seedEvents(t *testing.T, store *storage.MySQLAdapter, keys []string, perKey int) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	err := store.Within(ctx, func(tx port.LedgerTx) error {
		n := 0
		for i := 0; i < perKey; i++ {
			for _, key := range keys {
				err := tx.InsertOutboxEvent(ctx, domain.OutboxEvent{
					ID:        fmt.Sprintf("%s-%02d", key, i),
					Topic:     "storefront.orders",
					Key:       key,
					Type:      domain.EventOrderStatusChanged,
					Payload:   []byte(`{}`),
					CreatedAt: base.Add(time.Duration(n) * time.Second),
				})
				if err != nil {
					return err
				}
				n++
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRelayOnce_PublishesAndMarks(t *testing.T) {
	_, store := storagetest.NewSQLite(t)
	seedEvents(t, store, []string{"o1", "o2", "o3"}, 3)

	publisher := &recordingPublisher{}
	relay := NewOutboxRelay(store, publisher, zap.NewNop(), Options{Workers: 2, BatchSize: 100})

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, 9, publisher.count())
	assert.Equal(t, []string{"o1-00", "o1-01", "o1-02"}, publisher.idsFor("o1"))

	remaining, err := store.FetchUnpublished(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayOnce_FailedKeyKeepsOrder(t *testing.T) {
	_, store := storagetest.NewSQLite(t)
	seedEvents(t, store, []string{"good", "bad"}, 2)

	publisher := &recordingPublisher{failKeys: map[string]bool{"bad": true}}
	relay := NewOutboxRelay(store, publisher, zap.NewNop(), Options{Workers: 3})

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, publisher.idsFor("bad"))

	remaining, err := store.FetchUnpublished(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "bad-00", remaining[0].ID)

	publisher.mu.Lock()
	publisher.failKeys = nil
	publisher.mu.Unlock()

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"bad-00", "bad-01"}, publisher.idsFor("bad"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	_, store := storagetest.NewSQLite(t)
	seedEvents(t, store, []string{"o1"}, 2)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	publisher := &recordingPublisher{}
	relay := NewOutboxRelay(store, publisher, zap.NewNop(), Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return publisher.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
