// Package relay moves committed outbox events to the message broker.
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
	"github.com/rl1809/storefront-ledger/internal/port"
)

const (
	defaultWorkers   = 4
	defaultBatchSize = 100
	defaultInterval  = time.Second
	publishTimeout   = 5 * time.Second
)

type Options struct {
	Workers   int
	BatchSize int
	Interval  time.Duration
}

// OutboxRelay polls the outbox and publishes pending events with a pool of
// workers. Events sharing a key always go to the same worker, so per-order
// ordering is kept. Delivery is at least once.
type OutboxRelay struct {
	outbox    port.OutboxRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	workers   int
	batchSize int
	interval  time.Duration
	now       func() time.Time
}

func NewOutboxRelay(outbox port.OutboxRepository, publisher port.EventPublisher, logger *zap.Logger, opts Options) *OutboxRelay {
	r := &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		workers:   opts.Workers,
		batchSize: opts.BatchSize,
		interval:  opts.Interval,
		now:       time.Now,
	}
	if r.workers <= 0 {
		r.workers = defaultWorkers
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.interval <= 0 {
		r.interval = defaultInterval
	}
	return r
}

// Run relays batches until ctx is canceled. A batch is always finished before
// the next poll.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", zap.Int("workers", r.workers), zap.Duration("interval", r.interval))
	for {
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("outbox poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many events were marked published.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	queues := make([]chan domain.OutboxEvent, r.workers)
	for i := range queues {
		queues[i] = make(chan domain.OutboxEvent, len(events))
	}
	for _, e := range events {
		queues[xxhash.Sum64String(e.Key)%uint64(r.workers)] <- e
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		published int
	)
	for i, queue := range queues {
		close(queue)
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			n := r.workerLoop(ctx, id, queue)
			mu.Lock()
			published += n
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	return published, nil
}

func (r *OutboxRelay) workerLoop(ctx context.Context, id int, queue <-chan domain.OutboxEvent) int {
	published := 0
	// a failed key is skipped for the rest of the batch so later events for the
	// same order never overtake it
	failed := make(map[string]struct{})

	for event := range queue {
		if ctx.Err() != nil {
			return published
		}
		if _, ok := failed[event.Key]; ok {
			continue
		}

		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := r.publisher.Publish(pubCtx, event)
		cancel()
		if err != nil {
			failed[event.Key] = struct{}{}
			r.logger.Warn("failed to publish outbox event",
				zap.Int("worker", id),
				zap.String("event_id", event.ID),
				zap.String("event_type", event.Type),
				zap.String("key", event.Key),
				zap.Error(err),
			)
			continue
		}

		if err := r.outbox.MarkPublished(ctx, event.ID, r.now().UTC()); err != nil {
			failed[event.Key] = struct{}{}
			r.logger.Error("event published but not marked, it will be sent again",
				zap.Int("worker", id),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		published++
	}
	return published
}
