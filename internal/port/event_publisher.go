package port

import (
	"context"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.OutboxEvent) error
	Close() error
}
