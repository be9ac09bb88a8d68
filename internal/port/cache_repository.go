package port

import "context"

type IdempotencyStore interface {
	// Claim reserves key for a new attempt. It returns claimed=false when the key is
	// already held, together with the order id recorded for it (empty while in flight).
	Claim(ctx context.Context, key string) (claimed bool, orderID string, err error)

	// Complete records the order id produced by the attempt holding key
	Complete(ctx context.Context, key, orderID string) error

	// Release drops the key so an attempt known to have committed nothing can be retried
	Release(ctx context.Context, key string) error
}
