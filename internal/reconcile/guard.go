package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rjanssen/bartab-backend/pkg/redis"
)

// IdempotencyGuard suppresses webhook replays for a short window. The guard
// is advisory: the settlement itself is idempotent, so a lost key only costs
// a redundant gateway fetch.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the payment ref was already seen inside the
// replay window, marking it seen otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, paymentRef string) (bool, error) {
	if paymentRef == "" {
		return false, errors.New("payment ref is required")
	}
	key := g.store.IdempotencyKey(g.scope, paymentRef)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the mark so a failed confirmation can be retried.
func (g *IdempotencyGuard) Delete(ctx context.Context, paymentRef string) error {
	if paymentRef == "" {
		return errors.New("payment ref is required")
	}
	key := g.store.IdempotencyKey(g.scope, paymentRef)
	return g.store.Del(ctx, key)
}
