package payments

import (
	"context"
	"time"

	"github.com/medicura/medicura-backend/pkg/logger"
	"github.com/medicura/medicura-backend/pkg/redis"
)

// IdempotencyGuard deduplicates gateway callbacks across processes with a
// short-lived SetNX claim. The database status check remains the source of
// truth; the guard only cheaply drops replays before they hit the gateway's
// validation endpoint again.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	log   *logger.Logger
}

// NewIdempotencyGuard builds a guard with the given claim TTL.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, log *logger.Logger) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyGuard{store: store, ttl: ttl, log: log}
}

// Claim attempts to take the callback for this transaction. A false return
// means another worker already claimed it. Redis being down fails open: the
// callback proceeds and the Pending-only status update keeps it safe.
func (g *IdempotencyGuard) Claim(ctx context.Context, kind, tranID string) bool {
	if g == nil || g.store == nil {
		return true
	}
	key := g.store.IdempotencyKey("payment:"+kind, tranID)
	ok, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		logCtx := g.log.WithTransactionID(ctx, tranID)
		g.log.Warn(logCtx, "callback idempotency claim failed, proceeding without guard")
		return true
	}
	return ok
}

// Release frees the claim so a retry can get through after a handler error.
func (g *IdempotencyGuard) Release(ctx context.Context, kind, tranID string) {
	if g == nil || g.store == nil {
		return
	}
	key := g.store.IdempotencyKey("payment:"+kind, tranID)
	if err := g.store.Del(ctx, key); err != nil {
		logCtx := g.log.WithTransactionID(ctx, tranID)
		g.log.Warn(logCtx, "callback idempotency release failed")
	}
}
