// Package pocache caches purchase orders in Redis in front of the backend.
package pocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/receiving/internal/receiving"
)

const keyPrefix = "receiving:po:"

// Backend decorates a receiving.Backend with a read-through purchase order
// cache. Remaining quantities and submissions always reach the backend.
type Backend struct {
	next   receiving.Backend
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// New wraps next. A nil client disables caching.
func New(next receiving.Backend, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{next: next, client: client, ttl: ttl, logger: logger}
}

var _ receiving.Backend = (*Backend)(nil)

// FetchPurchaseOrder serves a cached order or loads and stores it.
func (b *Backend) FetchPurchaseOrder(ctx context.Context, id string) (receiving.PurchaseOrder, error) {
	if b.client == nil {
		return b.next.FetchPurchaseOrder(ctx, id)
	}
	key := keyPrefix + id
	payload, err := b.client.Get(ctx, key).Bytes()
	if err == nil {
		var po receiving.PurchaseOrder
		if err := json.Unmarshal(payload, &po); err == nil {
			return po, nil
		}
		b.logger.Warn("drop corrupt cached purchase order", slog.String("po_id", id))
	} else if !errors.Is(err, redis.Nil) {
		b.logger.Warn("purchase order cache read", slog.String("po_id", id), slog.Any("error", err))
	}

	res := b.group.DoChan(key, func() (interface{}, error) {
		po, err := b.next.FetchPurchaseOrder(context.WithoutCancel(ctx), id)
		if err != nil {
			return receiving.PurchaseOrder{}, err
		}
		raw, err := json.Marshal(po)
		if err != nil {
			return po, nil
		}
		if err := b.client.Set(context.WithoutCancel(ctx), key, raw, b.ttl).Err(); err != nil {
			b.logger.Warn("purchase order cache write", slog.String("po_id", id), slog.Any("error", err))
		}
		return po, nil
	})
	select {
	case <-ctx.Done():
		return receiving.PurchaseOrder{}, ctx.Err()
	case r := <-res:
		if r.Err != nil {
			return receiving.PurchaseOrder{}, r.Err
		}
		return r.Val.(receiving.PurchaseOrder), nil
	}
}

// FetchRemainingReceivable is never cached.
func (b *Backend) FetchRemainingReceivable(ctx context.Context, poID string) ([]receiving.RemainingQuantity, error) {
	return b.next.FetchRemainingReceivable(ctx, poID)
}

// SubmitGoodsReceipt forwards the submission and drops the cached order once
// the backend accepted a receipt against it.
func (b *Backend) SubmitGoodsReceipt(ctx context.Context, payload receiving.SubmissionPayload, idempotencyKey string) (receiving.SubmitResult, error) {
	result, err := b.next.SubmitGoodsReceipt(ctx, payload, idempotencyKey)
	if err != nil || !result.Success {
		return result, err
	}
	if err := b.Invalidate(ctx, payload.PurchaseOrderID); err != nil {
		b.logger.Warn("purchase order cache invalidate", slog.String("po_id", payload.PurchaseOrderID), slog.Any("error", err))
	}
	return result, nil
}

// Invalidate drops a cached order.
func (b *Backend) Invalidate(ctx context.Context, id string) error {
	if b.client == nil {
		return nil
	}
	if err := b.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("pocache: invalidate %s: %w", id, err)
	}
	return nil
}
