package service

import (
	"context"
	"time"

	"campus-events/internal/models"
	"campus-events/internal/redisclient"
	"campus-events/internal/store"
	"campus-events/internal/util"

	"go.uber.org/zap"
)

// InventoryClient owns merchandise stock. Every change goes through the
// store's conditional update; Redis only mirrors the result for fast reads.
type InventoryClient struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory client. redis may be nil.
func NewInventoryClient(store *store.Store, redis *redisclient.Client) *InventoryClient {
	return &InventoryClient{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// Decrement takes qty units of an item, reporting false if not enough remain
func (ic *InventoryClient) Decrement(ctx context.Context, itemID string, qty int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Decrement")
	defer span.End()

	start := time.Now()
	ok, err := ic.store.DecrementStock(ctx, itemID, qty)
	util.StockDecrementLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return false, err
	}

	if ok {
		ic.refreshMirror(ctx, itemID)
	}
	return ok, nil
}

// Restore gives back qty units taken by a decrement whose follow-up failed
func (ic *InventoryClient) Restore(ctx context.Context, itemID string, qty int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Restore")
	defer span.End()

	if err := ic.store.RestoreStock(ctx, itemID, qty); err != nil {
		return err
	}
	ic.refreshMirror(ctx, itemID)
	return nil
}

// Available returns the remaining units of an item
func (ic *InventoryClient) Available(ctx context.Context, itemID string) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Available")
	defer span.End()

	if ic.redis != nil {
		qty, ok, err := ic.redis.GetStock(ctx, itemID)
		if err != nil {
			ic.logger.Warn("Redis stock read failed, falling back to DB",
				zap.String("item_id", itemID),
				zap.Error(err))
		} else if ok {
			return qty, nil
		}
	}

	qty, err := ic.store.StockLevel(ctx, itemID)
	if err != nil {
		return 0, err
	}
	ic.mirror(ctx, itemID, qty)
	return qty, nil
}

// SyncEventStock mirrors the stock of every item of an event into Redis
func (ic *InventoryClient) SyncEventStock(ctx context.Context, eventID string) error {
	if ic.redis == nil {
		return nil
	}

	items, err := ic.store.GetItems(ctx, eventID)
	if err != nil {
		return err
	}
	for _, item := range items {
		ic.mirror(ctx, item.ID, item.StockQuantity)
	}
	return nil
}

// SyncOpenEvents mirrors the stock of every merchandise event still taking orders
func (ic *InventoryClient) SyncOpenEvents(ctx context.Context) error {
	if ic.redis == nil {
		return nil
	}

	events, err := ic.store.ListEvents(ctx, store.EventFilter{
		Statuses: []models.EventStatus{models.EventStatusPublished, models.EventStatusOngoing},
	})
	if err != nil {
		return err
	}

	synced := 0
	for _, e := range events {
		if e.Type != models.EventTypeMerchandise {
			continue
		}
		if err := ic.SyncEventStock(ctx, e.ID); err != nil {
			return err
		}
		synced++
	}
	ic.logger.Info("Stock mirror synced", zap.Int("events", synced))
	return nil
}

func (ic *InventoryClient) refreshMirror(ctx context.Context, itemID string) {
	if ic.redis == nil {
		return
	}
	qty, err := ic.store.StockLevel(ctx, itemID)
	if err != nil {
		ic.logger.Warn("Failed to read stock for mirror", zap.String("item_id", itemID), zap.Error(err))
		_ = ic.redis.InvalidateStock(ctx, itemID)
		return
	}
	ic.mirror(ctx, itemID, qty)
}

func (ic *InventoryClient) mirror(ctx context.Context, itemID string, qty int) {
	if ic.redis == nil {
		return
	}
	if err := ic.redis.SetStock(ctx, itemID, qty); err != nil {
		ic.logger.Warn("Failed to mirror stock to Redis",
			zap.String("item_id", itemID),
			zap.Error(err))
	}
}
