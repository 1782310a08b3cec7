package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"scholarship-exam-service/internal/domain"
)

// OrderRegistry stores pending gateway orders as SET order:{id} {json} EX ttl.
type OrderRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOrderRegistry(client *redis.Client, ttl time.Duration) *OrderRegistry {
	return &OrderRegistry{client: client, ttl: ttl}
}

func (r *OrderRegistry) Remember(ctx context.Context, order domain.PendingOrder) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(order.OrderID), raw, r.ttl).Err()
}

func (r *OrderRegistry) Lookup(ctx context.Context, orderID string) (domain.PendingOrder, error) {
	raw, err := r.client.Get(ctx, r.key(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PendingOrder{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.PendingOrder{}, err
	}
	var order domain.PendingOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.PendingOrder{}, err
	}
	return order, nil
}

func (r *OrderRegistry) key(orderID string) string {
	return "order:" + orderID
}

// OrphanKey is the set of identity UIDs whose external removal failed.
const OrphanKey = "identity:orphans"

type OrphanRegistry struct {
	client *redis.Client
}

func NewOrphanRegistry(client *redis.Client) *OrphanRegistry {
	return &OrphanRegistry{client: client}
}

func (r *OrphanRegistry) Add(ctx context.Context, uid string) error {
	return r.client.SAdd(ctx, OrphanKey, uid).Err()
}

func (r *OrphanRegistry) List(ctx context.Context) ([]string, error) {
	uids, err := r.client.SMembers(ctx, OrphanKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(uids)
	return uids, nil
}

func (r *OrphanRegistry) Remove(ctx context.Context, uid string) error {
	return r.client.SRem(ctx, OrphanKey, uid).Err()
}
