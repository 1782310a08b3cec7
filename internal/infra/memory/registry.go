package memory

import (
	"context"
	"sort"
	"sync"

	"scholarship-exam-service/internal/domain"
)

// OrderRegistry remembers pending gateway orders without expiry.
type OrderRegistry struct {
	mu     sync.RWMutex
	orders map[string]domain.PendingOrder
}

func NewOrderRegistry() *OrderRegistry {
	return &OrderRegistry{orders: make(map[string]domain.PendingOrder)}
}

func (r *OrderRegistry) Remember(_ context.Context, order domain.PendingOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.OrderID] = order
	return nil
}

func (r *OrderRegistry) Lookup(_ context.Context, orderID string) (domain.PendingOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[orderID]
	if !ok {
		return domain.PendingOrder{}, domain.ErrOrderNotFound
	}
	return o, nil
}

// OrphanRegistry is a set of identity UIDs awaiting external removal.
type OrphanRegistry struct {
	mu   sync.Mutex
	uids map[string]struct{}
}

func NewOrphanRegistry() *OrphanRegistry {
	return &OrphanRegistry{uids: make(map[string]struct{})}
}

func (r *OrphanRegistry) Add(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uids[uid] = struct{}{}
	return nil
}

func (r *OrphanRegistry) List(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.uids))
	for uid := range r.uids {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out, nil
}

func (r *OrphanRegistry) Remove(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.uids, uid)
	return nil
}
