package orderrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/evigrid/assess-console/internal/domain/orders"
	"github.com/evigrid/assess-console/pkg/errors"
)

// MemoryRepository keeps orders in process memory. Used when Postgres is
// not configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]orders.Order
	byUser map[int64][]string
}

// NewMemoryRepository constructs an empty in-memory order store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]orders.Order),
		byUser: make(map[int64][]string),
	}
}

var _ orders.Repository = (*MemoryRepository)(nil)

// Append stores a new order.
func (r *MemoryRepository) Append(ctx context.Context, order orders.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[order.ID]; exists {
		return errors.Wrap(errors.CodeInvalidInput, "order id already exists", nil)
	}
	r.byID[order.ID] = order
	r.byUser[order.UserID] = append(r.byUser[order.UserID], order.ID)
	return nil
}

// List returns copies of the user's orders, newest first.
func (r *MemoryRepository) List(ctx context.Context, userID int64) ([]orders.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byUser[userID]
	out := make([]orders.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns one of the user's orders by id.
func (r *MemoryRepository) Get(ctx context.Context, id string, userID int64) (orders.Order, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.byID[id]
	if !ok || order.UserID != userID {
		return orders.Order{}, false, nil
	}
	return order, true, nil
}

// UpdateStatus transitions an order's status.
func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status orders.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.byID[id]
	if !ok {
		return errors.Wrap(errors.CodeNotFound, "order not found", nil)
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	r.byID[id] = order
	return nil
}
