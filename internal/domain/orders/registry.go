package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strconv"
	"time"

	apperrors "github.com/evigrid/assess-console/pkg/errors"
)

// Repository persists the order log. All writes are appends except the
// status transition driven by backend callbacks.
type Repository interface {
	Append(ctx context.Context, order Order) error
	List(ctx context.Context, userID int64) ([]Order, error)
	Get(ctx context.Context, id string, userID int64) (Order, bool, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// Registry is the injected order log service. It replaces the module-level
// order array the old dashboard kept, so every view that needs order history
// receives the same instance explicitly.
type Registry struct {
	repo   Repository
	logger *slog.Logger
}

// NewRegistry constructs the registry.
func NewRegistry(repo Repository, logger *slog.Logger) *Registry {
	return &Registry{repo: repo, logger: logger.With("component", "orders.registry")}
}

// Add appends a new pending order and returns it. IDs combine a millisecond
// timestamp with a random suffix, unique even under rapid repeated calls.
func (r *Registry) Add(ctx context.Context, userID int64, energyType string, plan Plan, jobID string) (Order, error) {
	now := time.Now().UTC()
	order := Order{
		ID:         newOrderID(now),
		UserID:     userID,
		EnergyType: energyType,
		Plan:       plan,
		JobID:      jobID,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.repo.Append(ctx, order); err != nil {
		return Order{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to append order", err)
	}
	r.logger.Info("order registered", "order_id", order.ID, "energy", energyType, "plan", plan)
	return order, nil
}

// List returns the user's orders. Implementations return defensive copies,
// so callers may not mutate the log through the result.
func (r *Registry) List(ctx context.Context, userID int64) ([]Order, error) {
	items, err := r.repo.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to list orders", err)
	}
	return items, nil
}

// Get fetches a single order.
func (r *Registry) Get(ctx context.Context, id string, userID int64) (Order, error) {
	order, found, err := r.repo.Get(ctx, id, userID)
	if err != nil {
		return Order{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load order", err)
	}
	if !found {
		return Order{}, apperrors.Wrap(apperrors.CodeNotFound, "order not found", nil)
	}
	return order, nil
}

// SetStatus applies a backend status callback. The order must belong to the
// given user; callers cannot transition orders they do not own.
func (r *Registry) SetStatus(ctx context.Context, id string, userID int64, status Status) error {
	if status != StatusPending && status != StatusCompleted && status != StatusFailed {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "unknown order status", nil)
	}
	_, found, err := r.repo.Get(ctx, id, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to load order", err)
	}
	if !found {
		return apperrors.Wrap(apperrors.CodeNotFound, "order not found", nil)
	}
	if err := r.repo.UpdateStatus(ctx, id, status); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to update order status", err)
	}
	return nil
}

func newOrderID(now time.Time) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(now.UnixNano(), 10)
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + hex.EncodeToString(buf)
}
