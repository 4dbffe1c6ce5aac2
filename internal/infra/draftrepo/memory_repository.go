package draftrepo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/evigrid/assess-console/internal/domain/assessment"
	"github.com/evigrid/assess-console/pkg/errors"
)

// MemoryRepository holds form drafts for their session lifetime. Drafts are
// working state, not records: they never outlive the process on purpose.
type MemoryRepository struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID]*assessment.Draft
}

// NewMemoryRepository constructs an empty draft store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{drafts: make(map[uuid.UUID]*assessment.Draft)}
}

var _ assessment.DraftRepository = (*MemoryRepository)(nil)

// Create stores a new draft.
func (r *MemoryRepository) Create(ctx context.Context, draft *assessment.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.drafts[draft.ID]; exists {
		return errors.Wrap(errors.CodeInvalidInput, "draft id already exists", nil)
	}
	r.drafts[draft.ID] = draft
	return nil
}

// Get returns the user's draft by id.
func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID, userID int64) (*assessment.Draft, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	draft, ok := r.drafts[id]
	if !ok || draft.UserID != userID {
		return nil, false, nil
	}
	return draft, true, nil
}

// Update persists a modified draft.
func (r *MemoryRepository) Update(ctx context.Context, draft *assessment.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[draft.ID]; !ok {
		return errors.Wrap(errors.CodeNotFound, "draft not found", nil)
	}
	r.drafts[draft.ID] = draft
	return nil
}

// Delete removes the user's draft. Deleting an absent draft is not an error.
func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if draft, ok := r.drafts[id]; ok && draft.UserID == userID {
		delete(r.drafts, id)
	}
	return nil
}
