// internal/tracker/repo_memory.go
package tracker

import (
	"context"
	"sync"

	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"
)

// MemoryRepo is an in-memory Repo used by tests and local runs.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]models.NotificationHistory
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]models.NotificationHistory)}
}

func (r *MemoryRepo) Create(_ context.Context, h *models.NotificationHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[h.NotificationID] = *h
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, notificationID string) (*models.NotificationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.records[notificationID]
	if !ok {
		return nil, stderrors.NewHistoryNotFoundError(notificationID)
	}
	cp := h
	return &cp, nil
}

func (r *MemoryRepo) Update(_ context.Context, h *models.NotificationHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[h.NotificationID]; !ok {
		return stderrors.NewHistoryNotFoundError(h.NotificationID)
	}
	r.records[h.NotificationID] = *h
	return nil
}

// Len reports the number of stored records.
func (r *MemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
