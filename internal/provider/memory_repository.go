package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

// MemoryRepository keeps providers in process. It backs the memory storage mode and tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	providers map[Ref]*Provider
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{providers: make(map[Ref]*Provider)}
}

func (r *MemoryRepository) Get(_ context.Context, ref Ref) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[ref]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return p.clone(), nil
}

func (r *MemoryRepository) List(_ context.Context, kind Kind) ([]Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for ref, p := range r.providers {
		if ref.Kind == kind {
			out = append(out, *p.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) Create(_ context.Context, p *Provider) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := p.clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.providers[stored.Ref()] = stored
	return stored.clone(), nil
}

func (r *MemoryRepository) Update(_ context.Context, p *Provider) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.providers[p.Ref()]
	if !ok {
		return nil, ErrProviderNotFound
	}
	current.Name = p.Name
	current.Category = p.Category
	current.Fee = p.Fee
	current.Available = p.Available
	current.UpdatedAt = time.Now().UTC()
	return current.clone(), nil
}

func (r *MemoryRepository) SetAvailability(_ context.Context, ref Ref, available bool) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.providers[ref]
	if !ok {
		return nil, ErrProviderNotFound
	}
	current.Available = available
	current.UpdatedAt = time.Now().UTC()
	return current.clone(), nil
}

func (r *MemoryRepository) Delete(_ context.Context, ref Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[ref]; !ok {
		return ErrProviderNotFound
	}
	delete(r.providers, ref)
	return nil
}

func (r *MemoryRepository) UpdateCalendar(_ context.Context, ref Ref, fn func(*schedule.Calendar) error) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.providers[ref]
	if !ok {
		return nil, ErrProviderNotFound
	}
	next := current.Calendar.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	current.Calendar = next
	current.UpdatedAt = time.Now().UTC()
	return current.clone(), nil
}
