package source

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"NewsRadar/internal/domain"
)

// Registry keeps the configured sources and their last-check status. Sources
// are created/edited by an external configuration collaborator; the ingestion
// coordinator only touches status fields, via RecordCheck. All methods are
// safe for concurrent use; reads return copies so a cycle works on a snapshot.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]domain.Source
	order   []string
}

// NewRegistry validates and registers the initial source set.
func NewRegistry(sources []domain.Source) (*Registry, error) {
	r := &Registry{sources: map[string]domain.Source{}}
	for _, src := range sources {
		if err := r.Upsert(src); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Upsert adds or replaces a source, rejecting misconfiguration up front.
func (r *Registry) Upsert(src domain.Source) error {
	if err := src.Validate(); err != nil {
		return fmt.Errorf("register source: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.sources[src.ID]; !known {
		r.order = append(r.order, src.ID)
	} else {
		// Edits keep the accumulated status fields.
		prev := r.sources[src.ID]
		src.LastCheckedAt = prev.LastCheckedAt
		src.LastStatus = prev.LastStatus
		src.ConsecutiveErrors = prev.ConsecutiveErrors
	}
	r.sources[src.ID] = src
	return nil
}

// Remove deletes a source; unknown ids are a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[id]; !ok {
		return
	}
	delete(r.sources, id)
	for i, known := range r.order {
		if known == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Active returns the enabled sources in registration order.
func (r *Registry) Active() []domain.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]domain.Source, 0, len(r.order))
	for _, id := range r.order {
		if src := r.sources[id]; src.Enabled {
			active = append(active, src)
		}
	}
	return active
}

// All returns every source in registration order, enabled or not.
func (r *Registry) All() []domain.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.Source, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.sources[id])
	}
	return all
}

// Get returns one source by id.
func (r *Registry) Get(id string) (domain.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[id]
	return src, ok
}

// RecordCheck updates status fields after a fetch attempt. A success resets
// the consecutive error counter; a failure increments it.
func (r *Registry) RecordCheck(id string, ok bool, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, known := r.sources[id]
	if !known {
		return
	}

	src.LastCheckedAt = at
	if ok {
		src.LastStatus = domain.SourceStatusOK
		src.ConsecutiveErrors = 0
	} else {
		src.LastStatus = domain.SourceStatusError
		src.ConsecutiveErrors++
	}
	r.sources[id] = src
}

// Degraded lists sources whose consecutive error count reached the threshold,
// most broken first.
func (r *Registry) Degraded(threshold int) []domain.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Source
	for _, id := range r.order {
		if src := r.sources[id]; src.ConsecutiveErrors >= threshold {
			out = append(out, src)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConsecutiveErrors > out[j].ConsecutiveErrors
	})
	return out
}
