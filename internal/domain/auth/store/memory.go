package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-server-go/internal/domain/auth/model"
)

type memoryStore struct {
	byID    map[uint]model.Identity
	byEmail map[string]uint
	nextID  uint
	mutex   sync.RWMutex
}

// NewMemory builds an in-memory credential store. Contents are lost on restart.
func NewMemory() Store {
	return &memoryStore{
		byID:    make(map[uint]model.Identity),
		byEmail: make(map[string]uint),
	}
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (model.Identity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return model.Identity{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *memoryStore) FindByID(_ context.Context, id uint) (model.Identity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	identity, ok := s.byID[id]
	if !ok {
		return model.Identity{}, ErrNotFound
	}
	return identity, nil
}

func (s *memoryStore) Create(_ context.Context, identity model.Identity) (model.Identity, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, taken := s.byEmail[identity.Email]; taken {
		return model.Identity{}, ErrConflict
	}
	s.nextID++
	now := time.Now().UTC()
	identity.ID = s.nextID
	identity.CreatedAt = now
	identity.UpdatedAt = now

	s.byID[identity.ID] = identity
	s.byEmail[identity.Email] = identity.ID
	return identity, nil
}

func (s *memoryStore) List(_ context.Context, opts model.ListOptions) ([]model.Identity, error) {
	opts = normalizeList(opts)

	s.mutex.RLock()
	ids := make([]uint, 0, len(s.byID))
	for id, identity := range s.byID {
		if opts.ActiveOnly && !identity.IsActive {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]model.Identity, 0, opts.Limit)
	for i := opts.Offset; i < len(ids) && len(out) < opts.Limit; i++ {
		out = append(out, s.byID[ids[i]])
	}
	s.mutex.RUnlock()
	return out, nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	active := 0
	for _, identity := range s.byID {
		if identity.IsActive {
			active++
		}
	}
	return map[string]any{
		"type":   "memory",
		"total":  len(s.byID),
		"active": active,
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	return nil
}
