package identity

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byPhone map[string]User
	byID    map[string]string
}

// NewMemoryRepository builds an in-memory user store for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{byPhone: make(map[string]User), byID: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPhone[user.Phone]; exists {
		return ErrExists
	}
	r.byPhone[user.Phone] = cloneUser(user)
	r.byID[user.ID] = user.Phone
	return nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byPhone[phone]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	phone, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(r.byPhone[phone]), nil
}

func (r *memoryRepository) UpdatePIN(_ context.Context, id string, pinHash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	phone, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	user := r.byPhone[phone]
	user.PINHash = append([]byte(nil), pinHash...)
	r.byPhone[phone] = user
	return nil
}

func cloneUser(u User) User {
	u.PINHash = append([]byte(nil), u.PINHash...)
	return u
}
