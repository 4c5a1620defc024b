package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookshelf/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]models.User),
	}
}

// Create adds a new user. Provider ids are unique.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ProviderID == user.ProviderID {
			return fmt.Errorf("user %s: %w", user.ProviderID, ErrDuplicateKey)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

// GetByEmail returns the user of provider with the given email.
func (r *MockUserRepository) GetByEmail(_ context.Context, provider, normalizedEmail string) (*models.User, error) {
	return r.find(func(u models.User) bool {
		return u.Provider == provider && u.Email != nil && *u.Email == normalizedEmail
	})
}

// GetByProviderID returns the user with the given provider id.
func (r *MockUserRepository) GetByProviderID(_ context.Context, providerID string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ProviderID == providerID })
}

// GetByID returns a user by its ID.
func (r *MockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrRecordNotFound)
	}
	return &user, nil
}

func (r *MockUserRepository) find(match func(models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			user := u
			return &user, nil
		}
	}
	return nil, ErrRecordNotFound
}
