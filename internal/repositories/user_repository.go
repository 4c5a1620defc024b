package repositories

import (
	"context"

	"bookshelf/internal/models"
)

// UserRepository defines the interface for user data access.
// Lookups return ErrRecordNotFound when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, provider, normalizedEmail string) (*models.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
