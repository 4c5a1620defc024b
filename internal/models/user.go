package models

import "time"

// Authentication providers.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User is an account that owns a personal book list.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Provider     string    `json:"provider" gorm:"type:varchar(16);not null;index:idx_users_provider_email"`
	ProviderID   string    `json:"provider_id" gorm:"type:varchar(320);not null;uniqueIndex"`
	Email        *string   `json:"email" gorm:"type:varchar(255);index:idx_users_provider_email"`
	Name         *string   `json:"name" gorm:"type:varchar(255)"`
	PasswordHash *string   `json:"-" gorm:"type:varchar(255)"` // local users only
	AvatarURL    *string   `json:"avatar_url,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LocalProviderID is the provider id of a local account.
func LocalProviderID(normalizedEmail string) string {
	return ProviderLocal + ":" + normalizedEmail
}

// GoogleProviderID is the provider id of a Google account.
func GoogleProviderID(externalID string) string {
	return ProviderGoogle + ":" + externalID
}
