package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"bookshelf/internal/common"
	"bookshelf/internal/models"
	"bookshelf/internal/repositories"

	"go.uber.org/zap"
)

const (
	minPasswordLength = 8
	maxPasswordBytes  = 72 // bcrypt ignores input past this
)

// RegisterInput is the payload of a local registration.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// GoogleProfile is the subset of a Google account the app stores.
type GoogleProfile struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// AuthService handles registration, credential checks and principal lookup.
type AuthService struct {
	userRepo repositories.UserRepository
	hasher   *PasswordHasher
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, hasher *PasswordHasher, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		logger:   logger.Named("AuthService"),
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a local account. The caller establishes the session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, common.NewValidationError(msgCredentialsRequired)
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return nil, common.NewValidationError(msgPasswordTooShort)
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, common.NewValidationError(msgPasswordTooLong)
	}

	_, err := s.userRepo.GetByEmail(ctx, models.ProviderLocal, email)
	if err == nil {
		return nil, common.NewConflictError(msgEmailTaken)
	}
	if !errors.Is(err, repositories.ErrRecordNotFound) {
		return nil, common.NewInternalError(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, common.NewInternalError(err)
	}

	user := &models.User{
		Provider:     models.ProviderLocal,
		ProviderID:   models.LocalProviderID(email),
		Email:        &email,
		PasswordHash: &hash,
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = &name
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race against a concurrent registration of the same email.
		return nil, fromRepo(err, msgEmailTaken)
	}

	s.logger.Info("Registered local user", zap.String("userID", user.ID))
	return user, nil
}

// Login checks local credentials. Unknown emails and wrong passwords yield the
// same AuthenticationError.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" || password == "" {
		return nil, common.NewAuthenticationError(msgInvalidCredentials)
	}

	user, err := s.userRepo.GetByEmail(ctx, models.ProviderLocal, normalized)
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return nil, common.NewAuthenticationError(msgInvalidCredentials)
	}
	if err != nil {
		return nil, common.NewInternalError(err)
	}
	if user.PasswordHash == nil {
		return nil, common.NewAuthenticationError(msgInvalidCredentials)
	}

	ok, err := s.hasher.Verify(password, *user.PasswordHash)
	if err != nil {
		return nil, common.NewInternalError(fmt.Errorf("verify password for user %s: %w", user.ID, err))
	}
	if !ok {
		return nil, common.NewAuthenticationError(msgInvalidCredentials)
	}
	return user, nil
}

// LoginWithGoogle returns the user linked to the Google account, creating it
// on first sign-in. Unlike Login, an unknown account is never an error.
func (s *AuthService) LoginWithGoogle(ctx context.Context, profile GoogleProfile) (*models.User, error) {
	if profile.ID == "" {
		return nil, common.NewValidationError("Google profile has no id")
	}
	providerID := models.GoogleProviderID(profile.ID)

	user, err := s.userRepo.GetByProviderID(ctx, providerID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrRecordNotFound) {
		return nil, common.NewInternalError(err)
	}

	user = &models.User{
		Provider:   models.ProviderGoogle,
		ProviderID: providerID,
		Email:      optional(NormalizeEmail(profile.Email)),
		Name:       optional(strings.TrimSpace(profile.Name)),
		AvatarURL:  optional(profile.AvatarURL),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			// Concurrent first sign-in created it already.
			if existing, getErr := s.userRepo.GetByProviderID(ctx, providerID); getErr == nil {
				return existing, nil
			}
		}
		return nil, common.NewInternalError(err)
	}

	s.logger.Info("Created Google user", zap.String("userID", user.ID))
	return user, nil
}

// GetUser re-reads a principal by id. It returns nil without error when the
// user no longer exists.
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewInternalError(err)
	}
	return user, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
