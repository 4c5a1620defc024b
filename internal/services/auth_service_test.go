package services_test

import (
	"context"
	"fmt"
	"testing"

	"bookshelf/internal/common"
	"bookshelf/internal/models"
	"bookshelf/internal/repositories"
	"bookshelf/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, provider, email string) (*models.User, error) {
	args := m.Called(ctx, provider, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newAuthService(repo repositories.UserRepository) *services.AuthService {
	return services.NewAuthService(repo, services.NewPasswordHasher(bcrypt.MinCost), zap.NewNop())
}

func assertKind(t *testing.T, err error, kind common.Kind, msg string) {
	t.Helper()
	appErr, ok := common.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, kind, appErr.Kind)
	if msg != "" {
		assert.Equal(t, msg, appErr.Message)
	}
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByEmail", ctx, models.ProviderLocal, "new@example.com").Return(nil, repositories.ErrRecordNotFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()

	user, err := authService.Register(ctx, services.RegisterInput{Email: "  NEW@Example.com ", Password: "password123", Name: " New User "})
	require.NoError(t, err)
	assert.Equal(t, models.ProviderLocal, user.Provider)
	assert.Equal(t, "local:new@example.com", user.ProviderID)
	assert.Equal(t, "new@example.com", *user.Email)
	assert.Equal(t, "New User", *user.Name)
	require.NotNil(t, user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte("password123")))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	tests := []struct {
		name string
		in   services.RegisterInput
		msg  string
	}{
		{"missing email", services.RegisterInput{Password: "password123"}, "Email and password are required"},
		{"missing password", services.RegisterInput{Email: "a@example.com"}, "Email and password are required"},
		{"short password", services.RegisterInput{Email: "a@example.com", Password: "short"}, "Password must be at least 8 characters"},
		{"long password", services.RegisterInput{Email: "a@example.com", Password: string(make([]byte, 73))}, "Password must be at most 72 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authService.Register(ctx, tt.in)
			assertKind(t, err, common.KindValidation, tt.msg)
		})
	}
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByEmail", ctx, models.ProviderLocal, "dup@example.com").Return(&models.User{ID: "1"}, nil).Once()
	_, err := authService.Register(ctx, services.RegisterInput{Email: "DUP@example.com", Password: "password123"})
	assertKind(t, err, common.KindConflict, "An account with this email already exists")

	// Lost race: the lookup misses but the insert hits the unique index.
	mockRepo.On("GetByEmail", ctx, models.ProviderLocal, "dup@example.com").Return(nil, repositories.ErrRecordNotFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(fmt.Errorf("insert: %w", repositories.ErrDuplicateKey)).Once()
	_, err = authService.Register(ctx, services.RegisterInput{Email: "dup@example.com", Password: "password123"})
	assertKind(t, err, common.KindConflict, "An account with this email already exists")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	hash := string(hashedPassword)
	email := "login@example.com"
	user := &models.User{ID: "user-123", Provider: models.ProviderLocal, Email: &email, PasswordHash: &hash}

	mockRepo.On("GetByEmail", ctx, models.ProviderLocal, email).Return(user, nil).Twice()
	got, err := authService.Login(ctx, "Login@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user-123", got.ID)

	_, wrongPassword := authService.Login(ctx, email, "wrongpassword")
	assertKind(t, wrongPassword, common.KindAuthentication, "Invalid credentials")

	mockRepo.On("GetByEmail", ctx, models.ProviderLocal, "ghost@example.com").Return(nil, repositories.ErrRecordNotFound).Once()
	_, unknownUser := authService.Login(ctx, "ghost@example.com", "password123")
	assertKind(t, unknownUser, common.KindAuthentication, "Invalid credentials")

	// Indistinguishable to the caller.
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())

	_, err = authService.Login(ctx, "", "password123")
	assertKind(t, err, common.KindAuthentication, "Invalid credentials")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginStoreFailure(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByEmail", ctx, models.ProviderLocal, "a@example.com").Return(nil, fmt.Errorf("connection refused")).Once()
	_, err := authService.Login(ctx, "a@example.com", "password123")
	assertKind(t, err, common.KindInternal, "Internal error")
}

func TestAuthService_LoginMalformedHash(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	bad := "not-a-bcrypt-hash"
	mockRepo.On("GetByEmail", ctx, models.ProviderLocal, "a@example.com").Return(&models.User{ID: "1", PasswordHash: &bad}, nil).Once()
	_, err := authService.Login(ctx, "a@example.com", "password123")
	assertKind(t, err, common.KindInternal, "")
	assert.ErrorIs(t, err, services.ErrHashing)
}

// Google sign-in creates unknown accounts, where local login rejects them.
func TestAuthService_LoginWithGoogle(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)
	profile := services.GoogleProfile{ID: "g-42", Email: "G@Example.com", Name: "Gina", AvatarURL: "https://img/g.png"}

	mockRepo.On("GetByProviderID", ctx, "google:g-42").Return(nil, repositories.ErrRecordNotFound).Once()
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Provider == models.ProviderGoogle && u.ProviderID == "google:g-42" &&
			*u.Email == "g@example.com" && *u.Name == "Gina" && *u.AvatarURL == "https://img/g.png" &&
			u.PasswordHash == nil
	})).Return(nil).Once()

	created, err := authService.LoginWithGoogle(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, "google:g-42", created.ProviderID)

	existing := &models.User{ID: "u-1", ProviderID: "google:g-42"}
	mockRepo.On("GetByProviderID", ctx, "google:g-42").Return(existing, nil).Once()
	reused, err := authService.LoginWithGoogle(ctx, profile)
	require.NoError(t, err)
	assert.Same(t, existing, reused)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_GetUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByID", ctx, "gone").Return(nil, repositories.ErrRecordNotFound).Once()
	user, err := authService.GetUser(ctx, "gone")
	assert.NoError(t, err)
	assert.Nil(t, user)

	mockRepo.On("GetByID", ctx, "u-1").Return(&models.User{ID: "u-1"}, nil).Once()
	user, err = authService.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
}
