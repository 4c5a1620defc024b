package session

import (
	"context"
	"fmt"
	"time"

	"bookshelf/internal/models"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// UserLookup re-reads the principal stored in a session.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// StoreConfig describes the session cookie and its backing storage.
type StoreConfig struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
	// Storage persists session data. Nil keeps sessions in process memory.
	Storage fiber.Storage
}

// NewStore creates a cookie-keyed fiber session store.
func NewStore(cfg StoreConfig) *fibersession.Store {
	name := cfg.CookieName
	if name == "" {
		name = "sid"
	}
	return fibersession.New(fibersession.Config{
		Storage:        cfg.Storage,
		Expiration:     cfg.TTL,
		KeyLookup:      "cookie:" + name,
		CookieHTTPOnly: true,
		CookieSecure:   cfg.Secure,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Manager binds principals to sessions. Only the user id is stored; the user
// itself is re-read on every Resolve.
type Manager struct {
	store  *fibersession.Store
	users  UserLookup
	logger *zap.Logger
}

// NewManager creates a new Manager.
func NewManager(store *fibersession.Store, users UserLookup, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		users:  users,
		logger: logger.Named("SessionManager"),
	}
}

// Establish starts a session for user under a fresh session id.
func (m *Manager) Establish(c *fiber.Ctx, user *models.User) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("regenerate session: %w", err)
	}
	sess.Set(userIDKey, user.ID)
	if err := sess.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Resolve returns the principal of the current session, or nil when there is
// none or its user no longer exists.
func (m *Manager) Resolve(c *fiber.Ctx) (*models.User, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	id, _ := sess.Get(userIDKey).(string)
	if id == "" {
		return nil, nil
	}

	user, err := m.users.GetUser(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		m.logger.Debug("Session refers to a missing user", zap.String("userID", id))
	}
	return user, nil
}

// Terminate destroys the current session and clears its cookie. It succeeds
// when there is no session.
func (m *Manager) Terminate(c *fiber.Ctx) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if err := sess.Destroy(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
