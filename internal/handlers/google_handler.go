package handlers

import (
	"strings"
	"time"

	"bookshelf/internal/services"
	"bookshelf/internal/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	oauthStateCookie = "oauth_state"
	// OAuthStateTTL bounds the time between /auth/google and its callback.
	OAuthStateTTL = 10 * time.Minute
)

// GoogleHandlerConfig wires the Google sign-in routes.
type GoogleHandlerConfig struct {
	// Authenticator is nil when Google sign-in is not configured.
	Authenticator services.GoogleAuthenticator
	States        *services.OAuthStateSigner
	AuthService   *services.AuthService
	Sessions      *session.Manager
	ClientURL     string
	SecureCookie  bool
	Logger        *zap.Logger
}

// GoogleHandler handles the Google authorization code round trip.
type GoogleHandler struct {
	cfg    GoogleHandlerConfig
	logger *zap.Logger
}

// NewGoogleHandler creates a new GoogleHandler.
func NewGoogleHandler(cfg GoogleHandlerConfig) *GoogleHandler {
	return &GoogleHandler{
		cfg:    cfg,
		logger: cfg.Logger.Named("GoogleHandler"),
	}
}

// RegisterRoutes registers the Google sign-in routes with the Fiber app.
func (h *GoogleHandler) RegisterRoutes(router fiber.Router) {
	googleRoutes := router.Group("/auth/google")
	googleRoutes.Get("/", h.HandleStart)
	googleRoutes.Get("/callback", h.HandleCallback)
}

func (h *GoogleHandler) successURL() string {
	return strings.TrimRight(h.cfg.ClientURL, "/") + "/"
}

func (h *GoogleHandler) failureURL() string {
	return strings.TrimRight(h.cfg.ClientURL, "/") + "/login?error=google"
}

// fail sends the browser back to the login page with an error marker.
func (h *GoogleHandler) fail(c *fiber.Ctx, reason string, err error) error {
	h.logger.Warn("Google sign-in failed", zap.String("reason", reason), zap.Error(err))
	return c.Redirect(h.failureURL(), fiber.StatusFound)
}

// HandleStart redirects to the Google consent screen.
func (h *GoogleHandler) HandleStart(c *fiber.Ctx) error {
	if h.cfg.Authenticator == nil {
		return h.fail(c, "not configured", nil)
	}
	state, err := h.cfg.States.Issue()
	if err != nil {
		return h.fail(c, "issue state", err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int(OAuthStateTTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(h.cfg.Authenticator.AuthCodeURL(state), fiber.StatusFound)
}

// HandleCallback completes the sign-in. Unknown Google accounts are created.
func (h *GoogleHandler) HandleCallback(c *fiber.Ctx) error {
	if h.cfg.Authenticator == nil {
		return h.fail(c, "not configured", nil)
	}
	if providerErr := c.Query("error"); providerErr != "" {
		return h.fail(c, "provider error: "+providerErr, nil)
	}

	state := c.Query("state")
	expected := c.Cookies(oauthStateCookie)
	c.ClearCookie(oauthStateCookie)
	if state == "" || state != expected {
		return h.fail(c, "state mismatch", nil)
	}
	if err := h.cfg.States.Verify(state); err != nil {
		return h.fail(c, "state verification", err)
	}

	profile, err := h.cfg.Authenticator.Exchange(c.UserContext(), c.Query("code"))
	if err != nil {
		return h.fail(c, "code exchange", err)
	}
	user, err := h.cfg.AuthService.LoginWithGoogle(c.UserContext(), *profile)
	if err != nil {
		return h.fail(c, "find or create user", err)
	}
	if err := h.cfg.Sessions.Establish(c, user); err != nil {
		return h.fail(c, "establish session", err)
	}
	return c.Redirect(h.successURL(), fiber.StatusFound)
}
