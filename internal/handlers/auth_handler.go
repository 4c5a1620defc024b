package handlers

import (
	"bookshelf/internal/common"
	"bookshelf/internal/services"
	"bookshelf/internal/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for local authentication and the current principal.
type AuthHandler struct {
	authService *services.AuthService
	sessions    *session.Manager
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, sessions *session.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		logger:      logger.Named("AuthHandler"),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/local/register", h.HandleRegister)
	authRoutes.Post("/local/login", h.HandleLogin)
	authRoutes.Post("/logout", h.HandleLogout)

	router.Get("/api/me", h.HandleMe)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// HandleRegister creates a local account and signs it in.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	if err := h.sessions.Establish(c, user); err != nil {
		return common.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

// HandleLogin checks local credentials and signs the user in.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if common.IsKind(err, common.KindAuthentication) {
			h.logger.Info("Failed login attempt", zap.String("ip", c.IP()))
		}
		return err
	}
	if err := h.sessions.Establish(c, user); err != nil {
		return common.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// HandleLogout ends the session. It succeeds without a session too.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if err := h.sessions.Terminate(c); err != nil {
		return common.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleMe returns the signed-in user, or 401 with a null user.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	user, err := h.sessions.Resolve(c)
	if err != nil {
		return common.NewInternalError(err)
	}
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"user": nil})
	}
	return c.JSON(fiber.Map{"user": user})
}

// parseBody decodes the request body into out. An empty body leaves out untouched.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return common.NewValidationError("Invalid request body")
	}
	return nil
}
