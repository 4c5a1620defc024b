package handlers

import (
	"strings"

	"bookshelf/internal/config"
	"bookshelf/internal/middleware"
	"bookshelf/internal/services"
	"bookshelf/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// AppName is reported by Fiber and used in logs.
const AppName = "bookshelf"

// Dependencies are the collaborators NewApp wires into routes.
type Dependencies struct {
	Config        *config.Config
	Logger        *zap.Logger
	AuthService   *services.AuthService
	BookService   *services.BookService
	ImportService *services.ImportService
	Sessions      *session.Manager
	// Google is nil when Google sign-in is not configured.
	Google      services.GoogleAuthenticator
	OAuthStates *services.OAuthStateSigner
}

// NewApp builds the Fiber app with middleware and every route.
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      AppName,
		ErrorHandler: middleware.ErrorHandler(deps.Logger),
	})

	// The request logger wraps recover so panics are logged as 500s.
	app.Use(middleware.RequestLogger(deps.Logger))
	app.Use(recover.New())

	corsConfig := cors.Config{AllowHeaders: "Origin, Content-Type, Accept, " + middleware.RequestIDHeader}
	if origin := strings.TrimRight(deps.Config.ClientURL, "/"); origin != "" {
		// Cookies only travel cross-origin to an explicit origin.
		corsConfig.AllowOrigins = origin
		corsConfig.AllowCredentials = true
	}
	app.Use(cors.New(corsConfig))

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	NewAuthHandler(deps.AuthService, deps.Sessions, deps.Logger).RegisterRoutes(app)
	NewGoogleHandler(GoogleHandlerConfig{
		Authenticator: deps.Google,
		States:        deps.OAuthStates,
		AuthService:   deps.AuthService,
		Sessions:      deps.Sessions,
		ClientURL:     deps.Config.ClientURL,
		SecureCookie:  deps.Config.CookieSecure,
		Logger:        deps.Logger,
	}).RegisterRoutes(app)

	books := app.Group("/api/books", middleware.SessionRequired(deps.Sessions))
	NewBookHandler(deps.BookService, deps.ImportService).RegisterRoutes(books)

	return app
}
