package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bookshelf/internal/config"
	"bookshelf/internal/handlers"
	"bookshelf/internal/jobs"
	"bookshelf/internal/logger"
	"bookshelf/internal/models"
	"bookshelf/internal/repositories"
	"bookshelf/internal/services"
	"bookshelf/internal/session"
	"bookshelf/pkg/openlibrary"
	"bookshelf/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Initialize RabbitMQ Client ---
	// The broker is optional: without it import events are skipped.
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, appLogger)
		if err != nil {
			appLogger.Warn("RabbitMQ unavailable, import events disabled", zap.Error(err))
		} else {
			defer mqClient.Close()
		}
	}

	app, st, err := buildApp(cfg, appLogger, mqClient)
	if err != nil {
		appLogger.Fatal("Failed to build application", zap.Error(err))
	}

	// --- Background Jobs ---
	if st.sessionCleanup != nil {
		cleanupJob := jobs.NewSessionCleanupJob(st.sessionCleanup, cfg.SessionCleanupSchedule, appLogger)
		if err := cleanupJob.SetupAndStart(); err != nil {
			appLogger.Fatal("Failed to start session cleanup job", zap.Error(err))
		}
		defer cleanupJob.Stop()
	}

	if cfg.SeedMasterQuery != "" {
		n, err := st.imports.ImportFromCatalog(ctx, nil, cfg.SeedMasterQuery)
		if err != nil {
			appLogger.Warn("Failed to seed master list", zap.String("query", cfg.SeedMasterQuery), zap.Error(err))
		} else {
			appLogger.Info("Seeded master list", zap.String("query", cfg.SeedMasterQuery), zap.Int("books", n))
		}
	}

	// --- Start RabbitMQ Consumer ---
	if mqClient != nil {
		if err := mqClient.ConsumeImportEvents(rabbitmq.ImportEventLogger(appLogger.Named("import-events"))); err != nil {
			appLogger.Warn("Failed to start RabbitMQ consumer", zap.Error(err))
		}
	}

	// --- Start HTTP Server ---
	appLogger.Info("Starting server", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv), zap.String("db", cfg.DBDriver))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-quit
	appLogger.Info("Shutting down server...")
	cancel()

	if err := app.Shutdown(); err != nil {
		appLogger.Error("Error during Fiber shutdown", zap.Error(err))
	}
	if st.db != nil {
		if sqlDB, err := st.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	appLogger.Info("Server gracefully stopped")
}

// stores are the persistence handles behind the app.
type stores struct {
	db             *gorm.DB
	users          repositories.UserRepository
	books          repositories.BookRepository
	sessionStorage fiber.Storage
	sessionCleanup jobs.ExpiredSessionDeleter
	imports        *services.ImportService
}

// openDatabase connects to the configured SQL database and migrates the schema.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseDSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("driver %q has no database", cfg.DBDriver)
	}

	logLevel := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		// SQLite allows one writer; serialize instead of failing with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Book{}, &models.SessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return db, nil
}

// openStores picks GORM or in-memory repositories by DB_DRIVER.
func openStores(cfg *config.Config) (*stores, error) {
	if cfg.DBDriver == config.DriverMemory {
		// A nil session storage makes Fiber keep sessions in memory.
		return &stores{
			users: repositories.NewMockUserRepository(),
			books: repositories.NewMockBookRepository(),
		}, nil
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	sessionStorage := repositories.NewGORMSessionStorage(db)
	return &stores{
		db:             db,
		users:          repositories.NewGORMUserRepository(db),
		books:          repositories.NewGORMBookRepository(db),
		sessionStorage: sessionStorage,
		sessionCleanup: sessionStorage,
	}, nil
}

// buildApp wires repositories, services and handlers. mqClient may be nil.
func buildApp(cfg *config.Config, appLogger *zap.Logger, mqClient *rabbitmq.Client) (*fiber.App, *stores, error) {
	st, err := openStores(cfg)
	if err != nil {
		return nil, nil, err
	}

	// --- Initialize Services ---
	authService := services.NewAuthService(st.users, services.NewPasswordHasher(cfg.BcryptCost), appLogger)
	bookService := services.NewBookService(st.books, appLogger)

	catalog := openlibrary.NewClient(openlibrary.Config{
		BaseURL: cfg.OpenLibraryURL,
		Timeout: cfg.OpenLibraryTimeout,
	})
	var publisher services.EventPublisher
	if mqClient != nil {
		publisher = mqClient
	}
	st.imports = services.NewImportService(st.books, bookService, catalog, publisher, appLogger)

	var google services.GoogleAuthenticator
	if cfg.GoogleEnabled() {
		google = services.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL())
	} else {
		appLogger.Info("Google sign-in disabled: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}

	store := session.NewStore(session.StoreConfig{
		CookieName: cfg.SessionCookieName,
		Secure:     cfg.CookieSecure,
		TTL:        cfg.SessionTTL,
		Storage:    st.sessionStorage,
	})

	// --- Initialize Fiber App ---
	app := handlers.NewApp(handlers.Dependencies{
		Config:        cfg,
		Logger:        appLogger,
		AuthService:   authService,
		BookService:   bookService,
		ImportService: st.imports,
		Sessions:      session.NewManager(store, authService, appLogger),
		Google:        google,
		OAuthStates:   services.NewOAuthStateSigner(cfg.SessionSecret, handlers.OAuthStateTTL),
	})
	return app, st, nil
}
