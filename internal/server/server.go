// Package server implements the appdeck REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/appdeck-dev/appdeck/internal/auth"
	"github.com/appdeck-dev/appdeck/internal/config"
	"github.com/appdeck-dev/appdeck/internal/models"
)

// ResetNotifier delivers a password reset token to its user
type ResetNotifier func(user models.User, token string)

// Server represents the HTTP server
type Server struct {
	router        *gin.Engine
	db            *gorm.DB
	config        *config.Config
	logger        zerolog.Logger
	resetNotifier ResetNotifier
	version       string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	// Initialize database with production settings
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Load JWT secret from database, generating it on first start
	if err := initJWT(db, cfg, zlog); err != nil {
		return nil, err
	}

	server := &Server{
		db:      db,
		config:  cfg,
		logger:  zlog,
		version: version,
	}
	server.resetNotifier = server.logResetToken

	if err := server.seedAdmin(); err != nil {
		return nil, err
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// initDatabase opens the configured database. SQLite gets the pool and
// pragma settings suited to a single-node deployment.
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8   // Reduced for SQLite efficiency
		maxIdleConns    = 4   // Reduced proportionally
		connMaxLifetime = 300 // 5 minutes
		busyTimeout     = 5000
		cacheSize       = 10000 // 10MB
	)

	gormConfig := &gorm.Config{
		Logger: logger.New(
			log.New(os.Stderr, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.Database.URL)
	default:
		dialector = sqlite.Open(cfg.Database.URL)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Database.Driver == "mysql" {
		return db, nil
	}

	// Apply SQLite pragmas directly (connection string pragmas may not work with all drivers)
	// WAL mode must be set first for optimal concurrency
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheSize),
		"PRAGMA foreign_keys=1",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// initJWT loads the persisted JWT secret or creates the config singleton
func initJWT(db *gorm.DB, cfg *config.Config, zlog zerolog.Logger) error {
	var settings models.Config
	err := db.First(&settings).Error
	if err == nil {
		auth.InitializeJWT(settings.JWTSecret, cfg.Auth.TokenTTL)
		zlog.Debug().Msg("Loaded JWT secret from database")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Generate JWT secret (64 hex characters = 32 bytes of randomness)
	secret, err := auth.GenerateSecret(32)
	if err != nil {
		return err
	}
	if err := db.Create(&models.Config{JWTSecret: secret}).Error; err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	auth.InitializeJWT(secret, cfg.Auth.TokenTTL)
	zlog.Info().Msg("Generated JWT secret")
	return nil
}

// seedAdmin creates the configured admin account when no users exist yet
func (s *Server) seedAdmin() error {
	email, password := s.config.Auth.SeedAdmin, s.config.Auth.SeedPassword
	if email == "" || password == "" {
		return nil
	}

	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := &models.User{Email: email, Name: "Administrator", PasswordHash: hash, Role: models.RoleAdmin}
	if err := s.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("Seeded admin user")
	return nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	// Set Gin mode based on environment
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// CORS middleware for the browser client
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	// Public auth endpoints (no auth required)
	public := s.router.Group("/api/auth")
	{
		public.POST("/login", s.login)
		public.POST("/register", s.register)
		public.POST("/forgot-password", s.forgotPassword)
		public.POST("/reset-password", s.resetPassword)
	}

	// Authenticated API routes (JWT required)
	api := s.router.Group("/api")
	api.Use(JWTAuthMiddleware(s.db, s.logger))
	{
		api.POST("/auth/logout", s.logout)
		api.GET("/auth/me", s.getCurrentUser)
		api.PUT("/auth/me", s.updateCurrentUser)

		api.GET("/users", s.listUsers)
		api.GET("/users/:id", s.getUser)

		// User management (admin only)
		admin := api.Group("/users")
		admin.Use(AdminOnlyMiddleware(s.logger))
		{
			admin.POST("", s.createUser)
			admin.PUT("/:id", s.updateUser)
			admin.DELETE("/:id", s.deleteUser)
		}
	}

	s.router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Not found")
	})
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "appdeck-api",
		"version":   s.version,
	})
}

// Handler returns the HTTP handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetDB returns the database connection
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// SetResetNotifier replaces how password reset tokens are delivered. The
// default logs them.
func (s *Server) SetResetNotifier(fn ResetNotifier) {
	s.resetNotifier = fn
}

func (s *Server) logResetToken(user models.User, token string) {
	s.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Str("reset_token", token).
		Msg("Password reset requested")
}

// Close releases the database connection
func (s *Server) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	port := ":" + s.config.Server.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		return err
	case <-sigChan:
	}
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Close database connection to flush WAL writes
	if err := s.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	} else {
		s.logger.Info().Msg("Database closed successfully")
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
