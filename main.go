// jotlet/main.go
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"jotlet/broadcast"
	"jotlet/channel"
	"jotlet/config"
	"jotlet/database"
	"jotlet/handlers"
	"jotlet/models"
	"jotlet/notify"
	"jotlet/presence"
	"jotlet/utils"
)

type Application struct {
	db          *database.DatabaseService
	rateLimiter *models.RateLimiter
	logger      *slog.Logger
	uploadDir   string
	storage     models.StorageService
	notifier    *notify.Notifier
	sockets     http.Handler
	identityKey []byte
}

// Methods to satisfy the handlers.App interface
func (a *Application) DB() *database.DatabaseService    { return a.db }
func (a *Application) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *Application) Logger() *slog.Logger             { return a.logger }
func (a *Application) UploadDir() string                { return a.uploadDir }
func (a *Application) Storage() models.StorageService   { return a.storage }
func (a *Application) Notifier() *notify.Notifier       { return a.notifier }
func (a *Application) Sockets() http.Handler            { return a.sockets }
func (a *Application) IdentityKey() []byte              { return a.identityKey }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	port := pflag.StringP("port", "p", "", "listen port (overrides config)")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	createStaff := pflag.String("create-staff", "", "create a staff account with this username (password from JOTLET_STAFF_PASSWORD) and exit")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Could not load env file", "path", *envFile, "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}

	utils.BackupDir = cfg.BackupDir
	if err := os.MkdirAll(utils.BackupDir, 0755); err != nil {
		logger.Error("FATAL: Could not create backup directory", "path", utils.BackupDir, "error", err)
		os.Exit(1)
	}

	dbService, err := database.InitDB(cfg.DBDriver, cfg.DBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbService.DB.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if *createStaff != "" {
		u, err := dbService.CreateUser(context.Background(), *createStaff, os.Getenv("JOTLET_STAFF_PASSWORD"), true)
		if err != nil {
			logger.Error("Failed to create staff account", "error", err)
			os.Exit(1)
		}
		logger.Info("Staff account created", "user_id", u.ID, "username", u.Username)
		return
	}

	identitySecret := cfg.IdentityKey
	if identitySecret == "" {
		saltBytes := make([]byte, 32)
		if _, err := rand.Read(saltBytes); err != nil {
			logger.Error("Failed to generate identity key", "error", err)
			os.Exit(1)
		}
		identitySecret = hex.EncodeToString(saltBytes)
		logger.Warn("No identity key configured; author fingerprints will change on restart")
	}

	// --- Storage Service Init ---
	var storageService models.StorageService
	if cfg.S3.Enabled {
		storageService, err = utils.NewS3Storage(context.Background(), cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey,
			cfg.S3.Bucket, cfg.S3.Region, cfg.S3.PublicURL, cfg.S3.UseSSL)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		logger.Info("S3 Storage initialized", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
	} else {
		if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
			logger.Error("FATAL: Could not create uploads directory", "error", err)
			os.Exit(1)
		}
		storageService = &utils.LocalStorage{UploadDir: cfg.UploadDir}
		logger.Info("Local Storage initialized", "dir", cfg.UploadDir)
	}

	// --- Live channel: presence + broadcast ---
	var (
		store presence.Store
		bus   broadcast.Bus
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("Invalid redis URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		redisBus, err := broadcast.NewRedisBus(context.Background(), client, logger)
		if err != nil {
			logger.Error("Failed to start redis bus", "error", err)
			os.Exit(1)
		}
		defer redisBus.Close()
		store, bus = presence.NewRedisStore(client, config.PresenceTTL), redisBus
		logger.Info("Live channel backed by redis", "addr", opts.Addr)
	} else {
		store, bus = presence.NewMemoryStore(config.PresenceTTL), broadcast.NewHub()
		logger.Info("Live channel running in-process")
	}

	sockets := channel.NewServer(dbService, store, bus, logger)

	every, prune, expire := cfg.RateLimitDurations()
	app := &Application{
		db:          dbService,
		rateLimiter: models.NewRateLimiter(every, cfg.RateLimit.Burst, prune, expire),
		logger:      logger,
		uploadDir:   cfg.UploadDir,
		storage:     storageService,
		notifier:    notify.New(bus, logger),
		sockets:     sockets,
		identityKey: utils.DeriveKey(identitySecret),
	}

	mux := handlers.SetupRouter(app)

	var s3PublicURL string
	if s3Store, ok := storageService.(*utils.S3Storage); ok {
		s3PublicURL = s3Store.PublicURL
	}
	finalHandler := handlers.NewSecurityHeadersMiddleware(s3PublicURL)(mux)

	// --- Graceful Shutdown ---
	server := &http.Server{Addr: ":" + cfg.Port, Handler: finalHandler}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("jotlet server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+cfg.Port,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	forced := false
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		forced = true
	}
	// Sockets are hijacked and invisible to server.Shutdown. Drain them while
	// the presence store and bus are still open.
	if err := sockets.Shutdown(ctx); err != nil {
		logger.Error("Live sockets did not drain", "error", err)
		forced = true
	}
	if forced {
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
