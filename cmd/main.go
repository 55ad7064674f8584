// @title Short Drama Service API
// @version 1.0
// @description Projects, scenes, characters and AI generation for the short-drama factory.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "short-drama-service/docs"
	"short-drama-service/internal/assets"
	"short-drama-service/internal/auth"
	"short-drama-service/internal/config"
	"short-drama-service/internal/generation"
	"short-drama-service/internal/handlers"
	"short-drama-service/internal/metrics"
	"short-drama-service/internal/queue"
	"short-drama-service/internal/repository"
	"short-drama-service/internal/services"
	"short-drama-service/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "short-drama-service",
	Short: "Short-drama factory backend",
	// serving is the default
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the task queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := InitConfig()
		if cfg.StorageBackend == config.BackendMemory {
			log.Println("Memory backend has no schema to migrate")
			return nil
		}
		db, err := config.ConnectDatabase(cfg)
		if err != nil {
			return err
		}
		if err := repository.Migrate(db); err != nil {
			return err
		}
		log.Printf("Migrated %s database", cfg.StorageBackend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func serve() error {
	cfg := InitConfig()

	store, err := repository.NewStoreFromConfig(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer store.Close()

	m := metrics.NewMetrics()
	tokens := auth.NewTokenService(cfg.JWTSecret)

	assetStore, uploadDir := InitAssetStore(cfg)
	redisClient := InitRedisClient(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	gen, err := generation.NewServiceFromConfig(cfg, m)
	if err != nil {
		log.Fatalf("Generation service initialization failed: %v", err)
	}

	var (
		prefs  services.PreferenceStore = services.NewMemoryPreferences()
		events services.Publisher
	)
	if redisClient != nil {
		prefs = services.NewRedisPreferences(redisClient)
		events = redisClient
	}
	notifications := services.NewNotificationService(prefs, services.LogMailer{}, events)

	registry := queue.NewRegistry()
	var resolver queue.Resolver = queue.CannedResolver{}
	if cfg.QueueUseAI {
		resolver = queue.SuggestResolver{Suggest: gen.SuggestFields}
	}
	sweeper := queue.NewSweeper(registry, resolver, queue.Options{
		Interval:  cfg.QueueSweepInterval,
		StepDelay: cfg.QueueStepDelay,
	}, m, notifications)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Queue sweeper failed to start: %v", err)
	}

	app := handlers.NewRouter(handlers.Deps{
		Tokens:         tokens,
		Users:          services.NewUserService(store, tokens),
		Projects:       services.NewProjectService(store),
		Characters:     services.NewCharacterService(store, assetStore),
		Notifications:  notifications,
		Generation:     gen,
		Queue:          registry,
		Metrics:        m,
		Health:         store.Ping,
		AllowedOrigins: cfg.AllowedOrigins,
		UploadDir:      uploadDir,
		AccessLog:      true,
	})

	routes := app.GetRoutes(true)
	log.Println("Registered routes:")
	for _, r := range routes {
		log.Printf("  %s %s\n", r.Method, r.Path)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on port %s", cfg.AppPort)
		errCh <- app.Listen(":" + cfg.AppPort)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		sweeper.Stop()
		return err
	case sig := <-quit:
		log.Printf("Received %s, shutting down", sig)
	}

	sweeper.Stop()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
	return nil
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

// InitAssetStore picks MinIO when configured and the local upload directory
// otherwise. The directory is returned so the router can serve it.
func InitAssetStore(cfg *config.Config) (assets.Store, string) {
	if cfg.MinioEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		minioClient, err := storage.NewMinioClient(ctx, cfg)
		if err != nil {
			log.Fatalf("MinIO client initialization failed: %v", err)
		}
		publicBase, err := storage.PublicBaseURL(cfg)
		if err != nil {
			log.Fatalf("MinIO configuration error: %v", err)
		}
		log.Printf("Storing assets in MinIO bucket %s, served from %s", cfg.MinioBucket, publicBase)
		return assets.NewMinioStore(minioClient, cfg.MinioBucket, publicBase), ""
	}

	local, err := assets.NewLocalStore(cfg.UploadDir, cfg.BaseURL+"/uploads")
	if err != nil {
		log.Fatalf("Upload directory initialization failed: %v", err)
	}
	log.Printf("Storing assets in %s", cfg.UploadDir)
	return local, cfg.UploadDir
}

// InitRedisClient returns nil when Redis is not configured.
func InitRedisClient(cfg *config.Config) *storage.RedisClient {
	if !cfg.RedisEnabled() {
		return nil
	}
	client, err := storage.NewRedisClient(cfg.RedisHost, cfg.RedisPort)
	if err != nil {
		log.Fatalf("Redis initialization failed: %v", err)
	}
	log.Printf("Connected to Redis at %s:%s", cfg.RedisHost, cfg.RedisPort)
	return client
}
