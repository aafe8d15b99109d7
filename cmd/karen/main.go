package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/The24thDS/karen-backend/internal/assets"
	"github.com/The24thDS/karen-backend/internal/cache"
	"github.com/The24thDS/karen-backend/internal/config"
	"github.com/The24thDS/karen-backend/internal/handlers"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/metrics"
	"github.com/The24thDS/karen-backend/internal/middleware"
	"github.com/The24thDS/karen-backend/internal/neopersist"
	"github.com/The24thDS/karen-backend/internal/server"
	"github.com/The24thDS/karen-backend/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// A missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Neo4j
	log.Info("Connecting to Neo4j", "uri", cfg.Neo4j.URI, "database", cfg.Neo4j.Database)
	executor, err := neopersist.NewNeo4jExecutor(neopersist.ExecutorConfig{
		URI:         cfg.Neo4j.URI,
		Username:    cfg.Neo4j.User,
		Password:    cfg.Neo4j.Password,
		DBName:      cfg.Neo4j.Database,
		MaxPoolSize: cfg.Neo4j.MaxPoolSize,
		Timeout:     time.Duration(cfg.Neo4j.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}
	defer executor.Close(context.Background())
	if err := executor.Verify(ctx); err != nil {
		return fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	pm := neopersist.NewPersistenceManager(m.InstrumentRunner(executor))
	if err := pm.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	// Assets
	store, err := assetStore(ctx, cfg)
	if err != nil {
		return err
	}
	coordinator := assets.NewManager(cfg.Assets.TempDir, store, log)
	log.Info("Asset store ready", "backend", cfg.Assets.Backend)

	recs := cache.New(cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.RecommendationTTL,
	})
	if closer, ok := recs.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// Services
	log.Info("Setting up Services")
	users, err := services.NewUserService(pm, log)
	if err != nil {
		return err
	}
	tags, err := services.NewTagService(pm, log)
	if err != nil {
		return err
	}
	collections, err := services.NewCollectionService(pm, log)
	if err != nil {
		return err
	}
	modelService := services.NewModelService(pm, coordinator, recs, log)
	votes := services.NewVoteService(pm, log)
	recommendations := services.NewRecommendationService(pm, recs, log)
	tokens := services.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Handlers
	gin.SetMode(cfg.Server.Mode)
	router := server.NewRouter(server.RouterConfig{
		Log:               log,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Metrics:           m,
		Gatherer:          registry,
		AuthMiddleware:    middleware.NewAuthMiddleware(log, tokens),
		AuthHandler:       handlers.NewAuthHandler(users, tokens),
		ModelHandler:      handlers.NewModelHandler(modelService, votes, recommendations),
		CollectionHandler: handlers.NewCollectionHandler(collections),
		TagHandler:        handlers.NewTagHandler(tags),
		HealthHandler:     handlers.NewHealthHandler(executor),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func assetStore(ctx context.Context, cfg *config.Config) (assets.Store, error) {
	switch cfg.Assets.Backend {
	case "minio":
		return assets.NewMinioStore(ctx, assets.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
	default:
		return assets.NewLocalStore(cfg.Assets.UploadDir), nil
	}
}
