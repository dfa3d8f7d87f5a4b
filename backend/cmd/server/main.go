package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aurora/backend/internal/account"
	"aurora/backend/internal/api"
	"aurora/backend/internal/auth"
	"aurora/backend/internal/chat"
	"aurora/backend/internal/content"
	"aurora/backend/internal/engagement"
	"aurora/backend/internal/graph"
	"aurora/backend/internal/graph/memory"
	"aurora/backend/internal/media"
	"aurora/backend/internal/metrics"
	"aurora/backend/internal/social"
	"aurora/backend/internal/storage"
	"aurora/backend/pkg/config"
	"aurora/backend/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Aurora server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	a, err := build(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize server", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := a.close(shutdownCtx); err != nil {
		log.Error("Failed to release resources", zap.Error(err))
	}

	log.Info("Server exited")
}

// app is the wired server plus whatever must be released on shutdown
type app struct {
	router  *gin.Engine
	hub     *chat.Hub
	closers []func(context.Context) error
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// build opens the store, seeds the realm catalog and wires every service onto the router
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.Get()
	a := &app{}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	if err := store.EnsureSchema(ctx); err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	realms := content.BuiltinRealms()
	if cfg.RealmsFile != "" {
		if realms, err = content.LoadCatalog(cfg.RealmsFile); err != nil {
			_ = a.close(ctx)
			return nil, err
		}
	}

	collector := metrics.NewCollector("aurora")

	contentSvc, err := content.NewService(store, content.Options{EnforceQuota: cfg.EnforceRealmQuota})
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	if err := contentSvc.Seed(ctx, realms); err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("failed to seed realms: %w", err)
	}
	log.Info("Realm catalog seeded", zap.Int("realms", len(realms)))

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.hub = chat.NewHub(store, collector)
	if cfg.NATSURL != "" {
		relay, err := chat.NewNATSRelay(cfg.NATSURL, uuid.NewString(), a.hub, collector)
		if err != nil {
			_ = a.close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return relay.Close() })
	}

	var signer *storage.Signer
	if cfg.AWSBucket != "" {
		signer, err = storage.NewS3Signer(ctx, cfg.AWSRegion, cfg.AWSBucket, cfg.UploadURLTTL, contentSvc)
		if err != nil {
			_ = a.close(ctx)
			return nil, err
		}
	} else {
		log.Info("AWS_BUCKET_NAME not set, upload signing disabled")
	}

	a.router = api.NewRouter(api.Deps{
		Accounts:   account.NewService(store, auth.NewPasswords(0), tokens, media.PaletteFromFile, cfg.UploadsDir),
		Content:    contentSvc,
		Engagement: engagement.NewService(store, cfg.FeedWindow, collector),
		Social:     social.NewService(store),
		Hub:        a.hub,
		Tokens:     tokens,
		Signer:     signer,
		Metrics:    collector,
	}, api.Options{
		CORSOrigin: cfg.CORSOrigin,
		UploadsDir: cfg.UploadsDir,
		Production: cfg.IsProduction(),
		Chat: chat.ClientOptions{
			SendBuffer:      cfg.ChatSendBuffer,
			MaxMessageBytes: cfg.ChatMaxMessageBytes,
		},
	})
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	if cfg.StoreBackend == config.StoreMemory {
		logger.Get().Warn("Using the in-memory graph store; data is lost on restart")
		return memory.NewStore(), nil
	}

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		return nil, err
	}
	return graph.NewRepository(driver, cfg.Neo4jDatabase), nil
}
