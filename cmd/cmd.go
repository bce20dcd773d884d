package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"interaction-backend/internal/cache"
	"interaction-backend/internal/config"
	"interaction-backend/internal/handlers"
	"interaction-backend/internal/notify"
	"interaction-backend/internal/repository"
	"interaction-backend/internal/services"
	"interaction-backend/internal/storage"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func Run() {
	// Load configuration
	configPath := os.Getenv("APP_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := repository.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := repository.ApplySchema(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	photoRepo := repository.NewPhotoRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	blobs, err := storage.NewS3Store(ctx, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 store")
	}

	var unread services.UnreadCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer rdb.Close()
		unread = cache.NewUnreadStorage(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Unread cache enabled")
	}

	// Notification sinks
	wsHub := notify.NewWSHub()
	sinks := []notify.Sink{wsHub}
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("interaction-backend"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Drain()
		sinks = append(sinks, notify.NewNatsPublisher(nc, cfg.NATS.SubjectPrefix))
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS publisher enabled")
	}
	if cfg.APNs.KeyPath != "" {
		pusher, err := notify.NewAPNsPusher(cfg.APNs, userRepo)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		sinks = append(sinks, pusher)
		log.Info().Bool("production", cfg.APNs.Production).Msg("APNs push enabled")
	}
	dispatcher := notify.NewDispatcher(cfg.Engine.NotifyTimeout, sinks...)

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	photoService := services.NewPhotoService(userRepo, photoRepo, permissionRepo, blobs)
	permissionService := services.NewPermissionService(userRepo, photoRepo, permissionRepo, dispatcher, cfg.Engine.GrantTTL)
	likeService := services.NewLikeService(userRepo, likeRepo, dispatcher)
	messageService := services.NewMessageService(userRepo, messageRepo, blobs, unread, dispatcher, services.MessageLimits{
		MaxLength:      cfg.Engine.MaxMessageLength,
		MaxEmojiLength: cfg.Engine.MaxEmojiLength,
		PageSize:       cfg.Engine.ConversationLimit,
	})

	// Setup router
	router := newRouter(routes{
		auth:       userService,
		user:       handlers.NewUserHandler(userService),
		photo:      handlers.NewPhotoHandler(photoService),
		permission: handlers.NewPermissionHandler(permissionService),
		like:       handlers.NewLikeHandler(likeService),
		message:    handlers.NewMessageHandler(messageService),
		websocket:  handlers.NewWebSocketHandler(wsHub, userService),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}

	// Let in-flight notifications finish before the connections close
	dispatcher.Wait()

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
