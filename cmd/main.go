package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/immxrtalbeast/geopulse/internal/api/http"
	"github.com/immxrtalbeast/geopulse/internal/auth"
	"github.com/immxrtalbeast/geopulse/internal/bus"
	"github.com/immxrtalbeast/geopulse/internal/config"
	"github.com/immxrtalbeast/geopulse/internal/hub"
	"github.com/immxrtalbeast/geopulse/internal/presence"
	"github.com/immxrtalbeast/geopulse/internal/repository"
	"github.com/immxrtalbeast/geopulse/internal/repository/model"
	"github.com/immxrtalbeast/geopulse/internal/service"
	"github.com/immxrtalbeast/geopulse/internal/session"
	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
	"github.com/immxrtalbeast/geopulse/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("application stopped", sl.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDatabase(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	presenceStore, closePresence, err := setupPresence(ctx, cfg.Presence)
	if err != nil {
		return fmt.Errorf("setup presence: %w", err)
	}
	defer closePresence()

	events, closeBus, err := setupBus(ctx, cfg.Bus, log)
	if err != nil {
		return fmt.Errorf("setup bus: %w", err)
	}
	defer closeBus()

	tokens, err := setupTokens(cfg.Auth)
	if err != nil {
		return fmt.Errorf("setup tokens: %w", err)
	}
	hasher := auth.NewHasher(auth.Params{
		Memory:      cfg.Auth.Argon2.Memory,
		Iterations:  cfg.Auth.Argon2.Iterations,
		Parallelism: cfg.Auth.Argon2.Parallelism,
	})

	userRepo := repository.NewPostgresUserRepository(db)
	locationRepo := repository.NewPostgresLocationRepository(db)
	chatRepo := repository.NewPostgresChatRepository(db)
	inviteRepo := repository.NewPostgresInviteRepository(db)

	fanout := hub.New(cfg.Realtime.SubscriberBuffer)

	userService := service.NewUserService(userRepo, hasher, tokens, log)
	chatService := service.NewChatService(chatRepo, presenceStore, fanout, service.ChatConfig{
		HistoryDefault: cfg.Chat.HistoryDefault,
		HistoryMax:     cfg.Chat.HistoryMax,
	}, log)
	inviteService := service.NewInviteService(inviteRepo, userRepo, fanout, log)
	positionService := service.NewPositionService(presenceStore, events, fanout, log)
	spatialService := service.NewSpatialService(locationRepo, service.SpatialConfig{
		MaxRadiusMeters: cfg.Spatial.MaxRadiusMeters,
	})
	recorder := service.NewLocationRecorder(locationRepo, log)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := events.Consume(ctx, recorder.Handle); err != nil {
			log.Error("location recorder stopped", sl.Err(err))
		}
	}()

	realtime := httpapi.NewRealtimeController(
		userService,
		fanout,
		session.Deps{Positions: positionService, Chat: chatService, Invites: inviteService},
		session.Config{
			WriteTimeout: cfg.Realtime.WriteTimeout,
			PongWait:     cfg.Realtime.PongWait,
			PingPeriod:   cfg.Realtime.PingPeriod,
			MaxFrameSize: cfg.Realtime.MaxFrameSize,
			InboundRate:  cfg.Realtime.InboundRate,
			InboundBurst: cfg.Realtime.InboundBurst,
		},
		cfg.HTTP.CORSOrigins,
		log,
	)

	router := httpapi.SetupRouter(cfg.HTTP.CORSOrigins, httpapi.Controllers{
		Users:     httpapi.NewUserController(userService),
		Rooms:     httpapi.NewRoomController(chatService, userService),
		Invites:   httpapi.NewInviteController(inviteService, userService),
		Positions: httpapi.NewPositionController(positionService, spatialService, userService),
		Realtime:  realtime,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting application",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("env", cfg.Env),
			slog.String("jwt_alg", tokens.Algorithm()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; closing the
	// hub ends their sessions.
	fanout.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", sl.Err(err))
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Warn("location recorder did not stop in time")
	}

	log.Info("application stopped")
	return nil
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; attempt <= cfg.ConnectAttempts; attempt++ {
		db, err = repository.Open(postgres.Open(cfg.DSN))
		if err == nil {
			break
		}
		log.Warn("database not ready", slog.Int("attempt", attempt), sl.Err(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS postgis").Error; err != nil {
		return nil, fmt.Errorf("enable postgis: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func setupPresence(ctx context.Context, cfg config.PresenceConfig) (service.PresenceStore, func(), error) {
	switch cfg.Driver {
	case config.PresenceDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := presence.NewRedisStore(client, cfg.TTL)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	case config.PresenceDriverBadger:
		db, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLogger(nil))
		if err != nil {
			return nil, nil, err
		}
		return presence.NewBadgerStore(db, cfg.TTL), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown presence driver %q", cfg.Driver)
	}
}

type eventBus interface {
	bus.Publisher
	bus.Consumer
}

func setupBus(ctx context.Context, cfg config.BusConfig, log *slog.Logger) (eventBus, func(), error) {
	switch cfg.Driver {
	case config.BusDriverNATS:
		nc, err := nats.Connect(cfg.URL, nats.Name("geopulse"))
		if err != nil {
			return nil, nil, err
		}
		js, err := bus.NewJetStreamBus(ctx, nc, bus.JetStreamConfig{
			Stream:  cfg.Stream,
			Subject: cfg.Subject,
			Durable: cfg.Durable,
		}, log)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return js, func() { _ = nc.Drain() }, nil
	case config.BusDriverMemory:
		mem := bus.NewMemoryBus(cfg.Buffer, log)
		return mem, mem.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
	}
}

// setupTokens prefers RS256 when both key files are configured.
func setupTokens(cfg config.AuthConfig) (*auth.Tokens, error) {
	if cfg.JWTPrivateKeyPath != "" && cfg.JWTPublicKeyPath != "" {
		priv, err := os.ReadFile(cfg.JWTPrivateKeyPath)
		if err != nil {
			return nil, err
		}
		pub, err := os.ReadFile(cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, err
		}
		return auth.NewRSATokens(priv, pub, cfg.TokenTTL)
	}
	return auth.NewHMACTokens([]byte(cfg.JWTSecret), cfg.TokenTTL)
}
