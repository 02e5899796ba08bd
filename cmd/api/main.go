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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/emedical/clinic-api/internal/config"
	"github.com/emedical/clinic-api/internal/handlers"
	"github.com/emedical/clinic-api/internal/logger"
	"github.com/emedical/clinic-api/internal/services"
	"github.com/emedical/clinic-api/internal/store"
	"github.com/emedical/clinic-api/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "api",
		Short: "E-medical clinic booking API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// bootstrap loads the configuration and opens the database shared by every command.
func bootstrap(ctx context.Context) (*config.Config, zerolog.Logger, *mongo.Client, *mongo.Database, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, db, err := store.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, log, nil, nil, err
	}
	log.Info().Str("database", cfg.MongoDatabase).Msg("connected to MongoDB")
	return cfg, log, client, db, nil
}

func runServer() error {
	ctx := context.Background()
	cfg, log, client, db, err := bootstrap(ctx)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	users := store.NewUserRepository(db)
	doctors := store.NewDoctorRepository(db)
	appointments := store.NewAppointmentRepository(db)
	for name, ensure := range map[string]func(context.Context) error{
		store.UsersCollection:        users.EnsureIndexes,
		store.DoctorsCollection:      doctors.EnsureIndexes,
		store.AppointmentsCollection: appointments.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}

	var (
		locker  services.Locker = services.NewLocalSlotLocker()
		limiter services.RateLimiter
	)
	if cfg.RedisAddr != "" {
		rdb, err := services.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer func(rdb *redis.Client) { _ = rdb.Close() }(rdb)

		locker = services.NewRedisSlotLocker(rdb, cfg.SlotLockTTL)
		limiter = services.NewRedisRateLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow)
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	} else {
		log.Warn().Msg("REDIS_ADDR not set: slot locks are process-local and rate limiting is disabled")
	}

	notifier := services.NewNotificationService(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, log)

	h := handlers.NewHandler(
		users,
		doctors,
		appointments,
		notifier,
		locker,
		utils.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiresIn),
		log,
		handlers.Options{
			Production: cfg.IsProduction(),
			CookieTTL:  cfg.CookieTTL(),
			MaxLimit:   cfg.QueryMaxLimit,
		},
	)

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(h, log, handlers.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		Development: cfg.IsDev(),
		Production:  cfg.IsProduction(),
		RateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
