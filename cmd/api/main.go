// @title                       Clinic appointments API
// @version                     1.0
// @description                 Authentication, role-gated access and the appointment lifecycle for a clinic.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the token.
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

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicflow/rdv-api/internal/api"
	"github.com/clinicflow/rdv-api/internal/core/ports"
	"github.com/clinicflow/rdv-api/internal/core/service"
	mongodb "github.com/clinicflow/rdv-api/internal/infrastructure/db/mongo"
	redisdb "github.com/clinicflow/rdv-api/internal/infrastructure/db/redis"
	"github.com/clinicflow/rdv-api/internal/infrastructure/queue"
	"github.com/clinicflow/rdv-api/internal/pkg/config"
	"github.com/clinicflow/rdv-api/pkg/logger"
)

const shutdownGrace = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-api",
		Short:        "Clinic appointment scheduling API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedRolesCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func seedRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-roles",
		Short: "Create the role registry and indexes, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			client, db, err := mongodb.Connect(cmd.Context(), mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
			if err != nil {
				return err
			}
			defer disconnectMongo(client, log)

			store, err := mongodb.Bootstrap(cmd.Context(), db)
			if err != nil {
				return err
			}
			for _, r := range store.Catalog.Records() {
				log.Info().Str("role", r.Name.String()).Str("id", r.ID).Int64("holders", r.Holders).Msg("role ready")
			}
			return nil
		},
	}
}

func setup(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "clinic-api",
		Env:     cfg.Env,
	})
	return cfg, log, nil
}

func runServer(ctx context.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}

	// --- MongoDB ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer disconnectMongo(mongoClient, log)

	store, err := mongodb.Bootstrap(ctx, db)
	if err != nil {
		return err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("mongodb ready")

	// --- Redis (optional) ---
	var (
		rdb   *goredis.Client
		guard ports.LoginGuard
		idem  ports.IdempotencyStore
	)
	if cfg.Redis.Enabled {
		rdb, err = redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("redis close failed")
			}
		}()
		guard = redisdb.NewLoginGuard(rdb)
		idem = redisdb.NewIdempotencyStore(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis ready")
	} else {
		log.Warn().Msg("redis disabled: login throttling and idempotency keys are off")
	}

	// --- Audit trail ---
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, store.Audit, log)
	dispatcher.Start(context.WithoutCancel(ctx))
	defer dispatcher.Stop()

	// --- Services ---
	tokens := service.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	authService := service.NewAuthService(store.Users, store.Roles, service.NewBcryptHasher(bcrypt.DefaultCost), tokens, guard, log)
	apptService := service.NewAppointmentService(store.Appointments, store.Users, store.Audit, dispatcher, idem, log)

	e := api.NewRouter(api.Deps{
		Auth:         authService,
		Appointments: apptService,
		Tokens:       tokens,
		Mongo:        db,
		Redis:        rdb,
		Log:          log,
	}, api.Options{CORSOrigin: cfg.CORSOrigin, RateLimitRPS: cfg.RateLimitRPS})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	return nil
}

func disconnectMongo(client interface{ Disconnect(context.Context) error }, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("mongodb disconnect failed")
	}
}
