package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"infostore/internal/auth"
	"infostore/internal/cache"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	"infostore/internal/handler"
	"infostore/internal/jobs"
	"infostore/internal/middleware"
	"infostore/internal/repository/postgres/infostore"
	authsvc "infostore/internal/service/auth"
	svc "infostore/internal/service/infostore"
)

func serveCmd() *cobra.Command {
	var migrate bool

	command := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reservation janitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			cfg, logger := rt.cfg, rt.logger

			logger.Info("server starting",
				"environment", cfg.Environment,
				"port", cfg.Port,
				"table_prefix", cfg.TablePrefix,
			)

			if migrate {
				if err := infostore.Migrate(ctx, rt.pool, rt.tables); err != nil {
					return err
				}
			}

			jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
			if err != nil {
				return fmt.Errorf("create JWT verifier: %w", err)
			}
			defer jwtVerifier.Close()

			// Create repositories
			repoConfig := rt.repoConfig()
			docRepo := infostore.NewDocumentRepository(repoConfig)
			reservationRepo := infostore.NewReservationRepository(repoConfig)

			var folders repo.FolderReader = infostore.NewFolderRepository(repoConfig)
			if cfg.RedisAddr != "" {
				client := cache.NewRedisClient(cfg.RedisAddr)
				defer client.Close()
				folders = cache.NewRedisFolderCache(client, folders, cfg.FolderCacheTTL, logger)
				logger.Info("folder cache enabled", "redis_addr", cfg.RedisAddr, "ttl", cfg.FolderCacheTTL)
			}

			others, _ := models.ParsePermissionLevel(cfg.OtherUsersPermission)
			permissions := authsvc.NewOwnerPermissions(folders, others)
			docService := svc.NewDocumentService(docRepo, folders, reservationRepo, permissions, svc.NewSizeValidator(nil), logger)

			// Reservation janitor
			executor := jobs.NewTaskExecutor([]jobs.CronJob{
				jobs.NewReservationSweeper(reservationRepo, cfg.JanitorSchedule, cfg.ReservationTTL, logger),
			}, logger)
			if err := executor.Start(); err != nil {
				return err
			}
			defer executor.Stop()

			mux := http.NewServeMux()
			handler.NewDocumentHandler(docService, logger).Register(mux)

			// Build middleware chain
			var h http.Handler = mux

			// Apply middleware in reverse order (they wrap each other)
			// Order: CORS → RequestLogger → Recovery → Auth → Routes
			h = middleware.AuthMiddleware(jwtVerifier, logger)(h)
			h = middleware.Recovery(logger)(h)
			h = middleware.RequestLogger(logger)(h)

			// CORS - Must be before auth to handle OPTIONS pre-flight requests
			corsHandler := cors.New(cors.Options{
				AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
				AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
				AllowCredentials: true,
			})
			h = corsHandler.Handler(h)

			server := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      h,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "port", cfg.Port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	command.Flags().BoolVar(&migrate, "migrate", false, "create missing tables before serving")

	return command
}
