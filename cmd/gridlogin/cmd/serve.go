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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/server"
	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/validation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the login API server",
	Long:  `Starts the HTTP server with the /api login, registration and passkey endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shutdownTracing, err := telemetry.Init(cmd.Context(), cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				logger.Error("tracing shutdown failed", zap.Error(err))
			}
		}()

		svcs, err := buildServices(cfg, logger)
		if err != nil {
			return err
		}

		validator, err := validation.NewValidator()
		if err != nil {
			return fmt.Errorf("failed to compile request schemas: %w", err)
		}

		routerOpts := server.RouterOptions{
			Flows:     svcs.flows,
			Passkeys:  svcs.passkeys,
			Validator: validator,
			Cookies:   svcs.cookies,
			Metrics:   svcs.metrics,
			Logger:    logger.Named("http"),
		}
		if len(cfg.CORS.AllowedOrigins) > 0 {
			opts := server.DefaultCORSOptions(cfg.CORS.AllowedOrigins)
			routerOpts.CORSOptions = &opts
		}
		r := server.NewRouter(routerOpts)

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server",
				zap.String("addr", cfg.ServerAddr),
				zap.String("app_url", cfg.AppURL),
				zap.String("zitadel_url", cfg.Zitadel.URL),
				zap.String("admin_mode", cfg.Zitadel.Admin.Mode),
			)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down gracefully", zap.String("signal", sig.String()))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
