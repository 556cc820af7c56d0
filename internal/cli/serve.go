package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/citydata/crimewatch/internal/handlers"
	"github.com/citydata/crimewatch/internal/middleware"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server exposing sync triggers and status",
		Long: `Start an HTTP server so an external scheduler or operator can trigger
sync runs, inspect the checkpoint, and scrape metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			return runServer(a)
		},
	}
}

// runServer builds the router and blocks until SIGINT or SIGTERM, then
// shuts down gracefully.
func runServer(a *app) error {
	log := a.log
	log.Info("Starting crimewatch server", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": a.cfg.Server.Env,
		"port":        a.cfg.Server.Port,
	})

	if a.cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Middleware order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(a.cfg.CORS.Origins))

	healthHandler := handlers.NewHealthHandler(a.db, a.cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	syncHandler := handlers.NewSyncHandler(a.sync, a.dimensions)
	v1 := router.Group("/api/v1")
	{
		sync := v1.Group("/sync")
		{
			sync.POST("/backfill", syncHandler.Backfill)
			sync.POST("/daily", syncHandler.Daily)
			sync.POST("/dimensions", syncHandler.Dimensions)
			sync.GET("/status", syncHandler.Status)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": a.cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
		return err
	}

	log.Info("Server exited", nil)
	return nil
}
