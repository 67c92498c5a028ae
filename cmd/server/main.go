// @title           Geo Ingest Backend API
// @version         1.0.0
// @description     Backend API for ingesting geospatial uploads. Clients request signed upload URLs, upload vector, raster, terrain and street-imagery files to storage, and the service validates them, loads them into PostGIS and publishes them to GeoServer. Job progress is broadcast via Supabase Realtime.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geo-ingest-backend/docs"
	"geo-ingest-backend/internal/config"
	"geo-ingest-backend/internal/database"
	"geo-ingest-backend/internal/handlers"
	"geo-ingest-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func main() {
	root := &cobra.Command{
		Use:          "geo-ingest",
		Short:        "Geospatial upload ingestion and publishing service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), republishCmd(), sweepCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the upload job coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadUnvalidated()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			migrator, err := database.NewMigrator(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer migrator.Close()
			if err := migrator.Run(); err != nil {
				return err
			}
			log.Println("Migrations completed successfully")
			return nil
		},
	}
}

func republishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "republish",
		Short: "Publish every active layer that is not yet published",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.layers.RepublishAll(cmd.Context())
			if err != nil {
				return err
			}
			log.Printf("Republished %d layers", n)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Permanently remove layers whose deletion grace window has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.lifecycle.Sweep(cmd.Context(), time.Now().UTC())
			log.Printf("Purged %d layers", n)
			return err
		},
	}
}

func serve(cfg *config.Config) error {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Update Swagger docs with dynamic base URL
	if cfg.BaseURL != "" {
		baseURL, err := url.Parse(cfg.BaseURL)
		if err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.coordinator.Resume(ctx); err != nil {
		log.Printf("Warning: failed to resume open jobs: %v", err)
	}

	healthHandler := handlers.NewHealthHandler(a.conn.SQL.PingContext)
	uploadsHandler := handlers.NewUploadsHandler(a.coordinator)
	layersHandler := handlers.NewLayersHandler(a.layers)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", healthHandler.Health)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Uploads and jobs
	api.POST("/uploads", uploadsHandler.RequestUploads)
	api.GET("/jobs/:job_id", uploadsHandler.GetJobStatus)

	// Layers
	api.GET("/layers", layersHandler.ListLayers)
	api.POST("/layers", layersHandler.CreateEmptyLayer)
	api.POST("/layers/merge", layersHandler.MergeLayers)
	api.GET("/layers/:layer_id", layersHandler.GetLayer)
	api.DELETE("/layers/:layer_id", layersHandler.DeleteLayer)
	api.POST("/layers/:layer_id/restore", layersHandler.RestoreLayer)
	api.POST("/layers/:layer_id/publish", layersHandler.RepublishLayer)
	api.POST("/layers/:layer_id/split", layersHandler.SplitLayer)

	// Features
	api.POST("/features/filter", layersHandler.FilterFeatures)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: graceful shutdown failed: %v", err)
		}
	}
	return nil
}
