package main

import (
	"context"
	"fmt"
	"log"

	"geo-ingest-backend/internal/config"
	"geo-ingest-backend/internal/crs"
	"geo-ingest-backend/internal/database"
	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/jobs"
	"geo-ingest-backend/internal/lifecycle"
	"geo-ingest-backend/internal/naming"
	"geo-ingest-backend/internal/processors"
	"geo-ingest-backend/internal/repository"
	"geo-ingest-backend/internal/services"
	"geo-ingest-backend/internal/spatial"
	"geo-ingest-backend/internal/supabase"
)

// app holds every long-lived component of the process.
type app struct {
	conn        *database.Connection
	lifecycle   *lifecycle.Manager
	layers      *services.LayerService
	coordinator *jobs.Coordinator
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	conn, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigratorFromDB(conn.SQL).Run(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}
	storage := supabaseClient.Storage()
	realtime := supabase.NewRealtimeClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)

	repo := repository.New(conn.Gorm)
	tables := spatial.NewManager(conn.SQL)

	client := geoserver.NewClient(cfg.GeoServerURL, cfg.GeoServerUser, cfg.GeoServerPassword)
	publisher := geoserver.NewPublisher(client, geoserver.DataStoreParams{
		Host:     cfg.PostGISHost,
		Port:     cfg.PostGISPort,
		Database: cfg.PostGISDatabase,
		User:     cfg.PostGISUser,
		Password: cfg.PostGISPassword,
		Schema:   cfg.PostGISSchema,
	}, cfg.PublishAttempts, cfg.PublishDelay)

	registry := naming.NewRegistry()
	if err := loadRegistry(ctx, repo, registry); err != nil {
		conn.Close()
		return nil, err
	}

	deps := &processors.Deps{
		Blob:       storage,
		Repo:       repo,
		Tables:     tables,
		Publisher:  publisher,
		Registry:   registry,
		Normalizer: crs.NewNormalizer(crs.Chain{crs.NewPostGISProjector(conn.SQL), crs.UTMProjector{}}),
		ScratchDir: cfg.ScratchDir,
	}

	manager := lifecycle.NewManager(repo, tables, publisher, registry, cfg.GraceWindow)

	runners := map[string]processors.Runner{
		naming.CategoryVector:  processors.NewVectorProcessor(deps),
		naming.CategoryRaster:  processors.NewRasterProcessor(deps),
		naming.CategoryTerrain: processors.NewTerrainProcessor(deps),
		naming.CategoryImagery: processors.NewImageryProcessor(deps),
	}
	coordinator := jobs.NewCoordinator(repo, storage, realtime, runners, jobs.Options{
		PollChecks:   cfg.PollChecks,
		PollInterval: cfg.PollInterval,
		Workers:      cfg.Workers,
	})

	return &app{
		conn:        conn,
		lifecycle:   manager,
		layers:      services.NewLayerService(deps, manager),
		coordinator: coordinator,
	}, nil
}

// loadRegistry re-registers the identifier of every catalogued layer,
// soft-deleted ones included, so a new identifier can never collide.
func loadRegistry(ctx context.Context, repo *repository.Repository, registry *naming.Registry) error {
	layers, err := repo.ListLayers(ctx, repository.LayerFilter{IncludeInactive: true})
	if err != nil {
		return fmt.Errorf("failed to load layer identifiers: %w", err)
	}
	for _, l := range layers {
		if l.Identifier() == "" {
			continue
		}
		if _, err := registry.Assign(naming.Kind(l.Kind), l.ID, l.CompanyID, l.ProjectID); err != nil {
			log.Printf("Warning: failed to register layer %s: %v", l.ID, err)
		}
	}
	log.Printf("Registered %d layer identifiers", registry.Len())
	return nil
}

func (a *app) Close() {
	a.coordinator.Close()
	if err := a.conn.Close(); err != nil {
		log.Printf("Warning: failed to close database: %v", err)
	}
}
