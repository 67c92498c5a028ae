package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/raster"
	"github.com/google/uuid"
)

// RasterProcessor ingests gridded files as raster or terrain layers. The two
// kinds share extraction; terrain adds elevation range and a plausibility
// check that only logs.
type RasterProcessor struct {
	deps *Deps
	kind string
}

func NewRasterProcessor(deps *Deps) *RasterProcessor {
	return &RasterProcessor{deps: deps, kind: models.KindRaster}
}

func NewTerrainProcessor(deps *Deps) *RasterProcessor {
	return &RasterProcessor{deps: deps, kind: models.KindTerrain}
}

func (p *RasterProcessor) Run(ctx context.Context, src Source) (uuid.UUID, error) {
	layer, err := p.Process(ctx, src)
	if err != nil {
		return uuid.Nil, err
	}
	return layer.ID, nil
}

func (p *RasterProcessor) Process(ctx context.Context, src Source) (*models.Layer, error) {
	path, cleanup, err := p.deps.Fetch(src)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	info, err := raster.Open(path, p.deps.Normalizer)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Filename, err)
	}

	bands, err := json.Marshal(info.Bands)
	if err != nil {
		return nil, fmt.Errorf("failed to encode band descriptions: %w", err)
	}

	layer := &models.Layer{
		Kind:             p.kind,
		Name:             src.LayerName(),
		Description:      src.Description,
		CompanyID:        src.CompanyID,
		ProjectID:        src.ProjectID,
		CreatedBy:        src.UserID,
		SourceKey:        src.Path,
		SourceFormat:     string(info.Format),
		CRS:              info.CRS.String(),
		Width:            info.Width,
		Height:           info.Height,
		PixelSizeX:       info.PixelSizeX,
		PixelSizeY:       info.PixelSizeY,
		BandCount:        info.BandCount(),
		BandDescriptions: bands,
	}
	gb := info.GeoBounds
	layer.SetBounds(gb.Min.X(), gb.Min.Y(), gb.Max.X(), gb.Max.Y())

	if p.kind == models.KindTerrain {
		layer.TerrainType = src.TerrainType
		if layer.TerrainType == "" {
			layer.TerrainType = "dem"
		}
		if len(info.Bands) > 0 {
			layer.MinElevation = info.Bands[0].Min
			layer.MaxElevation = info.Bands[0].Max
		}
		if warning := raster.ElevationWarning(info); warning != "" {
			log.Printf("Warning: %s may not be an elevation model: %s", src.Filename, warning)
		}
	}

	file, format, err := coverageFile(path, info.Format)
	if err != nil {
		return nil, err
	}

	if err := p.deps.Repo.CreateLayer(ctx, layer); err != nil {
		return nil, err
	}
	entry, err := p.deps.Register(ctx, layer)
	if err != nil {
		p.deps.discard(ctx, layer)
		return nil, err
	}
	log.Printf("Ingested %s layer %s (%dx%d, %d bands)", p.kind, layer.ID, info.Width, info.Height, info.BandCount())

	p.deps.PublishLayer(ctx, layer, geoserver.Target{
		Resources: entry.Resources(),
		Title:     layer.Name,
		Coverage:  true,
		File:      file,
		Format:    format,
	})
	return layer, nil
}

// coverageFile returns the file and upload format for the coverage store.
// XYZ point grids have no coverage reader on the map server, so they are
// rewritten as an ASCII grid next to the source.
func coverageFile(path string, format raster.Format) (string, string, error) {
	switch format {
	case raster.FormatGeoTIFF:
		return path, geoserver.CoverageGeoTIFF, nil
	case raster.FormatASCIIGrid:
		return path, geoserver.CoverageArcGrid, nil
	case raster.FormatXYZ:
		grid, err := raster.ReadXYZ(path)
		if err != nil {
			return "", "", err
		}
		out := filepath.Join(filepath.Dir(path), "grid.asc")
		f, err := os.Create(out)
		if err != nil {
			return "", "", fmt.Errorf("failed to create grid file: %w", err)
		}
		if err := grid.WriteASCIIGrid(f); err != nil {
			f.Close()
			return "", "", fmt.Errorf("failed to write grid file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", "", fmt.Errorf("failed to write grid file: %w", err)
		}
		return out, geoserver.CoverageArcGrid, nil
	}
	return "", "", fmt.Errorf("%w: %s", raster.ErrUnsupportedFormat, format)
}
