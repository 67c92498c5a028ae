package processors

import (
	"context"
	"errors"
	"path/filepath"

	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/raster"
)

var ErrNotRepublishable = errors.New("layer has no storage identifier or source")

// Republish runs publication again for an existing layer. Coverages are
// uploaded from a fresh copy of the source object. The outcome is recorded
// on the layer exactly as during ingestion.
func (d *Deps) Republish(ctx context.Context, layer *models.Layer, target geoserver.Target) error {
	if layer.Identifier() == "" {
		return ErrNotRepublishable
	}
	if !target.Coverage {
		d.PublishLayer(ctx, layer, target)
		return nil
	}

	if layer.SourceKey == "" {
		return ErrNotRepublishable
	}
	path, cleanup, err := d.Fetch(Source{Path: layer.SourceKey, Filename: filepath.Base(layer.SourceKey)})
	defer cleanup()
	if err != nil {
		return err
	}
	file, format, err := coverageFile(path, raster.Format(layer.SourceFormat))
	if err != nil {
		return err
	}
	target.File = file
	target.Format = format
	d.PublishLayer(ctx, layer, target)
	return nil
}
