// Package processors turns one uploaded object into catalog rows, a spatial
// table and a published map layer. There is one processor per content
// family; all of them download into a private scratch directory that is
// removed on every exit path.
package processors

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"geo-ingest-backend/internal/crs"
	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/naming"
	"geo-ingest-backend/internal/repository"
	"geo-ingest-backend/internal/spatial"
	"github.com/google/uuid"
)

var (
	ErrEmptyFeatureSet = errors.New("file contains no features")
	ErrNoValidFeatures = errors.New("no valid features found in file")
	ErrInvalidGPS      = errors.New("street images require valid GPS coordinates")
)

// BlobStore is the part of blob storage the processors read from.
type BlobStore interface {
	Download(objectPath, dir string) (string, error)
}

// TableStore is the Spatial Table Manager surface used during ingestion.
type TableStore interface {
	CreateLayerTable(ctx context.Context, table, geometryType string) error
	CreateAndPopulate(ctx context.Context, table string, rows []spatial.Row) error
	DropTable(ctx context.Context, table string) error
	EnsureImageryTable(ctx context.Context, projectID string) (string, error)
	UpsertImagery(ctx context.Context, table string, row spatial.ImageryRow) error
}

type LayerPublisher interface {
	Publish(ctx context.Context, t geoserver.Target) (string, error)
}

// Deps are the collaborators shared by every processor.
type Deps struct {
	Blob       BlobStore
	Repo       *repository.Repository
	Tables     TableStore
	Publisher  LayerPublisher
	Registry   *naming.Registry
	Normalizer *crs.Normalizer
	ScratchDir string
}

// Source is one uploaded object plus the descriptor fields sent with it.
type Source struct {
	Path        string
	StorageKey  string
	Filename    string
	Size        int64
	CompanyID   string
	ProjectID   string
	UserID      string
	Title       string
	Description string
	TerrainType string
	Latitude    *float64
	Longitude   *float64
}

// LayerName is the display name: the descriptor title, else the file name
// without its extension.
func (s Source) LayerName() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	base := filepath.Base(s.Filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Runner processes one source and returns the id of what it created.
type Runner interface {
	Run(ctx context.Context, src Source) (uuid.UUID, error)
}

// Fetch downloads src into a fresh scratch directory. cleanup is always
// safe to call, including after an error.
func (d *Deps) Fetch(src Source) (string, func(), error) {
	dir, err := os.MkdirTemp(d.ScratchDir, "ingest-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("Warning: failed to remove scratch dir %s: %v", dir, err)
		}
	}

	path, err := d.Blob.Download(src.Path, dir)
	if err != nil {
		return "", cleanup, err
	}
	return path, cleanup, nil
}

// Register assigns the canonical identifier once the layer row has its id.
func (d *Deps) Register(ctx context.Context, layer *models.Layer) (naming.Entry, error) {
	entry, err := d.Registry.Assign(naming.Kind(layer.Kind), layer.ID, layer.CompanyID, layer.ProjectID)
	if err != nil {
		return naming.Entry{}, fmt.Errorf("failed to assign storage identifier: %w", err)
	}
	if err := d.Repo.AssignStorageName(ctx, layer, entry.Identifier); err != nil {
		return naming.Entry{}, fmt.Errorf("failed to assign storage identifier: %w", err)
	}
	return entry, nil
}

// discard removes a layer row whose ingestion failed after it was created.
func (d *Deps) discard(ctx context.Context, layer *models.Layer) {
	if err := d.Repo.DeleteLayer(context.WithoutCancel(ctx), layer.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("Warning: failed to remove layer %s after failed ingestion: %v", layer.ID, err)
	}
	d.Registry.Release(layer.ID)
}

// PublishLayer runs the Publish Orchestrator and records the outcome. A
// publish failure leaves the layer unpublished; it never fails the caller.
func (d *Deps) PublishLayer(ctx context.Context, layer *models.Layer, target geoserver.Target) {
	url, err := d.Publisher.Publish(ctx, target)
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		log.Printf("Warning: layer %s ingested but not published: %v", layer.ID, err)
	} else {
		log.Printf("Published layer %s to group %s", target.Layer, target.Group)
	}

	if uerr := d.Repo.UpdatePublishState(context.WithoutCancel(ctx), layer.ID, err == nil, url, errMsg); uerr != nil {
		log.Printf("Warning: failed to record publish state of layer %s: %v", layer.ID, uerr)
		return
	}
	layer.IsPublished = err == nil
	layer.ExternalURL = url
	layer.PublishError = errMsg
	if err == nil {
		layer.PublishStatus = models.PublishPublished
	} else {
		layer.PublishStatus = models.PublishUnpublished
	}
}
