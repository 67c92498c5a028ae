package processors

import (
	"context"
	"fmt"
	"log"
	"math"

	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/naming"
	"geo-ingest-backend/internal/spatial"
	"github.com/google/uuid"
)

// minCoordinate is the magnitude below which both ordinates together are
// read as "no fix" (0,0 is what most cameras write without GPS).
const minCoordinate = 0.0001

const imageryTitle = "Street imagery"

// imageryNamespace scopes record ids derived from storage paths.
var imageryNamespace = uuid.MustParse("6f1c1d0e-3a5b-5c43-9a8e-2f0b7f4d5a10")

type ImageryProcessor struct {
	deps *Deps
}

func NewImageryProcessor(deps *Deps) *ImageryProcessor {
	return &ImageryProcessor{deps: deps}
}

func (p *ImageryProcessor) Run(ctx context.Context, src Source) (uuid.UUID, error) {
	rec, err := p.Process(ctx, src)
	if err != nil {
		return uuid.Nil, err
	}
	return rec.ID, nil
}

// ImageryID derives the record id from the storage path so a re-run of the
// same upload updates the record instead of adding another.
func ImageryID(storagePath string) uuid.UUID {
	return uuid.NewSHA1(imageryNamespace, []byte(storagePath))
}

// ValidCoordinates reports whether lat/lon is a usable fix.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return !(math.Abs(lat) < minCoordinate && math.Abs(lon) < minCoordinate)
}

// Process extracts capture metadata from a geotagged photo and appends it to
// the project's shared imagery layer. Descriptor coordinates take priority
// over the embedded ones.
func (p *ImageryProcessor) Process(ctx context.Context, src Source) (*models.ImageryRecord, error) {
	path, cleanup, err := p.deps.Fetch(src)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	rec := &models.ImageryRecord{
		ID:               ImageryID(src.Path),
		CompanyID:        src.CompanyID,
		ProjectID:        src.ProjectID,
		StorageKey:       src.StorageKey,
		OriginalFilename: src.Filename,
		FilePath:         src.Path,
		FileSize:         src.Size,
		ImageType:        "front_view",
		Notes:            src.Description,
		UploadedBy:       src.UserID,
		ProcessingStatus: "pending",
		IsActive:         true,
	}
	gps, err := ReadImageMetadata(path, rec)
	if err != nil {
		return nil, err
	}

	switch {
	case src.Latitude != nil && src.Longitude != nil:
		rec.Latitude, rec.Longitude = *src.Latitude, *src.Longitude
	case gps != nil:
		rec.Latitude, rec.Longitude = gps.Latitude, gps.Longitude
	default:
		return nil, ErrInvalidGPS
	}
	if !ValidCoordinates(rec.Latitude, rec.Longitude) {
		return nil, fmt.Errorf("%w: got (%g, %g)", ErrInvalidGPS, rec.Latitude, rec.Longitude)
	}

	table, err := p.deps.Tables.EnsureImageryTable(ctx, src.ProjectID)
	if err != nil {
		return nil, err
	}
	err = p.deps.Tables.UpsertImagery(ctx, table, spatial.ImageryRow{
		ID:               rec.ID,
		ProjectID:        rec.ProjectID,
		OriginalFilename: rec.OriginalFilename,
		FilePath:         rec.FilePath,
		Latitude:         rec.Latitude,
		Longitude:        rec.Longitude,
		ImageType:        rec.ImageType,
		UploadedBy:       rec.UploadedBy,
		Notes:            rec.Notes,
	})
	if err != nil {
		return nil, err
	}

	rec.ProcessingStatus = "completed"
	if err := p.deps.Repo.UpsertImageryRecord(ctx, rec); err != nil {
		return nil, err
	}

	res := naming.ImageryResources(src.CompanyID, src.ProjectID)
	if _, err := p.deps.Publisher.Publish(ctx, geoserver.Target{Resources: res, Title: imageryTitle}); err != nil {
		log.Printf("Warning: imagery %s stored but layer %s not published: %v", rec.ID, res.Layer, err)
	}
	return rec, nil
}
