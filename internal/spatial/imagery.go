package spatial

import (
	"context"
	"fmt"
	"log"

	"geo-ingest-backend/internal/naming"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ImageryRow is one geotagged photo in a project's shared point table.
type ImageryRow struct {
	ID               uuid.UUID
	ProjectID        string
	OriginalFilename string
	FilePath         string
	Latitude         float64
	Longitude        float64
	ImageType        string
	UploadedBy       string
	Notes            string
}

// EnsureImageryTable creates the project's imagery table if it is missing
// and returns its name.
func (m *Manager) EnsureImageryTable(ctx context.Context, projectID string) (string, error) {
	table := naming.ImageryTable(projectID)
	if err := checkTable(table); err != nil {
		return "", err
	}

	q := pq.QuoteIdentifier(table)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			streetimage_id UUID NOT NULL UNIQUE,
			project_id VARCHAR(255) NOT NULL,
			original_filename VARCHAR(255) NOT NULL,
			file_path TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			geom GEOMETRY(POINT, %d) NOT NULL,
			image_type VARCHAR(50) DEFAULT 'front_view',
			uploaded_at TIMESTAMP DEFAULT NOW(),
			uploaded_by VARCHAR(255),
			is_active BOOLEAN DEFAULT TRUE,
			notes TEXT
		)`, q, SRID),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)`, pq.QuoteIdentifier("idx_"+table+"_geom"), q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (project_id)`, pq.QuoteIdentifier("idx_"+table+"_project"), q),
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return "", fmt.Errorf("failed to ensure imagery table %s: %w", table, err)
		}
	}
	return table, nil
}

// UpsertImagery inserts the row or refreshes its location when the same
// image id is written again.
func (m *Manager) UpsertImagery(ctx context.Context, table string, row ImageryRow) error {
	if err := checkTable(table); err != nil {
		return err
	}
	imageType := row.ImageType
	if imageType == "" {
		imageType = "front_view"
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(streetimage_id, project_id, original_filename, file_path, latitude, longitude, geom, image_type, uploaded_at, uploaded_by, notes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, ST_SetSRID(ST_MakePoint($6, $5), %d), $7, NOW(), $8, $9, TRUE)
		ON CONFLICT (streetimage_id) DO UPDATE SET
			file_path = EXCLUDED.file_path,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			geom = EXCLUDED.geom`, pq.QuoteIdentifier(table), SRID)

	_, err := m.db.ExecContext(ctx, query,
		row.ID.String(), row.ProjectID, row.OriginalFilename, row.FilePath,
		row.Latitude, row.Longitude, imageType, row.UploadedBy, row.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert image %s into %s: %w", row.ID, table, err)
	}
	log.Printf("Added street image %s to table %s", row.ID, table)
	return nil
}
