package crs

import (
	"database/sql"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// PostGISProjector delegates reprojection to ST_Transform, which covers any
// CRS known to the database's spatial_ref_sys table.
type PostGISProjector struct {
	db *sql.DB
}

func NewPostGISProjector(db *sql.DB) *PostGISProjector {
	return &PostGISProjector{db: db}
}

func (p *PostGISProjector) ToWGS84(g orb.Geometry, from CRS) (orb.Geometry, error) {
	if from == WGS84 {
		return g, nil
	}
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}

	var out []byte
	err = p.db.QueryRow(
		`SELECT ST_AsBinary(ST_Force2D(ST_Transform(ST_SetSRID(ST_GeomFromWKB($1), $2), 4326)))`,
		data, int(from),
	).Scan(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to transform geometry from %s: %w", from, err)
	}

	geom, err := wkb.Unmarshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transformed geometry: %w", err)
	}
	return geom, nil
}

// Chain tries each projector in order and returns the first success.
type Chain []Projector

func (c Chain) ToWGS84(g orb.Geometry, from CRS) (orb.Geometry, error) {
	var lastErr error
	for _, p := range c {
		out, err := p.ToWGS84(g, from)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no projector configured for %s", from)
	}
	return nil, lastErr
}
