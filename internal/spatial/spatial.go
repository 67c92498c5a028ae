// Package spatial owns the PostGIS tables that back published layers: one
// table per vector layer, named by its storage identifier, and one shared
// point table per project for street imagery.
package spatial

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
)

// SRID of every geometry column.
const SRID = 4326

var (
	ErrInvalidTableName = errors.New("invalid table name")
	ErrEmptyRows        = errors.New("no rows to insert")
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// geometryTypes are the column types a layer table may declare.
var geometryTypes = map[string]bool{
	"GEOMETRY": true, "POINT": true, "MULTIPOINT": true, "LINESTRING": true,
	"MULTILINESTRING": true, "POLYGON": true, "MULTIPOLYGON": true, "GEOMETRYCOLLECTION": true,
}

// Row is one feature destined for a layer table.
type Row struct {
	Geometry   orb.Geometry
	Attributes map[string]interface{}
}

type Manager struct {
	db *sql.DB
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

func checkTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return nil
}

// CreateLayerTable creates an empty layer table with its spatial and
// attribute indexes. An empty geometryType means an untyped column.
func (m *Manager) CreateLayerTable(ctx context.Context, table, geometryType string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := createLayerTable(ctx, tx, table, geometryType); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", table, err)
	}
	log.Printf("Created layer table %s", table)
	return nil
}

// CreateAndPopulate creates the layer table and copies rows into it in one
// transaction; either the table exists with every row or not at all.
func (m *Manager) CreateAndPopulate(ctx context.Context, table string, rows []Row) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrEmptyRows
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := createLayerTable(ctx, tx, table, ""); err != nil {
		tx.Rollback()
		return err
	}
	if err := copyRows(ctx, tx, table, rows); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", table, err)
	}
	log.Printf("Created layer table %s with %d rows", table, len(rows))
	return nil
}

func createLayerTable(ctx context.Context, tx *sql.Tx, table, geometryType string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	geometryType = strings.ToUpper(strings.TrimSpace(geometryType))
	if geometryType == "" {
		geometryType = "GEOMETRY"
	}
	if !geometryTypes[geometryType] {
		return fmt.Errorf("unsupported geometry type %q", geometryType)
	}

	q := pq.QuoteIdentifier(table)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s (id SERIAL PRIMARY KEY, geom GEOMETRY(%s, %d), attributes JSONB)`, q, geometryType, SRID),
		fmt.Sprintf(`CREATE INDEX %s ON %s USING GIST (geom)`, pq.QuoteIdentifier(table+"_geom_idx"), q),
		fmt.Sprintf(`CREATE INDEX %s ON %s USING GIN (attributes)`, pq.QuoteIdentifier(table+"_attributes_idx"), q),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}
	return nil
}

// copyRows streams rows with COPY. PostGIS parses hex EWKB for geometry
// columns, so no per-row function call is needed.
func copyRows(ctx context.Context, tx *sql.Tx, table string, rows []Row) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, "geom", "attributes"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, r := range rows {
		geom, err := ewkb.MarshalToHex(r.Geometry, SRID)
		if err != nil {
			return fmt.Errorf("failed to encode row %d geometry: %w", i, err)
		}
		attrs := r.Attributes
		if attrs == nil {
			attrs = map[string]interface{}{}
		}
		encoded, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("failed to encode row %d attributes: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, geom, string(encoded)); err != nil {
			return fmt.Errorf("failed to copy row %d into %s: %w", i, table, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush copy into %s: %w", table, err)
	}
	return nil
}

// DropTable removes a layer table; a missing table is not an error.
func (m *Manager) DropTable(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pq.QuoteIdentifier(table))); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	log.Printf("Dropped layer table %s", table)
	return nil
}
