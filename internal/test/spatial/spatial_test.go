package spatial_test

import (
	"context"
	"errors"
	"testing"

	"geo-ingest-backend/internal/spatial"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*spatial.Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return spatial.NewManager(db), mock
}

func TestCreateAndPopulate_CopiesRowsInOneTransaction(t *testing.T) {
	m, mock := newManager(t)
	table := "vector_layer_abc"

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE "vector_layer_abc" \(id SERIAL PRIMARY KEY, geom GEOMETRY\(GEOMETRY, 4326\), attributes JSONB\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX "vector_layer_abc_geom_idx" ON "vector_layer_abc" USING GIST \(geom\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX "vector_layer_abc_attributes_idx" ON "vector_layer_abc" USING GIN \(attributes\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(`COPY "vector_layer_abc" \("geom", "attributes"\) FROM STDIN`)
	prep.ExpectExec().WithArgs(sqlmock.AnyArg(), `{"name":"a"}`).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(sqlmock.AnyArg(), `{}`).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := m.CreateAndPopulate(context.Background(), table, []spatial.Row{
		{Geometry: orb.Point{85.3, 27.7}, Attributes: map[string]interface{}{"name": "a"}},
		{Geometry: orb.LineString{{0, 0}, {1, 1}}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAndPopulate_RollsBackOnCopyFailure(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(`COPY`)
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := m.CreateAndPopulate(context.Background(), "vector_layer_abc", []spatial.Row{
		{Geometry: orb.Point{1, 2}},
	})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAndPopulate_RejectsEmptyAndUnsafeNames(t *testing.T) {
	m, mock := newManager(t)

	err := m.CreateAndPopulate(context.Background(), "vector_layer_abc", nil)
	assert.ErrorIs(t, err, spatial.ErrEmptyRows)

	err = m.CreateAndPopulate(context.Background(), `x"; DROP TABLE users; --`, []spatial.Row{{Geometry: orb.Point{1, 2}}})
	assert.ErrorIs(t, err, spatial.ErrInvalidTableName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLayerTable_Typed(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectExec(`GEOMETRY\(MULTIPOLYGON, 4326\)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, m.CreateLayerTable(context.Background(), "vector_layer_def", "multipolygon"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropTable(t *testing.T) {
	m, mock := newManager(t)
	mock.ExpectExec(`DROP TABLE IF EXISTS "vector_layer_abc"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, m.DropTable(context.Background(), "vector_layer_abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImagery_EnsureAndUpsert(t *testing.T) {
	m, mock := newManager(t)
	id := uuid.New()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "street_imagery_p1"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_street_imagery_p1_geom"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_street_imagery_p1_project"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "street_imagery_p1"(.|\n)*ON CONFLICT \(streetimage_id\) DO UPDATE`).
		WithArgs(id.String(), "p1", "front.jpg", "acme/p1/street_imagery/abc.jpg", 12.97, 77.59, "front_view", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	table, err := m.EnsureImageryTable(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "street_imagery_p1", table)

	err = m.UpsertImagery(context.Background(), table, spatial.ImageryRow{
		ID:               id,
		ProjectID:        "p1",
		OriginalFilename: "front.jpg",
		FilePath:         "acme/p1/street_imagery/abc.jpg",
		Latitude:         12.97,
		Longitude:        77.59,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
