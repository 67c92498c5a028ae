package vector_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geo-ingest-backend/internal/vector"
	"github.com/jonas-p/go-shp"
	"github.com/mholt/archiver/v3"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFor(t *testing.T) {
	cases := map[string]vector.Format{
		"roads.GeoJSON": vector.FormatGeoJSON,
		"roads.json":    vector.FormatGeoJSON,
		"parcels.zip":   vector.FormatShapefileZip,
		"parcels.shp":   vector.FormatShapefile,
		"sites.kml":     vector.FormatKML,
		"walk.gpx":      vector.FormatGPX,
	}
	for name, want := range cases {
		got, err := vector.FormatFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := vector.FormatFor("notes.txt")
	assert.ErrorIs(t, err, vector.ErrUnsupportedFormat)
}

func TestParseGeoJSON_IsolatesBrokenFeatures(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Point","coordinates":[85.3,27.7]}},
		{"type":"Feature","properties":{"name":"b"},"geometry":{"type":"Point","coordinates":"oops"}},
		{"type":"Feature","properties":{"name":"c"},"geometry":null}
	]}`)

	records, err := vector.ParseGeoJSON(data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.NoError(t, records[0].Err)
	assert.Equal(t, orb.Point{85.3, 27.7}, records[0].Geometry)
	assert.Error(t, records[1].Err)
	assert.Equal(t, "b", records[1].Properties["name"])
	assert.ErrorIs(t, records[2].Err, vector.ErrNullGeometry)
}

func TestParseGeoJSON_SingleFeatureAndGeometry(t *testing.T) {
	records, err := vector.ParseGeoJSON([]byte(`{"type":"Feature","properties":null,"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].Properties)

	records, err = vector.ParseGeoJSON([]byte(`{"type":"Point","coordinates":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, orb.Point{1, 2}, records[0].Geometry)
}

func TestParseGeoJSON_RejectsGarbage(t *testing.T) {
	_, err := vector.ParseGeoJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, vector.Validate(orb.Point{1, 2}))
	assert.NoError(t, vector.Validate(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))

	assert.Error(t, vector.Validate(nil))
	assert.Error(t, vector.Validate(orb.LineString{{0, 0}}))
	assert.Error(t, vector.Validate(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {2, 2}}}))
	assert.Error(t, vector.Validate(orb.MultiPolygon{}))
}

func TestValidate_PolygonTopology(t *testing.T) {
	shell := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	holeA := orb.Ring{{2, 2}, {6, 2}, {6, 6}, {2, 2}}
	holeB := orb.Ring{{3, 2.5}, {7, 2.5}, {7, 3}, {3, 2.5}}

	valid := map[string]orb.Geometry{
		"with hole":          orb.Polygon{shell, {{2, 2}, {4, 2}, {4, 4}, {2, 2}}},
		"repeated vertex":    orb.Polygon{{{0, 0}, {1, 0}, {1, 0}, {1, 1}, {0, 0}}},
		"disjoint polygons":  orb.MultiPolygon{{shell}, {{{20, 20}, {21, 20}, {21, 21}, {20, 20}}}},
		"hole touches shell": orb.Polygon{shell, {{0, 5}, {4, 4}, {4, 6}, {0, 5}}},
	}
	for name, g := range valid {
		assert.NoError(t, vector.Validate(g), name)
	}

	invalid := map[string]orb.Geometry{
		"bowtie":             orb.Polygon{orb.Ring{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}},
		"self-touching ring": orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {2, 0}, {0, 4}, {0, 0}}},
		"spike":              orb.Polygon{{{0, 0}, {4, 0}, {6, 0}, {5, 0}, {4, 4}, {0, 0}}},
		"collapsed ring":     orb.Polygon{{{0, 0}, {1, 0}, {2, 0}, {0, 0}}},
		"hole outside shell": orb.Polygon{shell, {{20, 20}, {21, 20}, {21, 21}, {20, 20}}},
		"hole crosses shell": orb.Polygon{shell, {{5, 5}, {15, 5}, {15, 6}, {5, 5}}},
		"overlapping holes":  orb.Polygon{shell, holeA, holeB},
		"overlapping parts":  orb.MultiPolygon{{shell}, {{{5, 5}, {15, 5}, {15, 15}, {5, 5}}}},
	}
	for name, g := range invalid {
		assert.ErrorIs(t, vector.Validate(g), vector.ErrInvalidGeometry, name)
	}
}

func TestNormalizeAttributes(t *testing.T) {
	out := vector.NormalizeAttributes(map[string]interface{}{
		"name":  "road",
		"lanes": 2.0,
		"paved": true,
		"gap":   nil,
		"tags":  []interface{}{"a", "b"},
		"meta":  map[string]interface{}{"k": 1},
	})
	assert.Equal(t, "road", out["name"])
	assert.Equal(t, 2.0, out["lanes"])
	assert.Equal(t, true, out["paved"])
	assert.Nil(t, out["gap"])
	assert.Equal(t, `["a","b"]`, out["tags"])
	assert.Equal(t, `{"k":1}`, out["meta"])
}

func TestParseKML(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Folder>
      <Placemark>
        <name>Well</name>
        <ExtendedData><Data name="depth"><value>12</value></Data></ExtendedData>
        <Point><coordinates>85.31,27.70,1300</coordinates></Point>
      </Placemark>
      <Placemark>
        <name>Field</name>
        <Polygon><outerBoundaryIs><LinearRing><coordinates>
          85.0,27.0 85.1,27.0 85.1,27.1 85.0,27.0
        </coordinates></LinearRing></outerBoundaryIs></Polygon>
      </Placemark>
      <Placemark><name>Empty</name></Placemark>
    </Folder>
  </Document>
</kml>`

	records, err := vector.ParseKML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, orb.Point{85.31, 27.70}, records[0].Geometry)
	assert.Equal(t, "12", records[0].Properties["depth"])
	assert.IsType(t, orb.Polygon{}, records[1].Geometry)
	assert.ErrorIs(t, records[2].Err, vector.ErrNullGeometry)
}

func TestParseGPX(t *testing.T) {
	doc := `<?xml version="1.0"?>
<gpx version="1.1" creator="test">
  <wpt lat="27.7" lon="85.3"><name>Camp</name></wpt>
  <trk><name>Day 1</name>
    <trkseg><trkpt lat="27.7" lon="85.3"/><trkpt lat="27.8" lon="85.4"/></trkseg>
  </trk>
</gpx>`

	records, err := vector.ParseGPX(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, orb.Point{85.3, 27.7}, records[0].Geometry)
	assert.Equal(t, "Camp", records[0].Properties["name"])
	assert.Equal(t, orb.LineString{{85.3, 27.7}, {85.4, 27.8}}, records[1].Geometry)
}

func TestReadFile_ShapefileZip(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "wells.shp")

	w, err := shp.Create(shpPath, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20), shp.NumberField("DEPTH", 8)}))
	points := []shp.Point{{X: 85.31, Y: 27.70}, {X: 85.32, Y: 27.71}}
	for i := range points {
		n := w.Write(&points[i])
		require.NoError(t, w.WriteAttribute(int(n), 0, "well"))
		require.NoError(t, w.WriteAttribute(int(n), 1, 10+i))
	}
	w.Close()

	zipPath := filepath.Join(dir, "wells.zip")
	require.NoError(t, archiver.Archive([]string{
		shpPath,
		filepath.Join(dir, "wells.shx"),
		filepath.Join(dir, "wells.dbf"),
	}, zipPath))

	ds, err := vector.ReadFile(zipPath, vector.FormatShapefileZip)
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, orb.Point{85.31, 27.70}, ds.Records[0].Geometry)
	assert.Equal(t, "well", ds.Records[0].Properties["NAME"])
	assert.Equal(t, int64(11), ds.Records[1].Properties["DEPTH"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.IsDir(), "extraction dir should be removed")
	}
}
