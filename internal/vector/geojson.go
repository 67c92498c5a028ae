package vector

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
)

type geojsonDocument struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

func readGeoJSONFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson: %w", err)
	}
	return ParseGeoJSON(data)
}

// ParseGeoJSON accepts a FeatureCollection, a single Feature or a bare
// geometry. Features are decoded one by one so a broken geometry only
// fails its own record.
func ParseGeoJSON(data []byte) ([]Record, error) {
	var doc geojsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid geojson: %w", err)
	}

	switch doc.Type {
	case "FeatureCollection":
		records := make([]Record, 0, len(doc.Features))
		for _, raw := range doc.Features {
			records = append(records, decodeFeature(raw))
		}
		return records, nil
	case "Feature":
		return []Record{decodeFeature(data)}, nil
	case "":
		return nil, fmt.Errorf("invalid geojson: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("invalid geojson geometry: %w", err)
		}
		return []Record{{Geometry: g.Geometry(), Properties: map[string]interface{}{}}}, nil
	}
}

func decodeFeature(raw []byte) Record {
	f, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		// keep the properties if only the geometry was bad
		var loose struct {
			Properties map[string]interface{} `json:"properties"`
		}
		_ = json.Unmarshal(raw, &loose)
		return Record{Properties: loose.Properties, Err: fmt.Errorf("invalid geometry: %w", err)}
	}
	if f.Geometry == nil {
		return Record{Properties: f.Properties, Err: ErrNullGeometry}
	}
	props := map[string]interface{}(f.Properties)
	if props == nil {
		props = map[string]interface{}{}
	}
	return Record{Geometry: f.Geometry, Properties: props}
}
