package services

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/processors"
	"geo-ingest-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

// FeatureFilter selects features of active vector layers. Every set field
// narrows the result.
type FeatureFilter struct {
	CompanyID  string
	ProjectID  string
	LayerName  string
	LayerIDs   []uuid.UUID
	BBox       []float64
	Attributes map[string]interface{}
}

// Match is one filtered feature with the layer it belongs to.
type Match struct {
	Feature models.Feature
	Layer   *models.Layer
}

// MergeLayers copies the features of two or more vector layers of one
// project into a new layer. All sources must share a geometry type.
func (s *LayerService) MergeLayers(ctx context.Context, ids []uuid.UUID, name, userID string) (*models.Layer, error) {
	if len(ids) < 2 {
		return nil, ErrTooFewLayers
	}
	var (
		sources  []*models.Layer
		features []processors.Feature
	)
	for _, id := range ids {
		layer, err := s.activeVector(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			first := sources[0]
			if layer.ProjectID != first.ProjectID {
				return nil, ErrProjectMismatch
			}
			if layer.GeometryType != first.GeometryType {
				return nil, fmt.Errorf("%w: %s and %s", ErrGeometryMismatch, first.GeometryType, layer.GeometryType)
			}
		}
		rows, err := s.deps.Repo.ListFeatures(ctx, id)
		if err != nil {
			return nil, err
		}
		decoded, err := decodeFeatures(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, layer)
		features = append(features, decoded...)
	}

	names := make([]string, len(sources))
	for i, l := range sources {
		names[i] = l.Name
	}
	merged := &models.Layer{
		Name:         strings.TrimSpace(name),
		Description:  "Merged layer from " + strings.Join(names, " and "),
		CompanyID:    sources[0].CompanyID,
		ProjectID:    sources[0].ProjectID,
		CreatedBy:    userID,
		SourceFormat: "merge",
		CRS:          "EPSG:4326",
	}
	if err := s.deps.CreateVectorLayer(ctx, merged, features); err != nil {
		return nil, err
	}
	return merged, nil
}

// SplitLayerByAttribute copies features into new layers by the value of
// attribute. With value non-nil only features equal to it are copied, into
// a single layer; otherwise each distinct value gets its own layer. The
// source layer is left unchanged.
func (s *LayerService) SplitLayerByAttribute(ctx context.Context, id uuid.UUID, attribute string, value interface{}, name, userID string) ([]models.Layer, error) {
	source, err := s.activeVector(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.deps.Repo.ListFeatures(ctx, id)
	if err != nil {
		return nil, err
	}
	features, err := decodeFeatures(rows)
	if err != nil {
		return nil, err
	}

	groups := map[string][]processors.Feature{}
	found := false
	for _, f := range features {
		v, ok := f.Attributes[attribute]
		if !ok {
			continue
		}
		found = true
		if value != nil {
			if attributeEqual(v, value) {
				groups[fmt.Sprint(value)] = append(groups[fmt.Sprint(value)], f)
			}
			continue
		}
		if v == nil {
			continue
		}
		key := fmt.Sprint(v)
		groups[key] = append(groups[key], f)
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrAttributeMissing, attribute)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: %s=%v", ErrNoMatchingFeatures, attribute, value)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.Layer, 0, len(keys))
	for _, k := range keys {
		layerName := source.Name + "_" + k
		if value != nil && strings.TrimSpace(name) != "" {
			layerName = strings.TrimSpace(name)
		}
		layer := &models.Layer{
			Name:         layerName,
			Description:  fmt.Sprintf("Split from %s where %s=%s", source.Name, attribute, k),
			CompanyID:    source.CompanyID,
			ProjectID:    source.ProjectID,
			CreatedBy:    userID,
			SourceFormat: "split",
			CRS:          source.CRS,
		}
		if err := s.deps.CreateVectorLayer(ctx, layer, groups[k]); err != nil {
			return out, err
		}
		out = append(out, *layer)
	}
	return out, nil
}

// FilterFeatures returns the features of active vector layers that match f.
// The bbox test is an envelope intersection.
func (s *LayerService) FilterFeatures(ctx context.Context, f FeatureFilter) ([]Match, error) {
	if len(f.BBox) != 0 && (len(f.BBox) != 4 || f.BBox[0] > f.BBox[2] || f.BBox[1] > f.BBox[3]) {
		return nil, ErrInvalidBoundingBox
	}

	layers, err := s.deps.Repo.ListLayers(ctx, repository.LayerFilter{
		CompanyID: f.CompanyID,
		ProjectID: f.ProjectID,
		Kind:      models.KindVector,
	})
	if err != nil {
		return nil, err
	}
	wanted := map[uuid.UUID]bool{}
	for _, id := range f.LayerIDs {
		wanted[id] = true
	}
	byID := map[uuid.UUID]*models.Layer{}
	var ids []uuid.UUID
	for i := range layers {
		l := &layers[i]
		if len(wanted) > 0 && !wanted[l.ID] {
			continue
		}
		if f.LayerName != "" && l.Name != f.LayerName && l.Identifier() != f.LayerName {
			continue
		}
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}
	if len(ids) == 0 {
		return []Match{}, nil
	}

	rows, err := s.deps.Repo.QueryFeatures(ctx, repository.FeatureQuery{LayerIDs: ids, BBox: f.BBox})
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(rows))
	for _, row := range rows {
		if len(f.Attributes) > 0 {
			var attrs map[string]interface{}
			if err := json.Unmarshal(row.Attributes, &attrs); err != nil {
				continue
			}
			if !matchesAll(attrs, f.Attributes) {
				continue
			}
		}
		out = append(out, Match{Feature: row, Layer: byID[row.LayerID]})
	}
	return out, nil
}

// FeatureCollection renders matches as GeoJSON. Feature properties carry the
// layer name, layer id and project id merged with the stored attributes.
func FeatureCollection(matches []Match) models.FeatureCollection {
	fc := models.FeatureCollection{
		Type:     "FeatureCollection",
		Count:    len(matches),
		Features: make([]models.GeoJSONFeature, 0, len(matches)),
	}
	for _, m := range matches {
		props := map[string]interface{}{}
		if len(m.Feature.Attributes) > 0 {
			_ = json.Unmarshal(m.Feature.Attributes, &props)
		}
		props["layer_name"] = m.Layer.Name
		props["layer_id"] = m.Layer.ID.String()
		props["project_id"] = m.Layer.ProjectID
		fc.Features = append(fc.Features, models.GeoJSONFeature{
			Type:       "Feature",
			ID:         m.Feature.ID,
			Geometry:   json.RawMessage(m.Feature.Geometry),
			Properties: props,
		})
	}
	return fc
}

func decodeFeatures(rows []models.Feature) ([]processors.Feature, error) {
	out := make([]processors.Feature, 0, len(rows))
	for _, row := range rows {
		g, err := geojson.UnmarshalGeometry(row.Geometry)
		if err != nil {
			return nil, fmt.Errorf("failed to decode feature %d: %w", row.ID, err)
		}
		attrs := map[string]interface{}{}
		if len(row.Attributes) > 0 {
			if err := json.Unmarshal(row.Attributes, &attrs); err != nil {
				return nil, fmt.Errorf("failed to decode feature %d attributes: %w", row.ID, err)
			}
		}
		out = append(out, processors.Feature{Geometry: g.Geometry(), Attributes: attrs})
	}
	return out, nil
}

func matchesAll(attrs, want map[string]interface{}) bool {
	for k, v := range want {
		got, ok := attrs[k]
		if !ok || !attributeEqual(got, v) {
			return false
		}
	}
	return true
}

// attributeEqual compares decoded JSON values. A string on either side is
// compared with the other side's text form, so query-string filters match
// numeric attributes.
func attributeEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	_, as := a.(string)
	_, bs := b.(string)
	if as || bs {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	return false
}
