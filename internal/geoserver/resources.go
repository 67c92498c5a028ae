package geoserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
)

// DataStoreParams is the PostGIS connection the map server uses to read
// layer tables.
type DataStoreParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Schema   string
}

// Coverage upload formats accepted by the coverage store file endpoint.
const (
	CoverageGeoTIFF = "geotiff"
	CoverageArcGrid = "arcgrid"
)

var coverageContentTypes = map[string]string{
	CoverageGeoTIFF: "image/tiff",
	CoverageArcGrid: "text/plain",
}

func workspacePath(ws string) string {
	return "/rest/workspaces/" + url.PathEscape(ws)
}

func (c *Client) EnsureWorkspace(ctx context.Context, ws string) error {
	ok, err := c.exists(ctx, workspacePath(ws))
	if err != nil {
		return fmt.Errorf("failed to check workspace %s: %w", ws, err)
	}
	if ok {
		return nil
	}
	body := map[string]interface{}{"workspace": map[string]interface{}{"name": ws}}
	if err := c.create(ctx, "/rest/workspaces", body); err != nil {
		return fmt.Errorf("failed to create workspace %s: %w", ws, err)
	}
	log.Printf("Created workspace: %s", ws)
	return nil
}

func (c *Client) EnsureDataStore(ctx context.Context, ws, store string, p DataStoreParams) error {
	path := workspacePath(ws) + "/datastores/" + url.PathEscape(store)
	ok, err := c.exists(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to check datastore %s: %w", store, err)
	}
	if ok {
		return nil
	}

	entry := func(k, v string) map[string]string { return map[string]string{"@key": k, "$": v} }
	body := map[string]interface{}{
		"dataStore": map[string]interface{}{
			"name":        store,
			"description": fmt.Sprintf("Datastore for project %s", store),
			"connectionParameters": map[string]interface{}{
				"entry": []map[string]string{
					entry("host", p.Host),
					entry("port", strconv.Itoa(p.Port)),
					entry("database", p.Database),
					entry("user", p.User),
					entry("passwd", p.Password),
					entry("dbtype", "postgis"),
					entry("schema", p.Schema),
					entry("Expose primary keys", "true"),
				},
			},
		},
	}
	if err := c.create(ctx, workspacePath(ws)+"/datastores", body); err != nil {
		return fmt.Errorf("failed to create datastore %s: %w", store, err)
	}
	log.Printf("Created datastore: %s in workspace: %s", store, ws)
	return nil
}

// EnsureFeatureType publishes table as a layer named name.
func (c *Client) EnsureFeatureType(ctx context.Context, ws, store, name, table, title string) error {
	base := workspacePath(ws) + "/datastores/" + url.PathEscape(store) + "/featuretypes"
	ok, err := c.exists(ctx, base+"/"+url.PathEscape(name))
	if err != nil {
		return fmt.Errorf("failed to check feature type %s: %w", name, err)
	}
	if ok {
		return nil
	}
	if title == "" {
		title = name
	}
	body := map[string]interface{}{
		"featureType": map[string]interface{}{
			"name":             name,
			"nativeName":       table,
			"title":            title,
			"enabled":          true,
			"srs":              "EPSG:4326",
			"projectionPolicy": "FORCE_DECLARED",
		},
	}
	if err := c.create(ctx, base, body); err != nil {
		return fmt.Errorf("failed to create feature type %s: %w", name, err)
	}
	log.Printf("Published feature type %s from table %s", name, table)
	return nil
}

// EnsureCoverage makes sure store holds a coverage named name. A missing
// store is created by uploading file, which creates the coverage with it;
// an existing store without the coverage gets the coverage added.
func (c *Client) EnsureCoverage(ctx context.Context, ws, store, name, title, format, file string) error {
	storePath := workspacePath(ws) + "/coveragestores/" + url.PathEscape(store)
	storeOK, err := c.exists(ctx, storePath)
	if err != nil {
		return fmt.Errorf("failed to check coverage store %s: %w", store, err)
	}
	if !storeOK {
		return c.uploadCoverage(ctx, storePath, format, file, store)
	}

	coveragePath := storePath + "/coverages/" + url.PathEscape(name)
	ok, err := c.exists(ctx, coveragePath)
	if err != nil {
		return fmt.Errorf("failed to check coverage %s: %w", name, err)
	}
	if ok {
		return nil
	}
	if title == "" {
		title = name
	}
	body := map[string]interface{}{
		"coverage": map[string]interface{}{
			"name":             name,
			"nativeName":       name,
			"title":            title,
			"enabled":          true,
			"srs":              "EPSG:4326",
			"projectionPolicy": "REPROJECT_TO_DECLARED",
		},
	}
	if err := c.create(ctx, storePath+"/coverages", body); err != nil {
		return fmt.Errorf("failed to create coverage %s: %w", name, err)
	}
	log.Printf("Created coverage %s in existing store %s", name, store)
	return nil
}

func (c *Client) uploadCoverage(ctx context.Context, storePath, format, file, store string) error {
	contentType, ok := coverageContentTypes[format]
	if !ok {
		return fmt.Errorf("unsupported coverage format %q", format)
	}
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open coverage file: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat coverage file: %w", err)
	}

	// coverageName keeps the coverage named after the store instead of the
	// uploaded file name.
	err = c.do(ctx, request{
		method:      http.MethodPut,
		path:        storePath + "/file." + format,
		query:       "coverageName=" + url.QueryEscape(store),
		body:        f,
		length:      st.Size(),
		contentType: contentType,
	}, nil)
	if err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("failed to create coverage store %s: %w", store, err)
	}
	log.Printf("Created coverage store %s with coverage from %s upload", store, format)
	return nil
}

func (c *Client) DeleteFeatureType(ctx context.Context, ws, store, name string) error {
	path := workspacePath(ws) + "/datastores/" + url.PathEscape(store) + "/featuretypes/" + url.PathEscape(name)
	if err := c.remove(ctx, path); err != nil {
		return fmt.Errorf("failed to delete feature type %s: %w", name, err)
	}
	return nil
}

func (c *Client) DeleteCoverage(ctx context.Context, ws, store, name string) error {
	path := workspacePath(ws) + "/coveragestores/" + url.PathEscape(store) + "/coverages/" + url.PathEscape(name)
	if err := c.remove(ctx, path); err != nil {
		return fmt.Errorf("failed to delete coverage %s: %w", name, err)
	}
	return nil
}

func (c *Client) DeleteCoverageStore(ctx context.Context, ws, store string) error {
	path := workspacePath(ws) + "/coveragestores/" + url.PathEscape(store)
	if err := c.remove(ctx, path); err != nil {
		return fmt.Errorf("failed to delete coverage store %s: %w", store, err)
	}
	return nil
}

// LayerURL is the external address recorded on a published layer: WFS
// GetFeature for vector layers, WMS for coverages.
func (c *Client) LayerURL(ws, layer string, coverage bool) string {
	typeName := url.QueryEscape(ws + ":" + layer)
	if coverage {
		return fmt.Sprintf("%s/%s/wms?service=WMS&version=1.1.0&request=GetMap&layers=%s", c.baseURL, ws, typeName)
	}
	return fmt.Sprintf("%s/%s/wfs?service=WFS&version=1.1.0&request=GetFeature&typeName=%s&outputFormat=application/json", c.baseURL, ws, typeName)
}
