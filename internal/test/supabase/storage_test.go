package supabase_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"geo-ingest-backend/internal/supabase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T, handler http.HandlerFunc) *supabase.StorageClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := supabase.NewStorageClient(srv.URL+"/", "service-key", "geodata")
	require.NoError(t, err)
	return client
}

func TestCreateUploadGrant(t *testing.T) {
	client := newStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/upload/sign/geodata/acme/p1/vector_layers/abc.geojson", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"url":"/object/upload/sign/geodata/acme/p1/vector_layers/abc.geojson?token=tok123"}`))
	})

	grant, err := client.CreateUploadGrant("acme/p1/vector_layers/abc.geojson", 2048)
	require.NoError(t, err)
	assert.Equal(t, "tok123", grant.Token)
	assert.True(t, strings.HasSuffix(grant.URL, "/storage/v1/object/upload/sign/geodata/acme/p1/vector_layers/abc.geojson?token=tok123"))
	assert.False(t, grant.ExpiresAt.IsZero())
}

func TestCreateUploadGrant_RejectsOversizedFile(t *testing.T) {
	client := newStorage(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL.Path)
	})

	_, err := client.CreateUploadGrant("acme/p1/raster_layers/big.tif", supabase.MaxGrantSize+1)
	assert.ErrorContains(t, err, "outside allowed range")
}

func TestStat(t *testing.T) {
	client := newStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/storage/v1/object/authenticated/geodata/acme/p1/vector_layers/abc.geojson":
			w.Header().Set("Content-Length", "2048")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	size, err := client.Stat("acme/p1/vector_layers/abc.geojson")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), size)

	_, err = client.Stat("acme/p1/vector_layers/missing.geojson")
	assert.ErrorIs(t, err, supabase.ErrObjectNotFound)
}

func TestStat_Error(t *testing.T) {
	client := newStorage(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Stat("acme/p1/vector_layers/abc.geojson")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, supabase.ErrObjectNotFound)
}

func TestCreateUploadGrant_ReportsStorageExpiry(t *testing.T) {
	client := newStorage(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":"/object/upload/sign/geodata/a.tif?token=t"}`))
	})

	before := time.Now()
	grant, err := client.CreateUploadGrant("a.tif", 10)
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(2*time.Hour), grant.ExpiresAt, time.Minute)
}

func TestDownload_StreamsLargeObject(t *testing.T) {
	payload := strings.Repeat("0123456789abcdef", 1<<16)
	client := newStorage(t, func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < len(payload); i += 4096 {
			io.WriteString(w, payload[i:i+4096])
			w.(http.Flusher).Flush()
		}
	})

	path, err := client.Download("acme/p1/raster_layers/dem.tif", t.TempDir())
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size())
}

func TestDownload_MissingObjectLeavesNoFile(t *testing.T) {
	client := newStorage(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"statusCode":"404","error":"not_found","message":"Object not found"}`))
	})

	dir := t.TempDir()
	_, err := client.Download("acme/p1/vector_layers/gone.geojson", dir)
	assert.ErrorContains(t, err, "Object not found")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_WritesScratchFileWithExtension(t *testing.T) {
	client := newStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/geodata/acme/p1/vector_layers/abc.GeoJSON", r.URL.Path)
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	})

	dir := t.TempDir()
	path, err := client.Download("acme/p1/vector_layers/abc.GeoJSON", dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".geojson", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
}

func TestRealtime_PublishJobEvent(t *testing.T) {
	jobID := uuid.New()
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realtime/v1/api/broadcast", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("apikey"))
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	rt := supabase.NewRealtimeClient(srv.URL, "key")
	rt.PublishJobEvent(jobID, "job_status", supabase.JobStatusPayload(jobID, "completed", 3, 2))

	body := <-received
	assert.Contains(t, string(body), `"topic":"job:`+jobID.String()+`"`)
	assert.Contains(t, string(body), `"processed_files":3`)
	assert.Contains(t, string(body), `"failed_files":2`)
}
