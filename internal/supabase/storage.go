package supabase

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	storage "github.com/supabase-community/storage-go"
)

// Signed upload URLs issued by Supabase Storage are valid for two hours.
const (
	GrantExpiry  = 2 * time.Hour
	MinGrantSize = int64(1)
	MaxGrantSize = int64(100) << 30
)

var (
	ErrInvalidSize    = errors.New("file size outside allowed range")
	ErrObjectNotFound = errors.New("object not found")
)

// Grant is a signed upload target for one object.
type Grant struct {
	URL       string
	Token     string
	ExpiresAt time.Time
}

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// CreateUploadGrant issues a signed URL the client can PUT the object to.
func (s *StorageClient) CreateUploadGrant(objectPath string, size int64) (*Grant, error) {
	if size != 0 && (size < MinGrantSize || size > MaxGrantSize) {
		return nil, fmt.Errorf("%w: %d not in %d..%d bytes", ErrInvalidSize, size, MinGrantSize, MaxGrantSize)
	}
	resp, err := s.client.CreateSignedUploadUrl(s.bucket, objectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload url for %s: %w", objectPath, err)
	}

	signed := resp.Url
	if !strings.HasPrefix(signed, "http") {
		signed = s.baseURL + "/storage/v1" + signed
	}
	grant := &Grant{URL: signed, ExpiresAt: time.Now().Add(GrantExpiry)}
	if u, err := url.Parse(signed); err == nil {
		grant.Token = u.Query().Get("token")
	}
	return grant, nil
}

func (s *StorageClient) objectURL(route, objectPath string) string {
	return s.baseURL + "/storage/v1/" + route + "/" + s.bucket + "/" + objectPath
}

// Stat returns the stored size of objectPath with a single HEAD request,
// or ErrObjectNotFound when nothing has been uploaded there.
func (s *StorageClient) Stat(objectPath string) (int64, error) {
	req, err := s.client.NewRequest(http.MethodHead, s.objectURL("object/authenticated", objectPath))
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req, nil)
	if resp != nil {
		resp.Body.Close()
		// storage reports a missing object as 400 with a not_found body
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
			return 0, ErrObjectNotFound
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", objectPath, err)
	}
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
	}
	return resp.ContentLength, nil
}

// Download streams the object into a new file under dir and returns its
// path. The file keeps the object's extension so format detection works.
func (s *StorageClient) Download(objectPath, dir string) (string, error) {
	req, err := s.client.NewRequest(http.MethodGet, s.objectURL("object", objectPath))
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	f, err := os.CreateTemp(dir, "src-*"+strings.ToLower(filepath.Ext(objectPath)))
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	return f.Name(), nil
}
