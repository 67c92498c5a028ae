// Package geoserver talks to the map server's REST API and keeps its
// resource graph (workspace, store, layer, layer group) in step with the
// catalog.
package geoserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
}

func NewClient(baseURL, user, password string) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		user:     user,
		password: password,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// StatusError is a non-2xx response from the map server.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d, body: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the map server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsAlreadyExists reports whether a create failed only because the
// resource is already there. GeoServer answers 409 for most resources and
// 500 with an "already exists" message for some.
func IsAlreadyExists(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.StatusCode == http.StatusConflict {
		return true
	}
	return strings.Contains(strings.ToLower(se.Body), "already exists")
}

type request struct {
	method      string
	path        string
	query       string
	body        io.Reader
	length      int64
	contentType string
}

func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	url := c.baseURL + r.path
	if r.query != "" {
		url += "?" + r.query
	}
	req, err := http.NewRequestWithContext(ctx, r.method, url, r.body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.length > 0 {
		req.ContentLength = r.length
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, path: path}, out)
}

// exists turns a GET into a presence check: 404 is absence, anything else
// non-2xx is an error.
func (c *Client) exists(ctx context.Context, path string) (bool, error) {
	err := c.get(ctx, path, nil)
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	}
	return false, err
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, request{
		method:      method,
		path:        path,
		body:        bytes.NewReader(data),
		contentType: "application/json",
	}, nil)
}

// create POSTs in and treats "already exists" as success.
func (c *Client) create(ctx context.Context, path string, in interface{}) error {
	err := c.sendJSON(ctx, http.MethodPost, path, in)
	if err != nil && IsAlreadyExists(err) {
		return nil
	}
	return err
}

// remove DELETEs path with recurse=true; an absent resource is not an error.
func (c *Client) remove(ctx context.Context, path string) error {
	err := c.do(ctx, request{method: http.MethodDelete, path: path, query: "recurse=true"}, nil)
	if err != nil && IsNotFound(err) {
		return nil
	}
	return err
}
