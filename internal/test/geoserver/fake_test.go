package geoserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// fakeGeoServer keeps REST resources keyed by path. POSTing {"kind":{"name":n}}
// to a collection creates collection/n. Single-member publishable lists are
// returned collapsed to an object, as GeoServer does.
type fakeGeoServer struct {
	mu        sync.Mutex
	resources map[string]map[string]interface{}
	creates   map[string]int
	uploads   int
	failNext  int
}

func newFakeGeoServer(t *testing.T) (*fakeGeoServer, *httptest.Server) {
	t.Helper()
	f := &fakeGeoServer{
		resources: make(map[string]map[string]interface{}),
		creates:   make(map[string]int),
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGeoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "geoserver" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.failNext > 0 {
		f.failNext--
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "temporarily unavailable")
		return
	}

	path := r.URL.Path
	switch r.Method {
	case http.MethodGet:
		if strings.HasSuffix(path, "/layergroups") {
			f.listGroups(w, path)
			return
		}
		doc, ok := f.resources[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(collapse(doc))
	case http.MethodPost:
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		name := ""
		for _, v := range body {
			if m, ok := v.(map[string]interface{}); ok {
				name, _ = m["name"].(string)
			}
		}
		key := path + "/" + name
		if _, ok := f.resources[key]; ok {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, "Resource named '"+name+"' already exists")
			return
		}
		f.resources[key] = body
		f.creates[key]++
		w.WriteHeader(http.StatusCreated)
	case http.MethodPut:
		if i := strings.Index(path, "/file."); i >= 0 {
			io.Copy(io.Discard, r.Body)
			store := path[:i]
			name := r.URL.Query().Get("coverageName")
			f.resources[store] = map[string]interface{}{"coverageStore": map[string]interface{}{"name": name}}
			f.resources[store+"/coverages/"+name] = map[string]interface{}{"coverage": map[string]interface{}{"name": name}}
			f.creates[store]++
			f.uploads++
			w.WriteHeader(http.StatusCreated)
			return
		}
		if _, ok := f.resources[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		f.resources[path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		if _, ok := f.resources[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		for k := range f.resources {
			if k == path || strings.HasPrefix(k, path+"/") {
				delete(f.resources, k)
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeGeoServer) listGroups(w http.ResponseWriter, path string) {
	var groups []interface{}
	for k := range f.resources {
		if strings.HasPrefix(k, path+"/") {
			groups = append(groups, map[string]interface{}{"name": strings.TrimPrefix(k, path+"/")})
		}
	}
	if len(groups) == 0 {
		io.WriteString(w, `{"layerGroups":""}`)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"layerGroups": map[string]interface{}{"layerGroup": groups},
	})
}

func collapse(doc map[string]interface{}) map[string]interface{} {
	lg, ok := doc["layerGroup"].(map[string]interface{})
	if !ok {
		return doc
	}
	pubs, _ := lg["publishables"].(map[string]interface{})
	if pubs == nil {
		return doc
	}
	if list, ok := pubs["published"].([]interface{}); ok && len(list) == 1 {
		out := map[string]interface{}{}
		for k, v := range lg {
			out[k] = v
		}
		out["publishables"] = map[string]interface{}{"published": list[0]}
		return map[string]interface{}{"layerGroup": out}
	}
	return doc
}

func (f *fakeGeoServer) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.resources[path]
	return ok
}

func (f *fakeGeoServer) createCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates[path]
}

func (f *fakeGeoServer) members(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.resources[path]
	if !ok {
		return nil
	}
	lg, _ := doc["layerGroup"].(map[string]interface{})
	pubs, _ := lg["publishables"].(map[string]interface{})
	var list []interface{}
	switch v := pubs["published"].(type) {
	case []interface{}:
		list = v
	case map[string]interface{}:
		list = []interface{}{v}
	}
	var names []string
	for _, p := range list {
		if m, ok := p.(map[string]interface{}); ok {
			names = append(names, m["name"].(string))
		}
	}
	sort.Strings(names)
	return names
}
