package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/netcanvas/netcanvas/pkg/collab"
	"github.com/netcanvas/netcanvas/pkg/store"
	"github.com/netcanvas/netcanvas/pkg/topology"
)

func newTestServer() *Server {
	logger := log.NewWithOptions(io.Discard, log.Options{})
	b := collab.NewBroadcaster(collab.NewRegistry(), nil, logger)
	return New(store.NewMemoryStore(), b, logger)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func sampleBody() map[string]any {
	return map[string]any{
		"name": "office",
		"data": []map[string]any{
			{
				"device": map[string]any{
					"hostname":    "gw-1",
					"ip_address":  "10.0.1.1",
					"device_type": "router",
				},
				"network": map[string]any{},
			},
			{
				"device": map[string]any{
					"hostname":    "web-1",
					"ip_address":  "10.0.1.5",
					"device_type": "server",
				},
				"network": map[string]any{"gateway": "10.0.1.1"},
			},
		},
	}
}

func TestServer_CreateAndGet(t *testing.T) {
	r := newTestServer().Router()

	rec := doJSON(t, r, http.MethodPost, "/configurations", sampleBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var created topology.Configuration
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.VersionNumber != 1 {
		t.Errorf("versionNumber = %d, want 1", created.VersionNumber)
	}
	if created.ID == "" {
		t.Fatal("created configuration has no id")
	}

	rec = doJSON(t, r, http.MethodGet, "/configurations/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	var got topology.Configuration
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Name != "office" || len(got.Records) != 2 {
		t.Errorf("GET returned %q with %d records, want office with 2", got.Name, len(got.Records))
	}
}

func TestServer_CreateValidation(t *testing.T) {
	r := newTestServer().Router()

	rec := doJSON(t, r, http.MethodPost, "/configurations", map[string]any{"name": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST without data status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Errorf("error response missing error field: %s", rec.Body.String())
	}
}

func TestServer_UpdateIncrementsVersion(t *testing.T) {
	r := newTestServer().Router()

	rec := doJSON(t, r, http.MethodPost, "/configurations", sampleBody())
	var created topology.Configuration
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(t, r, http.MethodPut, "/configurations/"+created.ID, sampleBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var updated topology.Configuration
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.VersionNumber != 2 {
		t.Errorf("versionNumber after PUT = %d, want 2", updated.VersionNumber)
	}

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/configurations/%s/versions", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET versions status = %d, want 200", rec.Code)
	}
	var versions []topology.Configuration
	json.Unmarshal(rec.Body.Bytes(), &versions)
	if len(versions) != 2 {
		t.Errorf("versions = %d, want 2", len(versions))
	}
}

func TestServer_NotFound(t *testing.T) {
	r := newTestServer().Router()

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/configurations/missing", nil},
		{http.MethodPut, "/configurations/missing", sampleBody()},
		{http.MethodDelete, "/configurations/missing", nil},
		{http.MethodGet, "/configurations/missing/topology", nil},
	} {
		rec := doJSON(t, r, tc.method, tc.path, tc.body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestServer_Delete(t *testing.T) {
	r := newTestServer().Router()

	rec := doJSON(t, r, http.MethodPost, "/configurations", sampleBody())
	var created topology.Configuration
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(t, r, http.MethodDelete, "/configurations/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rec.Code)
	}
	rec = doJSON(t, r, http.MethodGet, "/configurations/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after DELETE status = %d, want 404", rec.Code)
	}
}

func TestServer_List(t *testing.T) {
	r := newTestServer().Router()

	rec := doJSON(t, r, http.MethodGet, "/configurations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty list = %s, want []", got)
	}

	doJSON(t, r, http.MethodPost, "/configurations", sampleBody())
	rec = doJSON(t, r, http.MethodGet, "/configurations", nil)
	var configs []topology.Configuration
	json.Unmarshal(rec.Body.Bytes(), &configs)
	if len(configs) != 1 {
		t.Errorf("list length = %d, want 1", len(configs))
	}
}

func TestServer_Topology(t *testing.T) {
	r := newTestServer().Router()

	rec := doJSON(t, r, http.MethodPost, "/configurations", sampleBody())
	var created topology.Configuration
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(t, r, http.MethodGet, "/configurations/"+created.ID+"/topology", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET topology status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp topologyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding topology: %v", err)
	}
	if len(resp.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(resp.Nodes))
	}
	if len(resp.Links) != 1 || resp.Links[0].To != "gw-1" {
		t.Errorf("links = %v, want one edge to gw-1", resp.Links)
	}
	if pos, ok := resp.Positions["gw-1"]; !ok || pos.X != 0 || pos.Y != 0 {
		t.Errorf("gw-1 position = %v, want origin", pos)
	}
}

func TestServer_TopologyTypeFilter(t *testing.T) {
	r := newTestServer().Router()

	rec := doJSON(t, r, http.MethodPost, "/configurations", sampleBody())
	var created topology.Configuration
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(t, r, http.MethodGet, "/configurations/"+created.ID+"/topology?type=server", nil)
	var resp topologyResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Nodes) != 1 || resp.Nodes[0].Key != "web-1" {
		t.Errorf("filtered nodes = %v, want only web-1", resp.Nodes)
	}
}

func TestServer_TopologyDOT(t *testing.T) {
	r := newTestServer().Router()

	rec := doJSON(t, r, http.MethodPost, "/configurations", sampleBody())
	var created topology.Configuration
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(t, r, http.MethodGet, "/configurations/"+created.ID+"/topology?format=dot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET dot status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("Content-Type = %q, want text/vnd.graphviz", ct)
	}
	if !strings.Contains(rec.Body.String(), "digraph topology") {
		t.Error("DOT output missing digraph declaration")
	}

	rec = doJSON(t, r, http.MethodGet, "/configurations/"+created.ID+"/topology?format=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", rec.Code)
	}
}

func TestServer_Health(t *testing.T) {
	r := newTestServer().Router()
	rec := doJSON(t, r, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", rec.Code)
	}
}
