package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqlabs/cqs/internal/chunk"
	"github.com/cqlabs/cqs/internal/store"
)

func TestNewServer_RequiresStore(t *testing.T) {
	_, err := NewServer(nil, nil, nil, "", "")
	require.Error(t, err)
}

func TestNewServer_Succeeds(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)
	require.NotNil(t, srv)

	name, ver := srv.Info()
	assert.Equal(t, "cqs", name)
	assert.NotEmpty(t, ver)
	assert.NotNil(t, srv.MCPServer())
	assert.NotNil(t, srv.Metrics())
}

func TestServer_SetAuthToken(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	assert.Empty(t, srv.authToken)
	srv.SetAuthToken("secret")
	assert.Equal(t, "secret", srv.authToken)
}

func TestServer_HnswCount(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)
	assert.Nil(t, srv.hnswCount())

	srv2, err := NewServer(newFakeStore(), nil, &fakeVectorStore{count: 42}, "", "")
	require.NoError(t, err)
	got := srv2.hnswCount()
	require.NotNil(t, got)
	assert.Equal(t, 42, *got)
}

func TestHandleSearch_RequiresQuery(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, _, err = srv.handleSearch(context.Background(), nil, SearchInput{})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleSearch_NameOnlyFallbackWithoutEmbedder(t *testing.T) {
	fs := newFakeStore()
	srv, err := NewServer(fs, nil, nil, "", "")
	require.NoError(t, err)

	_, out, err := srv.handleSearch(context.Background(), nil, SearchInput{Query: "foo"})
	require.NoError(t, err)
	assert.NotNil(t, out.Results)
}

func TestHandleSearch_PropagatesStoreError(t *testing.T) {
	fs := newFakeStore()
	fs.err = assertError("search boom")
	srv, err := NewServer(fs, nil, nil, "", "")
	require.NoError(t, err)

	_, _, err = srv.handleSearch(context.Background(), nil, SearchInput{Query: "foo", NameOnly: true})
	require.Error(t, err)
}

func TestHandleCallers_RequiresName(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, _, err = srv.handleCallers(context.Background(), nil, CallersInput{})
	require.Error(t, err)
}

func TestHandleCallers_ReturnsStoreEdges(t *testing.T) {
	fs := newFakeStore()
	fs.callers = []store.CallEdgeRecord{{CallerFile: "a.go", CallerName: "A", CalleeName: "B"}}
	srv, err := NewServer(fs, nil, nil, "", "")
	require.NoError(t, err)

	_, out, err := srv.handleCallers(context.Background(), nil, CallersInput{Name: "B"})
	require.NoError(t, err)
	require.Len(t, out.Callers, 1)
	assert.Equal(t, "A", out.Callers[0].CallerName)
}

func TestHandleCallees_RequiresName(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, _, err = srv.handleCallees(context.Background(), nil, CalleesInput{})
	require.Error(t, err)
}

func TestHandleDeps_RequiresOneOfTypeNameOrChunkName(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, _, err = srv.handleDeps(context.Background(), nil, DepsInput{})
	require.Error(t, err)
}

func TestHandleDeps_ResolvesUsersAgainstStore(t *testing.T) {
	fs := newFakeStore()
	fs.chunks["c1"] = &chunk.Chunk{ID: "c1", Name: "Widget", FilePath: "w.go", Kind: chunk.KindStruct}
	fs.typeUsers = []chunk.TypeEdge{{ChunkID: "c1", TypeName: "Gadget", Kind: chunk.TypeEdgeField}}
	srv, err := NewServer(fs, nil, nil, "", "")
	require.NoError(t, err)

	_, out, err := srv.handleDeps(context.Background(), nil, DepsInput{TypeName: "Gadget"})
	require.NoError(t, err)
	require.Len(t, out.Users, 1)
	assert.Equal(t, "Widget", out.Users[0].Name)
	assert.Equal(t, "w.go", out.Users[0].File)
}

func TestHandleDeps_UsedByDoesNotNeedChunkResolution(t *testing.T) {
	fs := newFakeStore()
	fs.typesUsed = []chunk.TypeEdge{{TypeName: "Gadget", Kind: chunk.TypeEdgeParam}}
	srv, err := NewServer(fs, nil, nil, "", "")
	require.NoError(t, err)

	_, out, err := srv.handleDeps(context.Background(), nil, DepsInput{ChunkName: "Widget"})
	require.NoError(t, err)
	require.Len(t, out.UsedBy, 1)
	assert.Equal(t, "Gadget", out.UsedBy[0].TypeName)
}

func TestHandleTestMap_RequiresTarget(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, out, err := srv.handleTestMap(context.Background(), nil, TestMapInput{})
	require.Error(t, err)
	assert.Nil(t, out)
}

func TestHandleScout_RequiresTask(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, _, err = srv.handleScout(context.Background(), nil, ScoutInput{})
	require.Error(t, err)
}

func TestHandleScout_RequiresEmbedder(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, _, err = srv.handleScout(context.Background(), nil, ScoutInput{Task: "add a widget"})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
}

func TestHandleWhere_RequiresEmbedder(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, _, err = srv.handleWhere(context.Background(), nil, WhereInput{Description: "new cache layer"})
	require.Error(t, err)
}

func TestHandleStats_ReturnsStoreStats(t *testing.T) {
	fs := newFakeStore()
	fs.stats = store.Stats{ChunkCount: 5, FileCount: 2, SchemaVersion: 1}
	srv, err := NewServer(fs, nil, nil, "", "")
	require.NoError(t, err)

	_, out, err := srv.handleStats(context.Background(), nil, StatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 5, out.Project.ChunkCount)
}

func TestHandleGC_ScansEmptyRootWithoutError(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, out, err := srv.handleGC(context.Background(), nil, GCInput{})
	require.NoError(t, err)
	require.NotNil(t, out)
}

func TestHandleHealth_ScansEmptyRootWithoutError(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, out, err := srv.handleHealth(context.Background(), nil, HealthInput{})
	require.NoError(t, err)
	require.NotNil(t, out)
}

func TestHandleDiffStores_RequiresReferencePath(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	_, _, err = srv.handleDiffStores(context.Background(), nil, DiffStoresInput{})
	require.Error(t, err)
}

func TestScanWorkingTreeMtimes_EmptyRootPath(t *testing.T) {
	current, err := scanWorkingTreeMtimes("")
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestScanWorkingTreeMtimes_WalksRegularFilesAndSkipsGit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))

	current, err := scanWorkingTreeMtimes(dir)
	require.NoError(t, err)
	assert.Contains(t, current, "a.go")
	for path := range current {
		assert.NotContains(t, path, ".git")
	}
}

func TestAuthMiddleware_NoTokenConfiguredPassesThrough(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	called := false
	h := srv.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, called)
}

func TestAuthMiddleware_RejectsMissingOrWrongToken(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)
	srv.SetAuthToken("correct-token")

	h := srv.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_AcceptsCorrectToken(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)
	srv.SetAuthToken("correct-token")

	called := false
	h := srv.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer correct-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, called)
}

func TestBodyLimitMiddleware_RejectsOversizedContentLength(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	h := srv.bodyLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(make([]byte, 10)))
	req.ContentLength = maxRequestBody + 1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBodyLimitMiddleware_AllowsSmallBody(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	called := false
	h := srv.bodyLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, called)
}

func TestHandleHTTPHealth_ReturnsOK(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHTTPHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	require.Contains(t, body, "project")
}

func TestHandleHTTPHealth_ReportsDetectedProjectName(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "go.mod"), []byte("module github.com/test/detected\n\ngo 1.21\n"), 0644))

	srv, err := NewServer(newFakeStore(), nil, nil, tmpDir, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHTTPHealth(rec, req)

	var body struct {
		Project ProjectInfo `json:"project"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "detected", body.Project.Name)
	assert.Equal(t, "go", body.Project.Type)
}

func TestTrack_ObservesMetricsAndLogsErrors(t *testing.T) {
	srv, err := NewServer(newFakeStore(), nil, nil, "", "")
	require.NoError(t, err)

	start := time.Now()
	srv.track("search", start, nil)
	srv.track("search", start, assertError("boom"))
}

// assertError is a tiny error type for fixtures that only need a non-nil
// error, not a specific cqserrors taxonomy code.
type assertError string

func (e assertError) Error() string { return string(e) }
