package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, rootPath string) *Server {
	t.Helper()
	srv, err := NewServer(newFakeStore(), nil, nil, rootPath, "")
	require.NoError(t, err)
	return srv
}

func TestHandleReadResource_ReturnsContent(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "src", "main.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(testFile), 0o755))
	require.NoError(t, os.WriteFile(testFile, []byte("package main\n\nfunc main() {}"), 0o644))

	srv := newTestServer(t, tmpDir)

	result, err := srv.handleReadResource("src/main.go")
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "file://src/main.go", result.Contents[0].URI)
	assert.Equal(t, "package main\n\nfunc main() {}", result.Contents[0].Text)
}

func TestHandleReadResource_RejectsAbsolutePath(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	_, err := srv.handleReadResource("/etc/passwd")
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleReadResource_RejectsPathTraversal(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	_, err := srv.handleReadResource("../../etc/passwd")
	require.Error(t, err)
}

func TestHandleReadResource_MissingFile(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	_, err := srv.handleReadResource("does/not/exist.go")
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeStoreNotFound, mcpErr.Code)
}

func TestHandleReadResource_RejectsOversizedFile(t *testing.T) {
	tmpDir := t.TempDir()
	bigFile := filepath.Join(tmpDir, "big.go")
	require.NoError(t, os.WriteFile(bigFile, make([]byte, MaxResourceSize+1), 0o644))

	srv := newTestServer(t, tmpDir)

	_, err := srv.handleReadResource("big.go")
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeBodyTooLarge, mcpErr.Code)
}

func TestIsValidPath(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	cases := []struct {
		path string
		ok   bool
	}{
		{"", false},
		{"src/main.go", true},
		{"/abs/path.go", false},
		{"../escape.go", false},
		{"src/../../escape.go", false},
		{`C:\windows\path`, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.ok, srv.isValidPath(c.path), "path %q", c.path)
	}
}

func TestRegisterResources_RequiresRootPath(t *testing.T) {
	srv := newTestServer(t, "")

	err := srv.RegisterResources(context.Background())
	require.Error(t, err)
}

func TestRegisterResources_RegistersEveryIndexedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a.go"), []byte("package a"), 0o644))

	fs := newFakeStore()
	fs.files = []string{"a.go", "b.go"}
	srv, err := NewServer(fs, nil, nil, tmpDir, "")
	require.NoError(t, err)

	err = srv.RegisterResources(context.Background())
	require.NoError(t, err)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.0 KB", humanSize(1024))
	assert.Equal(t, "1.0 MB", humanSize(1024*1024))
	assert.Equal(t, "1.0 GB", humanSize(1024*1024*1024))
}
