package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MaxResourceSize is the maximum file size a file:// resource will read, 1 MiB.
const MaxResourceSize = 1024 * 1024

// RegisterResources registers every indexed file as an MCP resource. Call
// after NewServer and before Serve.
func (s *Server) RegisterResources(ctx context.Context) error {
	if s.rootPath == "" {
		return fmt.Errorf("rootPath must be set before registering resources")
	}

	files, err := s.store.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	for _, f := range files {
		s.registerFileResource(f)
	}

	s.logger.Info("registered resources", "count", len(files))
	return nil
}

// registerFileResource registers a single indexed file as a readable resource.
func (s *Server) registerFileResource(path string) {
	uri := fmt.Sprintf("file://%s", path)
	info, err := os.Stat(filepath.Join(s.rootPath, path))
	var description string
	if err == nil {
		description = fmt.Sprintf("%s (%s)", path, humanSize(info.Size()))
	} else {
		description = path
	}

	s.mcp.AddResource(
		&mcp.Resource{
			Name:        filepath.Base(path),
			URI:         uri,
			Description: description,
			MIMEType:    MimeTypeForPath(path),
		},
		s.makeFileHandler(path),
	)
}

// makeFileHandler creates a read handler for a specific file path.
func (s *Server) makeFileHandler(path string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadResource(path)
	}
}

// handleReadResource reads file content from disk after validating the
// path stays within rootPath.
func (s *Server) handleReadResource(relativePath string) (*mcp.ReadResourceResult, error) {
	if !s.isValidPath(relativePath) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid path: %s", relativePath))
	}

	fullPath := filepath.Join(s.rootPath, relativePath)

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MCPError{Code: ErrCodeStoreNotFound, Message: fmt.Sprintf("file not found: %s", relativePath)}
		}
		return nil, MapError(err)
	}

	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeBodyTooLarge,
			Message: fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), MaxResourceSize),
		}
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, MapError(err)
	}

	uri := fmt.Sprintf("file://%s", relativePath)
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: MimeTypeForPath(relativePath), Text: string(content)},
		},
	}, nil
}

// isValidPath rejects absolute paths and any ".." traversal component.
func (s *Server) isValidPath(path string) bool {
	if path == "" {
		return false
	}
	if filepath.IsAbs(path) {
		return false
	}
	if len(path) >= 2 && path[1] == ':' {
		return false // Windows absolute path
	}

	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") {
		return false
	}
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return false
		}
	}
	return true
}

// humanSize formats bytes as a human-readable string.
func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
