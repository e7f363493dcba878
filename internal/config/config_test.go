package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasExpectedValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5, cfg.Limit)
	assert.Equal(t, 0.3, cfg.Threshold)
	assert.Equal(t, 0.2, cfg.NameBoost)
	assert.False(t, cfg.Quiet)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.References)
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Limit)
	assert.Equal(t, 0.3, cfg.Threshold)
}

func TestLoad_ReadsProjectConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, `
limit: 10
threshold: 0.5
name_boost: 0.4
quiet: true
references:
  - name: stdlib
    path: /opt/ref/stdlib
    weight: 0.8
`)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Limit)
	assert.Equal(t, 0.5, cfg.Threshold)
	assert.Equal(t, 0.4, cfg.NameBoost)
	assert.True(t, cfg.Quiet)
	require.Len(t, cfg.References, 1)
	assert.Equal(t, "stdlib", cfg.References[0].Name)
	assert.Equal(t, "/opt/ref/stdlib", cfg.References[0].Path)
	assert.Equal(t, 0.8, cfg.References[0].Weight)
}

func TestLoad_MalformedYAML_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "limit: [unterminated")

	_, err := Load(tmpDir)

	assert.Error(t, err)
}

func TestLoad_InvalidValues_ReturnsValidationError(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "threshold: 1.5")

	_, err := Load(tmpDir)

	assert.Error(t, err)
}

func TestLoad_EnvOverridesQuietAndVerbose(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CQS_QUIET", "1")
	t.Setenv("CQS_VERBOSE", "true")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.True(t, cfg.Quiet)
	assert.True(t, cfg.Verbose)
}

func TestLoad_EnvSetsPDFScript(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CQS_PDF_SCRIPT", "/usr/local/bin/pdf2txt")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/pdf2txt", cfg.PDFScript)
}

func TestValidate_RejectsNonPositiveLimit(t *testing.T) {
	cfg := Default()
	cfg.Limit = 0

	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsOutOfRangeThreshold(t *testing.T) {
	cfg := Default()
	cfg.Threshold = -0.1

	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsReferenceMissingPath(t *testing.T) {
	cfg := Default()
	cfg.References = []ReferenceConfig{{Name: "foo"}}

	assert.Error(t, Validate(cfg))
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestPDFScriptPath_Unset(t *testing.T) {
	t.Setenv("CQS_PDF_SCRIPT", "")

	path, set, exists := PDFScriptPath()

	assert.Empty(t, path)
	assert.False(t, set)
	assert.False(t, exists)
}

func TestPDFScriptPath_SetButMissing(t *testing.T) {
	t.Setenv("CQS_PDF_SCRIPT", "/does/not/exist/pdf2txt")

	path, set, exists := PDFScriptPath()

	assert.Equal(t, "/does/not/exist/pdf2txt", path)
	assert.True(t, set)
	assert.False(t, exists)
}

func TestPDFScriptPath_SetAndExists(t *testing.T) {
	tmpDir := t.TempDir()
	script := filepath.Join(tmpDir, "pdf2txt")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("CQS_PDF_SCRIPT", script)

	path, set, exists := PDFScriptPath()

	assert.Equal(t, script, path)
	assert.True(t, set)
	assert.True(t, exists)
}

func TestFindProjectRoot_FindsGitDir(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".git"), 0o755))
	nested := filepath.Join(tmpDir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, err := FindProjectRoot(nested)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_FindsConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "limit: 3")
	nested := filepath.Join(tmpDir, "sub")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, err := FindProjectRoot(nested)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_NoMarkerFound_ReturnsInputDir(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := FindProjectRoot(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", ConfigFileName)

	cfg := Default()
	cfg.Limit = 7

	require.NoError(t, WriteYAML(cfg, path))

	loaded, err := Load(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Limit)
}

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))
}
