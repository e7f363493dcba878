// Package config loads and validates cqs's project configuration: search
// defaults, display flags, and the reference-store list consulted by hybrid
// search and graph analysis.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	cqserrors "github.com/cqlabs/cqs/internal/errors"
)

// ConfigFileName is the name of the project-level config file, searched for
// from the current directory upward to the nearest VCS root.
const ConfigFileName = ".cq.yaml"

// ReferenceConfig names an external reference store consulted by search and
// graph operations in addition to the project's own index.
type ReferenceConfig struct {
	Name   string  `yaml:"name"`
	Path   string  `yaml:"path"`
	Weight float64 `yaml:"weight"`
}

// Config holds the tunables cqs reads from .cq.yaml, CLI flags, and the
// environment. All fields have sane defaults; Load never requires a config
// file to be present.
type Config struct {
	// Limit is the default number of results returned by search when the
	// caller does not specify one.
	Limit int `yaml:"limit"`

	// Threshold is the minimum hybrid score a result must clear to be
	// returned, in [0,1].
	Threshold float64 `yaml:"threshold"`

	// NameBoost is the weight of the lexical name-match score in a result's
	// hybrid score (the vector score gets 1-NameBoost), in [0,1].
	NameBoost float64 `yaml:"name_boost"`

	// Quiet suppresses progress output during indexing.
	Quiet bool `yaml:"quiet"`

	// Verbose enables extra diagnostic output on top of the default level.
	Verbose bool `yaml:"verbose"`

	// References lists additional reference stores searched and graphed
	// alongside the project's own index.
	References []ReferenceConfig `yaml:"references"`

	// PDFScript is the resolved value of CQS_PDF_SCRIPT, if set. cqs never
	// invokes it directly; health reports whether it points at an existing
	// path.
	PDFScript string `yaml:"-"`
}

// Default returns the built-in defaults applied before any file or
// environment override.
func Default() Config {
	return Config{
		Limit:     5,
		Threshold: 0.3,
		NameBoost: 0.2,
	}
}

// Load reads configuration starting from dir, walking up to the project
// root to find .cq.yaml, then applies environment overrides. It never
// returns an error for a missing config file; it does for a malformed one.
func Load(dir string) (Config, error) {
	cfg := Default()

	root, err := FindProjectRoot(dir)
	if err != nil {
		root = dir
	}

	path := filepath.Join(root, ConfigFileName)
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, cqserrors.New(cqserrors.ErrCodeConfigInvalid,
				"failed to parse "+path, err)
		}
		mergeInto(&cfg, fileCfg)
	} else if !os.IsNotExist(err) {
		return cfg, cqserrors.New(cqserrors.ErrCodeConfigNotFound, "cannot read "+path, err)
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// mergeInto overlays non-zero fields from override onto base. A config file
// need only set the fields it wants to change.
func mergeInto(base *Config, override Config) {
	if override.Limit != 0 {
		base.Limit = override.Limit
	}
	if override.Threshold != 0 {
		base.Threshold = override.Threshold
	}
	if override.NameBoost != 0 {
		base.NameBoost = override.NameBoost
	}
	if override.Quiet {
		base.Quiet = override.Quiet
	}
	if override.Verbose {
		base.Verbose = override.Verbose
	}
	if len(override.References) > 0 {
		base.References = override.References
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CQS_PDF_SCRIPT"); v != "" {
		cfg.PDFScript = v
	}
	if v := os.Getenv("CQS_QUIET"); v == "1" || v == "true" {
		cfg.Quiet = true
	}
	if v := os.Getenv("CQS_VERBOSE"); v == "1" || v == "true" {
		cfg.Verbose = true
	}
}

// Validate checks range invariants on a loaded config.
func Validate(cfg Config) error {
	if cfg.Limit <= 0 {
		return cqserrors.New(cqserrors.ErrCodeConfigInvalid, "limit must be positive", nil)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return cqserrors.New(cqserrors.ErrCodeConfigInvalid, "threshold must be in [0,1]", nil)
	}
	if cfg.NameBoost < 0 || cfg.NameBoost > 1 {
		return cqserrors.New(cqserrors.ErrCodeConfigInvalid, "name_boost must be in [0,1]", nil)
	}
	for _, ref := range cfg.References {
		if ref.Name == "" {
			return cqserrors.New(cqserrors.ErrCodeConfigInvalid, "reference entry missing name", nil)
		}
		if ref.Path == "" {
			return cqserrors.New(cqserrors.ErrCodeConfigInvalid, "reference \""+ref.Name+"\" missing path", nil)
		}
	}
	return nil
}

// PDFScriptPath reports whether CQS_PDF_SCRIPT is set and whether the path
// it names exists, for use by the health report.
func PDFScriptPath() (path string, set bool, exists bool) {
	path = os.Getenv("CQS_PDF_SCRIPT")
	if path == "" {
		return "", false, false
	}
	_, err := os.Stat(path)
	return path, true, err == nil
}

// FindProjectRoot walks up from dir looking for a .git directory or an
// existing .cq.yaml, returning the first directory where either is found.
// If neither is found by the filesystem root, dir itself is returned.
func FindProjectRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir, err
	}

	current := abs
	for {
		if dirExists(filepath.Join(current, ".git")) || fileExists(filepath.Join(current, ConfigFileName)) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		current = parent
	}
}

// WriteYAML writes cfg to path, creating parent directories as needed.
func WriteYAML(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeConfigInvalid, "failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cqserrors.IOWriteError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cqserrors.IOWriteError("failed to write "+path, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
