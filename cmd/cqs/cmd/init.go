package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cqlabs/cqs/internal/config"
	"github.com/cqlabs/cqs/internal/output"
)

func newInitCmd() *cobra.Command {
	var reindex bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Set up cqs for a project",
		Long: `init writes a default .cq.yaml, ignores .cq/ in .gitignore, and (unless
--no-index is set) runs the first index.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runInit(cmd, root, reindex)
		},
	}

	cmd.Flags().BoolVar(&reindex, "no-index", false, "Skip the initial indexing run")

	return cmd
}

func runInit(cmd *cobra.Command, root string, skipIndex bool) error {
	out := output.New(cmd.OutOrStdout())

	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}

	wrote, err := writeDefaultConfig(abs)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if wrote {
		out.Successf("wrote %s", config.ConfigFileName)
	} else {
		out.Status("ℹ", config.ConfigFileName+" already exists, left untouched")
	}

	added, err := ensureGitignoreEntry(abs)
	if err != nil {
		return fmt.Errorf("update .gitignore: %w", err)
	}
	if added {
		out.Success("added .cq/ to .gitignore")
	}

	if skipIndex {
		return nil
	}
	return runIndex(cmd, abs, false)
}

// writeDefaultConfig writes .cq.yaml if it does not already exist. It never
// overwrites a file the user may have customized.
func writeDefaultConfig(root string) (bool, error) {
	path := filepath.Join(root, config.ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	// Round-trip through yaml.Marshal on Default() rather than writing the
	// literal template, so the file always reflects the actual zero-value
	// defaults Load() would apply if the file were absent.
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return false, err
	}
	header := "# cqs project configuration. All fields are optional; cqs runs with\n" +
		"# sane defaults when this file is absent.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// ensureGitignoreEntry appends a ".cq/" ignore line if one isn't present,
// matching the line-ending convention of any existing .gitignore.
func ensureGitignoreEntry(root string) (bool, error) {
	path := filepath.Join(root, ".gitignore")

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if bytes.Contains(content, []byte(".cq/")) {
		return false, nil
	}

	lineEnding := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		lineEnding = "\r\n"
	}
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, []byte(lineEnding)...)
	}

	var entry string
	if len(content) == 0 {
		entry = "# cqs index data (auto-generated)" + lineEnding + ".cq/" + lineEnding
	} else {
		entry = lineEnding + "# cqs index data (auto-generated)" + lineEnding + ".cq/" + lineEnding
	}
	content = append(content, []byte(entry)...)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
