// Package gc implements `cqs gc`: a read-only report of stale (mtime
// changed) and missing (file deleted) index rows, with an apply mode that
// performs the prune spec section 4.2's incremental indexer would
// otherwise defer to the next `index` run.
package gc

import (
	"context"
	"time"

	"github.com/cqlabs/cqs/internal/store"
)

// Report is the read-only view of what gc would clean up.
type Report struct {
	StaleCount   int
	MissingFiles []string
}

// Clean reports true when nothing needs cleaning.
func (r Report) Clean() bool {
	return r.StaleCount == 0 && len(r.MissingFiles) == 0
}

// Plan compares the index's stored files against current (the on-disk
// file set, path -> mtime) and reports what's stale or gone.
func Plan(ctx context.Context, s store.Store, current map[string]time.Time) (*Report, error) {
	stale, err := s.CountStaleFiles(ctx, current)
	if err != nil {
		return nil, err
	}

	indexed, err := s.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, f := range indexed {
		if _, ok := current[f]; !ok {
			missing = append(missing, f)
		}
	}

	return &Report{StaleCount: stale, MissingFiles: missing}, nil
}

// Apply deletes every chunk belonging to a missing file. Stale (modified
// but still present) files are left alone: the next `cqs index` run
// re-chunks and re-upserts them, since an upsert already supersedes the old
// rows for that file.
func Apply(ctx context.Context, s store.Store, report *Report) (deletedFiles int, err error) {
	for _, f := range report.MissingFiles {
		if err := s.DeleteChunksByFile(ctx, f); err != nil {
			return deletedFiles, err
		}
		deletedFiles++
	}
	return deletedFiles, nil
}
