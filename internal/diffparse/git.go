package diffparse

import (
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	cqserrors "github.com/cqlabs/cqs/internal/errors"
)

// AcquireDiff opens the repository at repoPath and renders the unified diff
// between base and HEAD as text, the same shape a caller could otherwise
// pipe in from `git diff`. base == "" compares HEAD against its first
// parent, matching plain `git diff HEAD~1`.
func AcquireDiff(repoPath, base string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", cqserrors.New(cqserrors.ErrCodeInvalidPath, "open git repository", err)
	}

	headRef, err := repo.Head()
	if err != nil {
		return "", cqserrors.New(cqserrors.ErrCodeInvalidInput, "resolve HEAD", err)
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return "", cqserrors.New(cqserrors.ErrCodeInvalidInput, "load HEAD commit", err)
	}

	var baseCommit *object.Commit
	if base == "" {
		if headCommit.NumParents() == 0 {
			return "", nil // initial commit has nothing to diff against
		}
		baseCommit, err = headCommit.Parent(0)
		if err != nil {
			return "", cqserrors.New(cqserrors.ErrCodeInvalidInput, "load parent commit", err)
		}
	} else {
		hash, err := repo.ResolveRevision(plumbing.Revision(base))
		if err != nil {
			return "", cqserrors.New(cqserrors.ErrCodeInvalidInput, "resolve base ref "+base, err)
		}
		baseCommit, err = repo.CommitObject(*hash)
		if err != nil {
			return "", cqserrors.New(cqserrors.ErrCodeInvalidInput, "load base commit", err)
		}
	}

	patch, err := baseCommit.Patch(headCommit)
	if err != nil {
		return "", cqserrors.New(cqserrors.ErrCodeInternal, "compute patch", err)
	}

	var sb strings.Builder
	if err := patch.Encode(&sb); err != nil {
		return "", cqserrors.New(cqserrors.ErrCodeInternal, "encode patch", err)
	}
	return sb.String(), nil
}
