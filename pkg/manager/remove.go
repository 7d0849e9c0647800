package manager

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/jingkaihe/skillctl/pkg/journal"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// RemoveOptions controls Remove
type RemoveOptions struct {
	// Confirmed must be true; the caller asserts the user agreed
	Confirmed bool
	// KeepRepository leaves the repository entry in place
	KeepRepository bool
	// IncludeUnmanaged also removes physical copies and foreign links
	IncludeUnmanaged bool
}

// RemoveResult lists what Remove deleted and what it left behind
type RemoveResult struct {
	Name       string   `json:"name"`
	Removed    []string `json:"removed"`
	Kept       []string `json:"kept,omitempty"`
	RepoPath   string   `json:"repo_path,omitempty"`
	RepoKept   bool     `json:"repo_kept"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// Remove deletes the managed links of a skill, then its repository entry,
// then optionally its unmanaged installations. A failing step does not stop
// the remaining steps; all failures are returned together.
func (m *Manager) Remove(ctx context.Context, name string, opts RemoveOptions) (*RemoveResult, error) {
	if !opts.Confirmed {
		return nil, skilltypes.ConfirmationRequired(name)
	}

	repoEntry, err := m.repoEntryFor(name)
	if err != nil {
		return nil, err
	}

	result := &RemoveResult{Name: name}
	scan := m.Scan(ctx)
	skill, found := scan.Get(name)

	if found && skill.RepoPath != "" {
		repoEntry = skill.RepoPath
	}
	_, statErr := m.ops.Lstat(repoEntry)
	repoExists := statErr == nil

	if !found && !repoExists {
		return nil, skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, name, "skill not found", nil)
	}
	if repoExists {
		result.RepoPath = repoEntry
	}

	err = m.run(ctx, journal.KindRemove, name, func(ctx context.Context) (bool, string, error) {
		var failures *multierror.Error
		var installs []skilltypes.Installation
		if found {
			installs = skill.Installations
		}

		for _, inst := range installs {
			if !inst.IsManaged() {
				continue
			}
			if err := m.ops.RemoveSymlink(inst.Path); err != nil {
				failures = multierror.Append(failures, err)
				result.Unresolved = append(result.Unresolved, inst.Path)
				continue
			}
			result.Removed = append(result.Removed, inst.Path)
		}

		switch {
		case !repoExists:
		case opts.KeepRepository:
			result.RepoKept = true
		default:
			if err := m.ops.RemoveDirectory(repoEntry, true); err != nil {
				failures = multierror.Append(failures, err)
				result.Unresolved = append(result.Unresolved, repoEntry)
			} else {
				result.Removed = append(result.Removed, repoEntry)
			}
		}

		for _, inst := range installs {
			if inst.IsManaged() {
				continue
			}
			if !opts.IncludeUnmanaged {
				result.Kept = append(result.Kept, inst.Path)
				continue
			}
			var err error
			if inst.IsSymlink() {
				err = m.ops.RemoveSymlink(inst.Path)
			} else {
				err = m.ops.RemoveDirectory(inst.Path, true)
			}
			if err != nil {
				failures = multierror.Append(failures, err)
				result.Unresolved = append(result.Unresolved, inst.Path)
				continue
			}
			result.Removed = append(result.Removed, inst.Path)
		}

		m.invalidate(result.Removed...)
		return false, fmt.Sprintf("removed %d path(s)", len(result.Removed)), failures.ErrorOrNil()
	})
	return result, err
}
