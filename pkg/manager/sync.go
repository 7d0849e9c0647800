package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillctl/pkg/journal"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// SyncOptions controls Sync
type SyncOptions struct {
	Scope  skilltypes.Scope
	DryRun bool
}

// LinkAction is one link Sync created, would create, or refused to touch
type LinkAction struct {
	Skill  string           `json:"skill"`
	Agent  skilltypes.Agent `json:"agent"`
	Path   string           `json:"path"`
	Target string           `json:"target"`
	Reason string           `json:"reason,omitempty"`
}

// SyncResult summarises a sync run
type SyncResult struct {
	Created []LinkAction `json:"created"`
	Skipped []LinkAction `json:"skipped,omitempty"`
	InSync  int          `json:"in_sync"`
	DryRun  bool         `json:"dry_run"`
}

// Sync links every repository skill into every enabled agent directory of
// the scope. Entries that exist but are not the expected link are reported
// and left alone. If a link cannot be created, the links created by this run
// are removed.
func (m *Manager) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	repo, err := m.scanner.ScanRepository(ctx)
	if err != nil {
		if errors.Is(err, skilltypes.ErrDirectoryNotFound) {
			return &SyncResult{DryRun: opts.DryRun}, nil
		}
		return nil, err
	}

	result := &SyncResult{DryRun: opts.DryRun}
	var planned []LinkAction

	for _, skill := range repo.Ordered() {
		target := skill.Installations[0].Path
		dirName := filepath.Base(target)

		for _, agent := range m.cfg.EnabledAgents() {
			dir := m.cfg.AgentPath(agent, opts.Scope)
			if dir == "" {
				continue
			}
			action := LinkAction{
				Skill:  skill.Metadata.Name,
				Agent:  agent,
				Path:   filepath.Join(dir, dirName),
				Target: target,
			}

			info, err := m.ops.Lstat(action.Path)
			switch {
			case err == nil && m.linkPointsTo(action.Path, target):
				result.InSync++
			case err == nil && info.Mode()&os.ModeSymlink != 0:
				action.Reason = "symbolic link points elsewhere"
				result.Skipped = append(result.Skipped, action)
			case err == nil:
				action.Reason = "unmanaged copy exists"
				result.Skipped = append(result.Skipped, action)
			case os.IsNotExist(err):
				planned = append(planned, action)
			default:
				action.Reason = err.Error()
				result.Skipped = append(result.Skipped, action)
			}
		}
	}

	if opts.DryRun || len(planned) == 0 {
		result.Created = planned
		return result, nil
	}

	err = m.run(ctx, journal.KindSync, "*", func(ctx context.Context) (bool, string, error) {
		var created []string
		for _, action := range planned {
			err := m.ops.EnsureDir(filepath.Dir(action.Path))
			if err == nil {
				err = m.ops.CreateSymlink(action.Target, action.Path)
			}
			if err != nil {
				rollbackErr := m.removeLinks(created)
				m.invalidate(created...)
				result.Created = nil
				return true, "", withRollbackErr(errors.Wrapf(err, "failed to link %s for %s", action.Skill, action.Agent), rollbackErr)
			}
			created = append(created, action.Path)
			result.Created = append(result.Created, action)
		}
		m.invalidate(created...)
		return false, fmt.Sprintf("created %d link(s)", len(created)), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
