package manager

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillctl/pkg/journal"
	"github.com/jingkaihe/skillctl/pkg/logger"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// AdoptOptions controls Adopt
type AdoptOptions struct {
	// Path selects which unmanaged installation to adopt when there are several
	Path string
	// LinkAgents also links the skill into every other enabled agent of the same scope
	LinkAgents bool
}

// AdoptResult describes a completed adoption
type AdoptResult struct {
	Name     string   `json:"name"`
	From     string   `json:"from"`
	RepoPath string   `json:"repo_path"`
	Linked   []string `json:"linked,omitempty"`
	// Remaining lists unmanaged copies that were left untouched
	Remaining []string `json:"remaining,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Adopt moves one unmanaged physical installation into the repository and
// replaces it with a symbolic link. If the link cannot be created the move
// is reversed.
func (m *Manager) Adopt(ctx context.Context, name string, opts AdoptOptions) (*AdoptResult, error) {
	repoEntry, err := m.repoEntryFor(name)
	if err != nil {
		return nil, err
	}

	skill, _, err := m.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	inst, err := pickAdoptable(skill, opts.Path)
	if err != nil {
		return nil, err
	}

	result := &AdoptResult{
		Name:     name,
		From:     inst.Path,
		RepoPath: repoEntry,
	}
	for _, other := range skill.Installations {
		if !other.IsManaged() && filepath.Clean(other.Path) != filepath.Clean(inst.Path) {
			result.Remaining = append(result.Remaining, other.Path)
		}
	}

	err = m.run(ctx, journal.KindAdopt, name, func(ctx context.Context) (bool, string, error) {
		if _, err := m.ops.Lstat(result.RepoPath); err == nil {
			return false, "", skilltypes.AlreadyExists(result.RepoPath)
		}
		if err := m.ops.EnsureDir(m.repoRoot()); err != nil {
			return false, "", err
		}
		if err := m.ops.MoveDirectory(inst.Path, result.RepoPath); err != nil {
			return false, "", err
		}

		if err := m.ops.CreateSymlink(result.RepoPath, inst.Path); err != nil {
			if moveErr := m.ops.MoveDirectory(result.RepoPath, inst.Path); moveErr != nil {
				logger.G(ctx).WithError(moveErr).Error("failed to move adopted skill back")
				return true, "", withRollbackErr(err, moveErr)
			}
			return true, "", errors.Wrapf(err, "failed to link %s back into place", inst.Path)
		}
		m.invalidate(inst.Path)

		if opts.LinkAgents {
			m.linkOtherAgents(ctx, inst, result)
		}
		return false, fmt.Sprintf("adopted from %s", inst.Path), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// linkOtherAgents links the adopted skill into agents that have nothing at
// that name yet. Failures are reported as warnings; the adoption stands.
func (m *Manager) linkOtherAgents(ctx context.Context, adopted skilltypes.Installation, result *AdoptResult) {
	for _, agent := range m.cfg.EnabledAgents() {
		if agent == adopted.Agent {
			continue
		}
		dir := m.cfg.AgentPath(agent, adopted.Scope)
		if dir == "" {
			continue
		}
		link := filepath.Join(dir, result.Name)
		if _, err := m.ops.Lstat(link); err == nil {
			if !m.linkPointsTo(link, result.RepoPath) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s already exists", agent, link))
			}
			continue
		}
		if err := m.ops.EnsureDir(dir); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", agent, err))
			continue
		}
		if err := m.ops.CreateSymlink(result.RepoPath, link); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", agent, err))
			continue
		}
		result.Linked = append(result.Linked, link)
	}
	m.invalidate(result.Linked...)
	for _, w := range result.Warnings {
		logger.G(ctx).Warn(w)
	}
}

func pickAdoptable(skill *skilltypes.Skill, path string) (skilltypes.Installation, error) {
	var candidates []skilltypes.Installation
	seen := make(map[string]bool)
	for _, inst := range skill.Installations {
		if inst.Link != skilltypes.LinkPhysical {
			continue
		}
		clean := filepath.Clean(inst.Path)
		if path != "" {
			abs, err := filepath.Abs(path)
			if err == nil && abs == clean {
				return inst, nil
			}
			continue
		}
		if !seen[clean] {
			seen[clean] = true
			candidates = append(candidates, inst)
		}
	}

	switch {
	case path != "":
		return skilltypes.Installation{}, skilltypes.Validation(path, "not an unmanaged installation of "+skill.Metadata.Name)
	case len(candidates) == 0:
		return skilltypes.Installation{}, skilltypes.Validation("", skill.Metadata.Name+" has no unmanaged installation to adopt")
	case len(candidates) > 1:
		return skilltypes.Installation{}, skilltypes.Validation("", fmt.Sprintf("%s has %d unmanaged copies; choose one with --path", skill.Metadata.Name, len(candidates)))
	}
	return candidates[0], nil
}
