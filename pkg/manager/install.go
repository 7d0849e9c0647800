package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillctl/pkg/journal"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/skills"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// InstallOptions controls Install
type InstallOptions struct {
	// Subdir selects a skill inside src. It must stay within src.
	Subdir string
	// Agents to link; empty means every enabled agent
	Agents []skilltypes.Agent
	Scope  skilltypes.Scope
}

// InstallResult describes a completed install
type InstallResult struct {
	Name     string   `json:"name"`
	RepoPath string   `json:"repo_path"`
	Linked   []string `json:"linked"`
	// Existing lists links that already pointed at the repository entry
	Existing []string `json:"existing,omitempty"`
}

// Install copies the skill at src into the repository and links it into each
// target agent directory in order. If any link cannot be created, the links
// made so far and the repository copy are removed.
func (m *Manager) Install(ctx context.Context, src string, opts InstallOptions) (*InstallResult, error) {
	source, err := ResolveSource(src, opts.Subdir)
	if err != nil {
		return nil, err
	}

	header, err := skills.ParseHeaderFile(source)
	if err != nil {
		return nil, err
	}

	repoEntry, err := m.repoEntryFor(header.Name)
	if err != nil {
		return nil, err
	}

	agents := opts.Agents
	if len(agents) == 0 {
		agents = m.cfg.EnabledAgents()
	}

	result := &InstallResult{
		Name:     header.Name,
		RepoPath: repoEntry,
	}

	err = m.run(ctx, journal.KindInstall, header.Name, func(ctx context.Context) (bool, string, error) {
		log := logger.G(ctx)

		if err := m.ops.EnsureDir(m.repoRoot()); err != nil {
			return false, "", err
		}
		if err := m.ops.CopyDirectoryTree(source, result.RepoPath); err != nil {
			return false, "", err
		}

		for _, agent := range agents {
			dir := m.cfg.AgentPath(agent, opts.Scope)
			if dir == "" {
				err := skilltypes.Validation("", fmt.Sprintf("agent %s has no %s directory configured", agent, opts.Scope))
				return true, "", m.rollbackInstall(ctx, result, err)
			}
			link := filepath.Join(dir, header.Name)

			if m.linkPointsTo(link, result.RepoPath) {
				result.Existing = append(result.Existing, link)
				continue
			}
			if err := m.ops.EnsureDir(dir); err != nil {
				return true, "", m.rollbackInstall(ctx, result, err)
			}
			if err := m.ops.CreateSymlink(result.RepoPath, link); err != nil {
				return true, "", m.rollbackInstall(ctx, result, errors.Wrapf(err, "failed to link %s for %s", header.Name, agent))
			}
			result.Linked = append(result.Linked, link)
			log.WithField("agent", agent.String()).WithField("path", link).Debug("linked skill")
		}

		m.invalidate(append(result.Linked, result.Existing...)...)
		return false, fmt.Sprintf("linked %d agent(s)", len(result.Linked)), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Manager) rollbackInstall(ctx context.Context, result *InstallResult, cause error) error {
	var rollback *multierror.Error
	if err := m.removeLinks(result.Linked); err != nil {
		rollback = multierror.Append(rollback, err)
	}
	if err := m.ops.RemoveDirectory(result.RepoPath, true); err != nil {
		rollback = multierror.Append(rollback, err)
	}
	m.invalidate(result.Linked...)
	result.Linked = nil

	if err := rollback.ErrorOrNil(); err != nil {
		logger.G(ctx).WithError(err).Warn("install rollback incomplete")
		return withRollbackErr(cause, err)
	}
	return cause
}

// ResolveSource returns the absolute skill directory named by src and subdir.
// subdir must be relative and must not resolve outside src, including
// through symbolic links.
func ResolveSource(src, subdir string) (string, error) {
	root, err := filepath.Abs(src)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve source path")
	}
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, root, "", err)
		}
		return "", skilltypes.PermissionDenied(root, err)
	}
	if !info.IsDir() {
		return "", skilltypes.NotADirectory(root)
	}
	if subdir == "" {
		return root, nil
	}

	if filepath.IsAbs(subdir) {
		return "", skilltypes.NewPathError(skilltypes.ErrPathTraversal, subdir, "subdirectory must be relative", nil)
	}
	candidate := filepath.Join(root, subdir)
	if !within(root, candidate) {
		return "", skilltypes.NewPathError(skilltypes.ErrPathTraversal, subdir, "subdirectory escapes source", nil)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", skilltypes.PermissionDenied(root, err)
	}
	realCandidate, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if os.IsNotExist(err) {
			return "", skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, candidate, "", err)
		}
		return "", skilltypes.PermissionDenied(candidate, err)
	}
	if !within(realRoot, realCandidate) {
		return "", skilltypes.NewPathError(skilltypes.ErrPathTraversal, subdir, "subdirectory resolves outside source", nil)
	}
	return candidate, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
