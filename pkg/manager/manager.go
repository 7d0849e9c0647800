// Package manager implements the mutating commands on top of the scanner and
// the filesystem operations: install, remove, adopt and sync, plus diff.
// Each command performs its mutations in a fixed order and undoes the ones
// it already made when a later step fails.
package manager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillctl/pkg/cache"
	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/fsops"
	"github.com/jingkaihe/skillctl/pkg/journal"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/jingkaihe/skillctl/pkg/telemetry"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// Manager runs mutating commands against one configuration
type Manager struct {
	cfg     config.Config
	scanner *skills.Scanner
	ops     *fsops.Ops
	cache   *cache.Cache
	journal journal.Journal
}

// Option configures a Manager
type Option func(*Manager)

// WithOps substitutes the filesystem operations
func WithOps(ops *fsops.Ops) Option {
	return func(m *Manager) {
		m.ops = ops
	}
}

// WithCache sets the cache whose entries are invalidated after mutations
func WithCache(c *cache.Cache) Option {
	return func(m *Manager) {
		m.cache = c
	}
}

// WithJournal records every mutation in j
func WithJournal(j journal.Journal) Option {
	return func(m *Manager) {
		if j != nil {
			m.journal = j
		}
	}
}

// New creates a manager. Copies honour cfg.CopyExcludes unless WithOps is given.
func New(cfg config.Config, scanner *skills.Scanner, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		scanner: scanner,
		ops:     fsops.New(fsops.WithExcludes(cfg.CopyExcludes...)),
		journal: journal.Nop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Scan scans every configured agent directory
func (m *Manager) Scan(ctx context.Context) *skilltypes.ScanResult {
	return m.scanner.ScanAll(ctx, m.cfg.AgentDirectories())
}

// Lookup scans and returns the skill named name
func (m *Manager) Lookup(ctx context.Context, name string) (*skilltypes.Skill, *skilltypes.ScanResult, error) {
	result := m.Scan(ctx)
	skill, ok := result.Get(name)
	if !ok {
		return nil, result, skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, name, "skill not found", nil)
	}
	return skill, result, nil
}

// repoRoot returns the repository root used for link targets
func (m *Manager) repoRoot() string {
	if root := m.scanner.RepoRoot(); root != "" {
		return root
	}
	return m.cfg.RepositoryPath
}

// repoEntryFor returns the repository entry for name. The name must be a
// valid skill name and the entry must be a direct child of the repository.
func (m *Manager) repoEntryFor(name string) (string, error) {
	if err := skills.ValidateName(name); err != nil {
		return "", skilltypes.NewPathError(skilltypes.ErrPathTraversal, name, "invalid skill name", err)
	}
	root := filepath.Clean(m.repoRoot())
	entry := filepath.Join(root, name)
	if entry == root || !within(root, entry) || filepath.Dir(entry) != root {
		return "", skilltypes.NewPathError(skilltypes.ErrPathTraversal, name, "skill name resolves outside the repository", nil)
	}
	return entry, nil
}

// run executes f inside a span and a journal entry. f reports whether it
// rolled back so the journal can tell a clean failure from a partial one.
func (m *Manager) run(ctx context.Context, kind journal.Kind, name string, f func(ctx context.Context) (rolledBack bool, detail string, err error)) error {
	log := logger.G(ctx).WithField("op", string(kind)).WithField("skill", name)

	id, jerr := m.journal.Begin(ctx, kind, name)
	if jerr != nil {
		log.WithError(jerr).Warn("failed to journal operation start")
	}

	return telemetry.WithSpan(ctx, "manager."+string(kind), func(ctx context.Context) error {
		rolledBack, detail, err := f(logger.WithLogger(ctx, log))

		status := journal.StatusSucceeded
		switch {
		case err != nil && rolledBack:
			status = journal.StatusRolledBack
		case err != nil:
			status = journal.StatusFailed
		}
		if err != nil {
			detail = err.Error()
		}
		if ferr := m.journal.Finish(ctx, id, status, detail); ferr != nil {
			log.WithError(ferr).Warn("failed to journal operation outcome")
		}
		return err
	}, attribute.String("skill.name", name))
}

// invalidate drops cache entries for paths that were mutated
func (m *Manager) invalidate(paths ...string) {
	if m.cache == nil {
		return
	}
	for _, p := range paths {
		m.cache.Invalidate(p)
	}
}

// linkPointsTo reports whether link is a symbolic link resolving to target
func (m *Manager) linkPointsTo(link, target string) bool {
	info, err := m.ops.Lstat(link)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return false
	}
	raw, err := m.ops.ReadSymlink(link)
	if err != nil {
		return false
	}
	if !filepath.IsAbs(raw) {
		raw = filepath.Join(filepath.Dir(link), raw)
	}
	resolvedLink, err := filepath.EvalSymlinks(raw)
	if err != nil {
		return false
	}
	resolvedTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		return false
	}
	return resolvedLink == resolvedTarget
}

// removeLinks removes links in reverse order, returning every failure
func (m *Manager) removeLinks(links []string) error {
	var result *multierror.Error
	for i := len(links) - 1; i >= 0; i-- {
		if err := m.ops.RemoveSymlink(links[i]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// withRollbackErr attaches rollback failures to the original error
func withRollbackErr(err, rollbackErr error) error {
	if rollbackErr == nil {
		return err
	}
	return errors.Wrapf(err, "rollback incomplete, filesystem may be partially modified: %v", rollbackErr)
}
