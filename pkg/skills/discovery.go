package skills

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillctl/pkg/cache"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/telemetry"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// Scanner discovers skills in agent directories and folds them into a ScanResult
type Scanner struct {
	repoRoot string
	cache    *cache.Cache
	parser   HeaderParser
}

// Option is a function that configures a Scanner
type Option func(*Scanner) error

// WithRepository sets the canonical repository root. Symbolic links resolving
// under it are classified as managed. The root is resolved through symlinks
// so that comparisons happen between real paths.
func WithRepository(root string) Option {
	return func(s *Scanner) error {
		if root == "" {
			s.repoRoot = ""
			return nil
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return errors.Wrap(err, "failed to resolve repository path")
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		s.repoRoot = abs
		return nil
	}
}

// WithCache enables the scan cache
func WithCache(c *cache.Cache) Option {
	return func(s *Scanner) error {
		s.cache = c
		return nil
	}
}

// WithParser substitutes the header parser
func WithParser(p HeaderParser) Option {
	return func(s *Scanner) error {
		if p == nil {
			return errors.New("header parser must not be nil")
		}
		s.parser = p
		return nil
	}
}

// NewScanner creates a new scanner
func NewScanner(opts ...Option) (*Scanner, error) {
	s := &Scanner{parser: FrontmatterParser{}}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RepoRoot returns the resolved repository root, or "" if none was configured
func (s *Scanner) RepoRoot() string {
	return s.repoRoot
}

// Cache returns the attached scan cache, or nil
func (s *Scanner) Cache() *cache.Cache {
	return s.cache
}

// ScanAll scans every enabled directory in order into one result. A missing
// directory is skipped; any other directory failure is recorded as a scan
// error and the remaining directories are still scanned.
func (s *Scanner) ScanAll(ctx context.Context, dirs []skilltypes.AgentDirectory) *skilltypes.ScanResult {
	result := skilltypes.NewScanResult()

	_ = telemetry.WithSpan(ctx, "skills.scan_all", func(ctx context.Context) error {
		for _, dir := range dirs {
			if !dir.Enabled {
				continue
			}
			err := s.ScanDirectory(ctx, dir, result)
			if err == nil {
				continue
			}

			log := logger.G(ctx).WithFields(logrus.Fields{
				"agent": dir.Agent.String(),
				"scope": dir.Scope.String(),
				"path":  dir.Path,
			})
			var pathErr *skilltypes.PathError
			if errors.As(err, &pathErr) && os.IsNotExist(pathErr.Err) {
				log.Debug("agent directory does not exist, skipping")
				continue
			}
			log.WithError(err).Warn("failed to scan agent directory")
			result.AddError(dir.Path, err.Error())
		}

		telemetry.SetAttributes(ctx,
			attribute.Int("skills.count", len(result.Order)),
			attribute.Int("skills.errors", len(result.Errors)),
			attribute.Int("skills.cache_hits", result.CacheHits),
			attribute.Int("skills.cache_misses", result.CacheMisses),
		)
		return nil
	}, attribute.Int("skills.directories", len(dirs)))

	return result
}

// ScanDirectory lists the immediate children of dir.Path and adds every
// valid skill among them to result. Dot entries and plain files are skipped.
// Per-entry failures are recorded in result; only a missing or unreadable
// directory is returned as an error.
func (s *Scanner) ScanDirectory(ctx context.Context, dir skilltypes.AgentDirectory, result *skilltypes.ScanResult) error {
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		return skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, dir.Path, "cannot read agent directory", err)
	}

	log := logger.G(ctx).WithField("agent", dir.Agent.String())

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		entryPath := filepath.Join(dir.Path, entry.Name())

		inst, ok := s.inspect(entryPath, result)
		if !ok {
			continue
		}
		inst.Agent = dir.Agent
		inst.Scope = dir.Scope

		header, err := s.loadHeader(entryPath, result)
		if err != nil {
			log.WithError(err).WithField("path", entryPath).Debug("skipping invalid skill")
			result.AddError(entryPath, err.Error())
			continue
		}

		result.Add(*header, inst)
	}

	return nil
}

// inspect classifies entryPath without following it. It returns false for
// entries that are not skill candidates.
func (s *Scanner) inspect(entryPath string, result *skilltypes.ScanResult) (skilltypes.Installation, bool) {
	inst := skilltypes.Installation{Path: entryPath}

	info, err := os.Lstat(entryPath)
	if err != nil {
		result.AddError(entryPath, err.Error())
		return inst, false
	}

	if info.Mode()&os.ModeSymlink == 0 {
		if !info.IsDir() {
			return inst, false
		}
		inst.Link = skilltypes.LinkPhysical
		return inst, true
	}

	inst.Link = skilltypes.LinkSymlink
	raw, err := os.Readlink(entryPath)
	if err != nil {
		result.AddError(entryPath, err.Error())
		return inst, false
	}
	if !filepath.IsAbs(raw) {
		raw = filepath.Join(filepath.Dir(entryPath), raw)
	}
	inst.SymlinkTarget = filepath.Clean(raw)

	target, err := os.Stat(entryPath)
	if err != nil {
		result.AddError(entryPath, "broken symbolic link to "+inst.SymlinkTarget)
		return inst, false
	}
	if !target.IsDir() {
		return inst, false
	}

	inst.RepoPath = s.repositoryEntry(entryPath)
	return inst, true
}

// repositoryEntry returns the repository child that path resolves into, or ""
// when it resolves outside the repository.
func (s *Scanner) repositoryEntry(path string) string {
	if s.repoRoot == "" {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(s.repoRoot, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return filepath.Join(s.repoRoot, first)
}

// loadHeader returns the parsed header of dir/SKILL.md, consulting the cache first
func (s *Scanner) loadHeader(dir string, result *skilltypes.ScanResult) (*skilltypes.Header, error) {
	if s.cache != nil {
		if entry, ok := s.cache.Get(dir); ok {
			result.CacheHits++
			if !entry.IsValidSkill || entry.Header == nil {
				return nil, errors.New(entry.Error)
			}
			return entry.Header, nil
		}
		result.CacheMisses++
	}

	path := filepath.Join(dir, skilltypes.HeaderFileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("no %s found", skilltypes.HeaderFileName)
		}
		return nil, skilltypes.PermissionDenied(path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, skilltypes.PermissionDenied(path, err)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, skilltypes.PermissionDenied(path, err)
	}

	header, parseErr := s.parser.Parse(content)
	if parseErr != nil {
		parseErr = withPath(parseErr, path)
	}

	if s.cache != nil {
		sum := sha256.Sum256(content)
		entry := cache.Entry{
			Path:         dir,
			ModTime:      info.ModTime().UnixNano(),
			Size:         info.Size(),
			ContentHash:  hex.EncodeToString(sum[:]),
			IsValidSkill: parseErr == nil,
		}
		if parseErr == nil {
			entry.SkillName = header.Name
			entry.Header = header
		} else {
			entry.Error = parseErr.Error()
		}
		if err := s.cache.Put(entry); err != nil {
			logger.L.WithError(err).WithField("path", dir).Debug("failed to update scan cache")
		}
	}

	return header, parseErr
}

// ScanRepository lists the skills physically stored in the repository. The
// installations it returns carry paths only; agent and scope are not meaningful.
func (s *Scanner) ScanRepository(ctx context.Context) (*skilltypes.ScanResult, error) {
	if s.repoRoot == "" {
		return nil, errors.New("no repository configured")
	}
	result := skilltypes.NewScanResult()
	err := s.ScanDirectory(ctx, skilltypes.AgentDirectory{
		Path:    s.repoRoot,
		Enabled: true,
	}, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FilterByPattern returns a copy of result restricted to skills whose name
// matches the glob pattern. An empty pattern returns result unchanged.
func FilterByPattern(result *skilltypes.ScanResult, pattern string) (*skilltypes.ScanResult, error) {
	if pattern == "" {
		return result, nil
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, skilltypes.Validation("", "invalid skill name pattern "+pattern)
	}

	filtered := skilltypes.NewScanResult()
	filtered.Errors = result.Errors
	filtered.CacheHits = result.CacheHits
	filtered.CacheMisses = result.CacheMisses
	for _, name := range result.Order {
		if g.Match(name) {
			filtered.Skills[name] = result.Skills[name]
			filtered.Order = append(filtered.Order, name)
		}
	}
	return filtered, nil
}
