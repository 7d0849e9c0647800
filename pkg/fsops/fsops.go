// Package fsops implements the filesystem mutations every command is built
// from: copying a directory tree, moving a directory, removing a directory,
// and creating or removing symbolic links. Each operation either completes or
// undoes the changes it made before returning an error, so rollback logic
// lives here and nowhere else.
package fsops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/jingkaihe/skillctl/pkg/logger"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

const gitDirName = ".git"

// Ops performs filesystem mutations against an afero.Fs
type Ops struct {
	fs       afero.Fs
	excludes []string
}

// Option configures an Ops instance
type Option func(*Ops)

// WithFs substitutes the backing filesystem
func WithFs(fs afero.Fs) Option {
	return func(o *Ops) {
		o.fs = fs
	}
}

// WithExcludes adds doublestar patterns, matched against slash-separated
// paths relative to the copy source, that CopyDirectoryTree skips in
// addition to .git. Invalid patterns are ignored.
func WithExcludes(patterns ...string) Option {
	return func(o *Ops) {
		for _, p := range patterns {
			if doublestar.ValidatePattern(p) {
				o.excludes = append(o.excludes, p)
			} else {
				logger.L.WithField("pattern", p).Warn("ignoring invalid copy exclude pattern")
			}
		}
	}
}

// New creates an Ops backed by the OS filesystem unless WithFs is given
func New(opts ...Option) *Ops {
	o := &Ops{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type copyStep struct {
	rel  string
	info os.FileInfo
}

// CopyDirectoryTree recursively copies src into dest, which must not exist.
// .git entries and configured excludes are skipped. A symbolic link anywhere
// under src rejects the whole copy before anything is written. If copying
// fails partway, everything created under dest is removed in reverse order.
func (o *Ops) CopyDirectoryTree(src, dest string) (err error) {
	info, err := o.fs.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, src, "", err)
		}
		return skilltypes.PermissionDenied(src, err)
	}
	if !info.IsDir() {
		return skilltypes.NotADirectory(src)
	}

	if _, statErr := o.lstat(dest); statErr == nil {
		return skilltypes.AlreadyExists(dest)
	} else if !os.IsNotExist(statErr) {
		return skilltypes.PermissionDenied(dest, statErr)
	}

	steps, err := o.planCopy(src)
	if err != nil {
		return err
	}

	var created []string
	defer func() {
		if err != nil {
			o.rollback(created)
		}
	}()

	missing, err := o.missingAncestors(dest)
	if err != nil {
		return err
	}
	for _, dir := range missing {
		if err := o.fs.Mkdir(dir, 0o755); err != nil {
			return skilltypes.PermissionDenied(dir, err)
		}
		created = append(created, dir)
	}

	if err := o.fs.Mkdir(dest, info.Mode().Perm()|0o700); err != nil {
		return skilltypes.PermissionDenied(dest, err)
	}
	created = append(created, dest)

	for _, step := range steps {
		target := filepath.Join(dest, step.rel)
		if step.info.IsDir() {
			if err := o.fs.Mkdir(target, step.info.Mode().Perm()|0o700); err != nil {
				return skilltypes.PermissionDenied(target, err)
			}
			created = append(created, target)
			continue
		}

		wrote, err := o.copyFile(filepath.Join(src, step.rel), target, step.info.Mode().Perm())
		if wrote {
			created = append(created, target)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// planCopy walks src and returns the entries to create, in creation order
func (o *Ops) planCopy(src string) ([]copyStep, error) {
	var steps []copyStep

	var walk func(rel string) error
	walk = func(rel string) error {
		dir := filepath.Join(src, rel)
		entries, err := afero.ReadDir(o.fs, dir)
		if err != nil {
			return skilltypes.PermissionDenied(dir, err)
		}

		for _, entry := range entries {
			childRel := filepath.Join(rel, entry.Name())
			if entry.Name() == gitDirName || o.excluded(childRel) {
				continue
			}

			childPath := filepath.Join(src, childRel)
			mode := entry.Mode()
			switch {
			case mode&os.ModeSymlink != 0:
				return skilltypes.SymlinkRejected(childPath)
			case mode.IsDir():
				steps = append(steps, copyStep{rel: childRel, info: entry})
				if err := walk(childRel); err != nil {
					return err
				}
			case mode.IsRegular():
				steps = append(steps, copyStep{rel: childRel, info: entry})
			default:
				return skilltypes.Validation(childPath, "unsupported file type "+mode.Type().String())
			}
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, err
	}
	return steps, nil
}

func (o *Ops) excluded(rel string) bool {
	slashed := filepath.ToSlash(rel)
	for _, pattern := range o.excludes {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}

// missingAncestors returns the ancestors of path that do not exist yet, outermost first
func (o *Ops) missingAncestors(path string) ([]string, error) {
	var missing []string
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		info, err := o.fs.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return nil, skilltypes.NotADirectory(dir)
			}
			break
		}
		if !os.IsNotExist(err) {
			return nil, skilltypes.PermissionDenied(dir, err)
		}
		missing = append([]string{dir}, missing...)
		if filepath.Dir(dir) == dir {
			break
		}
	}
	return missing, nil
}

func (o *Ops) copyFile(src, dst string, perm os.FileMode) (bool, error) {
	in, err := o.fs.Open(src)
	if err != nil {
		return false, skilltypes.PermissionDenied(src, err)
	}
	defer in.Close()

	out, err := o.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return false, skilltypes.PermissionDenied(dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return true, skilltypes.PermissionDenied(dst, err)
	}
	if err := out.Close(); err != nil {
		return true, skilltypes.PermissionDenied(dst, err)
	}
	return true, nil
}

// rollback removes created paths in reverse order. Failures are logged, not returned.
func (o *Ops) rollback(created []string) {
	var result *multierror.Error
	for i := len(created) - 1; i >= 0; i-- {
		if err := o.fs.Remove(created[i]); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, errors.Wrapf(err, "failed to remove %s", created[i]))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		logger.L.WithError(err).Warn("rollback left partial copy behind")
	}
}

// MoveDirectory renames src to dest, falling back to copy-then-remove when
// the rename fails (for example across devices). In the fallback an existing
// dest is set aside first and restored if the move cannot complete. If src
// cannot be removed after a successful copy, the copy is discarded and the
// failure returned; the move is never retried.
func (o *Ops) MoveDirectory(src, dest string) error {
	info, err := o.lstat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, src, "", err)
		}
		return skilltypes.PermissionDenied(src, err)
	}
	if !info.IsDir() {
		return skilltypes.NotADirectory(src)
	}

	renameErr := o.fs.Rename(src, dest)
	if renameErr == nil {
		return nil
	}
	log := logger.L.WithFields(logrus.Fields{"src": src, "dest": dest})
	log.WithError(renameErr).Debug("rename failed, falling back to copy")

	backup := ""
	if _, err := o.lstat(dest); err == nil {
		backup = filepath.Join(filepath.Dir(dest), fmt.Sprintf(".%s.backup-%s", filepath.Base(dest), shortID()))
		if err := o.fs.Rename(dest, backup); err != nil {
			return skilltypes.NewPathError(skilltypes.ErrPermissionDenied, dest, "failed to set aside existing destination", err)
		}
	}

	if err := o.CopyDirectoryTree(src, dest); err != nil {
		o.restore(dest, backup)
		return errors.Wrapf(err, "failed to move %s to %s", src, dest)
	}

	if err := o.fs.RemoveAll(src); err != nil {
		o.restore(dest, backup)
		return skilltypes.NewPathError(skilltypes.ErrPermissionDenied, src,
			"copied but could not remove source, copy discarded; source may be incomplete", err)
	}

	if backup != "" {
		if err := o.fs.RemoveAll(backup); err != nil {
			log.WithError(err).WithField("backup", backup).Warn("failed to remove backup of replaced destination")
		}
	}
	return nil
}

func (o *Ops) restore(dest, backup string) {
	log := logger.L.WithField("dest", dest)
	if err := o.fs.RemoveAll(dest); err != nil {
		log.WithError(err).Warn("failed to discard partial destination")
	}
	if backup == "" {
		return
	}
	if err := o.fs.Rename(backup, dest); err != nil {
		log.WithError(err).WithField("backup", backup).Error("failed to restore original destination, backup left in place")
	}
}

// RemoveDirectory recursively removes path. confirmed must be true; it is the
// caller's proof that the user agreed to the deletion.
func (o *Ops) RemoveDirectory(path string, confirmed bool) error {
	if !confirmed {
		return skilltypes.ConfirmationRequired(path)
	}

	info, err := o.lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, path, "", err)
		}
		return skilltypes.PermissionDenied(path, err)
	}
	if info.Mode()&os.ModeSymlink == 0 && !info.IsDir() {
		return skilltypes.NotADirectory(path)
	}

	if err := o.fs.RemoveAll(path); err != nil {
		return skilltypes.PermissionDenied(path, err)
	}
	return nil
}

// CreateSymlink creates link pointing at target. link must not exist.
func (o *Ops) CreateSymlink(target, link string) error {
	linker, ok := o.fs.(afero.Linker)
	if !ok {
		return skilltypes.NewPathError(skilltypes.ErrSymlinkNotAllowed, link, "filesystem does not support symbolic links", nil)
	}
	if _, err := o.lstat(link); err == nil {
		return skilltypes.AlreadyExists(link)
	}
	if err := linker.SymlinkIfPossible(target, link); err != nil {
		return skilltypes.PermissionDenied(link, err)
	}
	return nil
}

// RemoveSymlink removes link, refusing anything that is not a symbolic link
func (o *Ops) RemoveSymlink(link string) error {
	info, err := o.lstat(link)
	if err != nil {
		if os.IsNotExist(err) {
			return skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, link, "", err)
		}
		return skilltypes.PermissionDenied(link, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return skilltypes.Validation(link, "not a symbolic link")
	}
	if err := o.fs.Remove(link); err != nil {
		return skilltypes.PermissionDenied(link, err)
	}
	return nil
}

// ReadSymlink returns the raw target of link
func (o *Ops) ReadSymlink(link string) (string, error) {
	reader, ok := o.fs.(afero.LinkReader)
	if !ok {
		return "", skilltypes.NewPathError(skilltypes.ErrSymlinkNotAllowed, link, "filesystem does not support symbolic links", nil)
	}
	target, err := reader.ReadlinkIfPossible(link)
	if err != nil {
		return "", skilltypes.PermissionDenied(link, err)
	}
	return target, nil
}

// EnsureDir creates path and any missing parents
func (o *Ops) EnsureDir(path string) error {
	if err := o.fs.MkdirAll(path, 0o755); err != nil {
		return skilltypes.PermissionDenied(path, err)
	}
	return nil
}

// Lstat stats path without following a final symbolic link
func (o *Ops) Lstat(path string) (os.FileInfo, error) {
	return o.lstat(path)
}

func (o *Ops) lstat(path string) (os.FileInfo, error) {
	if l, ok := o.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return o.fs.Stat(path)
}

func shortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}
