// Package conflicts classifies duplicate installations found by a scan.
// Conflicts are derived from a ScanResult every time and never stored.
package conflicts

import (
	"path/filepath"

	"github.com/pkg/errors"

	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// Kind distinguishes the conflict shapes
type Kind int

const (
	// DuplicateUnmanaged means the same skill exists as two or more distinct
	// physical copies, none of them linked into the repository.
	DuplicateUnmanaged Kind = iota
	// DuplicateManaged means two or more agents link to the same repository
	// entry. This is the healthy multi-agent shape and is informational.
	DuplicateManaged
)

func (k Kind) String() string {
	switch k {
	case DuplicateUnmanaged:
		return "duplicate-unmanaged"
	case DuplicateManaged:
		return "duplicate-managed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "duplicate-unmanaged":
		*k = DuplicateUnmanaged
	case "duplicate-managed":
		*k = DuplicateManaged
	default:
		return errors.Errorf("unknown conflict kind %q", text)
	}
	return nil
}

// IsError reports whether the conflict needs the user's attention
func (k Kind) IsError() bool {
	return k == DuplicateUnmanaged
}

// Location is one installation involved in a conflict
type Location struct {
	Agent     skilltypes.Agent `json:"agent"`
	Scope     skilltypes.Scope `json:"scope"`
	Path      string           `json:"path"`
	IsManaged bool             `json:"is_managed"`
	RepoPath  string           `json:"repo_path,omitempty"`
}

// Conflict is one anomaly for one skill name
type Conflict struct {
	SkillName string     `json:"skill_name"`
	Kind      Kind       `json:"kind"`
	Locations []Location `json:"locations"`
}

// IsError reports whether the conflict needs the user's attention
func (c Conflict) IsError() bool {
	return c.Kind.IsError()
}

// Detect returns the conflicts in result, in skill discovery order and with
// locations in installation order. A skill can produce at most one conflict
// of each kind.
func Detect(result *skilltypes.ScanResult) []Conflict {
	if result == nil {
		return nil
	}

	var conflicts []Conflict
	for _, skill := range result.Ordered() {
		conflicts = append(conflicts, detectSkill(skill)...)
	}
	return conflicts
}

func detectSkill(skill *skilltypes.Skill) []Conflict {
	var managed, unmanaged []Location
	unmanagedPaths := make(map[string]struct{})
	repoPaths := make(map[string]struct{})

	for _, inst := range skill.Installations {
		loc := Location{
			Agent:     inst.Agent,
			Scope:     inst.Scope,
			Path:      inst.Path,
			IsManaged: inst.IsManaged(),
			RepoPath:  inst.RepoPath,
		}
		if loc.IsManaged {
			managed = append(managed, loc)
			repoPaths[filepath.Clean(inst.RepoPath)] = struct{}{}
			continue
		}
		unmanaged = append(unmanaged, loc)
		unmanagedPaths[filepath.Clean(inst.Path)] = struct{}{}
	}

	var conflicts []Conflict
	if len(unmanagedPaths) > 1 {
		conflicts = append(conflicts, Conflict{
			SkillName: skill.Metadata.Name,
			Kind:      DuplicateUnmanaged,
			Locations: unmanaged,
		})
	}
	if len(managed) >= 2 && len(repoPaths) == 1 {
		conflicts = append(conflicts, Conflict{
			SkillName: skill.Metadata.Name,
			Kind:      DuplicateManaged,
			Locations: managed,
		})
	}
	return conflicts
}

// FilterErrors returns the conflicts that are errors
func FilterErrors(conflicts []Conflict) []Conflict {
	var out []Conflict
	for _, c := range conflicts {
		if c.IsError() {
			out = append(out, c)
		}
	}
	return out
}

// FilterDisplayable returns every conflict when verbose, otherwise only errors
func FilterDisplayable(conflicts []Conflict, verbose bool) []Conflict {
	if verbose {
		return conflicts
	}
	return FilterErrors(conflicts)
}

// HasErrors reports whether any conflict is an error
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.IsError() {
			return true
		}
	}
	return false
}
