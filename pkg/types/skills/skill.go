// Package skills defines the installation-state model shared by the scanner,
// the cache, the conflict detector and the commands that mutate skill
// directories. A skill is a directory holding a SKILL.md file; the same skill
// may be installed for several agents, either as a physical copy or as a
// symbolic link into the canonical repository.
package skills

import (
	"path/filepath"

	"github.com/pkg/errors"
)

// HeaderFileName is the file that marks a directory as a skill
const HeaderFileName = "SKILL.md"

// Header is the YAML frontmatter of a SKILL.md file
type Header struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Author      string `yaml:"author,omitempty" json:"author,omitempty"`
	License     string `yaml:"license,omitempty" json:"license,omitempty"`
}

// LinkState records whether an installation path is a symbolic link
type LinkState int

const (
	LinkUnknown LinkState = iota
	LinkSymlink
	LinkPhysical
)

func (l LinkState) String() string {
	switch l {
	case LinkSymlink:
		return "symlink"
	case LinkPhysical:
		return "physical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (l LinkState) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *LinkState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "symlink":
		*l = LinkSymlink
	case "physical":
		*l = LinkPhysical
	case "unknown":
		*l = LinkUnknown
	default:
		return errors.Errorf("unknown link state %q", text)
	}
	return nil
}

// Installation is one location of a skill for one agent
type Installation struct {
	Agent Agent     `json:"agent"`
	Path  string    `json:"path"`
	Scope Scope     `json:"scope"`
	Link  LinkState `json:"link"`

	// SymlinkTarget is the raw link target, made absolute. Empty unless Link is LinkSymlink.
	SymlinkTarget string `json:"symlink_target,omitempty"`
	// RepoPath is the repository entry the link resolves into. Empty unless the
	// installation is managed.
	RepoPath string `json:"repo_path,omitempty"`
}

// IsSymlink reports whether the installation is known to be a symbolic link
func (i Installation) IsSymlink() bool {
	return i.Link == LinkSymlink
}

// IsManaged reports whether the installation is a symlink resolving into the repository
func (i Installation) IsManaged() bool {
	return i.Link == LinkSymlink && i.RepoPath != ""
}

// Skill merges every installation sharing one header name
type Skill struct {
	Metadata      Header         `json:"metadata"`
	DirectoryName string         `json:"directory_name"`
	Installations []Installation `json:"installations"`
	IsManaged     bool           `json:"is_managed"`
	RepoPath      string         `json:"repo_path,omitempty"`
}

// AddInstallation appends inst in discovery order and re-derives the managed state
func (s *Skill) AddInstallation(inst Installation) {
	s.Installations = append(s.Installations, inst)
	s.recompute()
}

func (s *Skill) recompute() {
	s.IsManaged = false
	s.RepoPath = ""
	for _, inst := range s.Installations {
		if inst.IsManaged() {
			s.IsManaged = true
			s.RepoPath = inst.RepoPath
			return
		}
	}
}

// InstallationFor returns the first installation belonging to agent in scope
func (s *Skill) InstallationFor(agent Agent, scope Scope) (Installation, bool) {
	for _, inst := range s.Installations {
		if inst.Agent == agent && inst.Scope == scope {
			return inst, true
		}
	}
	return Installation{}, false
}

// ScanError is a non-fatal failure recorded while scanning one entry
type ScanError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ScanResult aggregates everything discovered by one or more directory scans
type ScanResult struct {
	Skills map[string]*Skill `json:"skills"`
	// Order lists skill names in the order they were first discovered
	Order  []string    `json:"order"`
	Errors []ScanError `json:"errors,omitempty"`

	CacheHits   int `json:"cache_hits"`
	CacheMisses int `json:"cache_misses"`
}

// NewScanResult returns an empty aggregate
func NewScanResult() *ScanResult {
	return &ScanResult{Skills: make(map[string]*Skill)}
}

// Add folds an installation into the aggregate keyed by header name
func (r *ScanResult) Add(header Header, inst Installation) {
	skill, ok := r.Skills[header.Name]
	if !ok {
		skill = &Skill{
			Metadata:      header,
			DirectoryName: filepath.Base(inst.Path),
		}
		r.Skills[header.Name] = skill
		r.Order = append(r.Order, header.Name)
	}
	skill.AddInstallation(inst)
}

// AddError records a per-entry scan failure
func (r *ScanResult) AddError(path, message string) {
	r.Errors = append(r.Errors, ScanError{Path: path, Message: message})
}

// Ordered returns skills in discovery order
func (r *ScanResult) Ordered() []*Skill {
	skills := make([]*Skill, 0, len(r.Order))
	for _, name := range r.Order {
		skills = append(skills, r.Skills[name])
	}
	return skills
}

// Get returns a skill by header name
func (r *ScanResult) Get(name string) (*Skill, bool) {
	skill, ok := r.Skills[name]
	return skill, ok
}

// AgentDirectory is one resolved, absolute directory that an agent loads skills from
type AgentDirectory struct {
	Agent   Agent
	Scope   Scope
	Path    string
	Enabled bool
}
