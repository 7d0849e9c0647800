package conflicts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillctl/pkg/skills"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

func physical(agent skilltypes.Agent, path string) skilltypes.Installation {
	return skilltypes.Installation{Agent: agent, Path: path, Link: skilltypes.LinkPhysical}
}

func managedLink(agent skilltypes.Agent, path, repoPath string) skilltypes.Installation {
	return skilltypes.Installation{
		Agent:         agent,
		Path:          path,
		Link:          skilltypes.LinkSymlink,
		SymlinkTarget: repoPath,
		RepoPath:      repoPath,
	}
}

func resultWith(name string, insts ...skilltypes.Installation) *skilltypes.ScanResult {
	result := skilltypes.NewScanResult()
	for _, inst := range insts {
		result.Add(skilltypes.Header{Name: name, Description: "d"}, inst)
	}
	return result
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		insts    []skilltypes.Installation
		expected []Kind
	}{
		{
			name:  "single installation",
			insts: []skilltypes.Installation{physical(skilltypes.AgentClaudeCode, "/a/x")},
		},
		{
			name: "two unmanaged at distinct paths",
			insts: []skilltypes.Installation{
				physical(skilltypes.AgentClaudeCode, "/a/x"),
				physical(skilltypes.AgentCodex, "/b/x"),
			},
			expected: []Kind{DuplicateUnmanaged},
		},
		{
			name: "two unmanaged at the same path",
			insts: []skilltypes.Installation{
				physical(skilltypes.AgentClaudeCode, "/a/x"),
				physical(skilltypes.AgentCodex, "/a/./x"),
			},
		},
		{
			name: "two managed to the same repository entry",
			insts: []skilltypes.Installation{
				managedLink(skilltypes.AgentClaudeCode, "/a/x", "/repo/x"),
				managedLink(skilltypes.AgentCodex, "/b/x", "/repo/x"),
			},
			expected: []Kind{DuplicateManaged},
		},
		{
			name: "two managed to different repository entries",
			insts: []skilltypes.Installation{
				managedLink(skilltypes.AgentClaudeCode, "/a/x", "/repo/x"),
				managedLink(skilltypes.AgentCodex, "/b/x", "/repo/x-old"),
			},
		},
		{
			name: "one managed and one unmanaged",
			insts: []skilltypes.Installation{
				managedLink(skilltypes.AgentClaudeCode, "/a/x", "/repo/x"),
				physical(skilltypes.AgentCodex, "/b/x"),
			},
		},
		{
			name: "unmanaged symlink counts as unmanaged",
			insts: []skilltypes.Installation{
				{Agent: skilltypes.AgentClaudeCode, Path: "/a/x", Link: skilltypes.LinkSymlink, SymlinkTarget: "/elsewhere/x"},
				physical(skilltypes.AgentCodex, "/b/x"),
			},
			expected: []Kind{DuplicateUnmanaged},
		},
		{
			name: "both kinds at once",
			insts: []skilltypes.Installation{
				physical(skilltypes.AgentClaudeCode, "/a/x"),
				managedLink(skilltypes.AgentCodex, "/b/x", "/repo/x"),
				physical(skilltypes.AgentCursor, "/c/x"),
				managedLink(skilltypes.AgentKodelet, "/d/x", "/repo/x"),
			},
			expected: []Kind{DuplicateUnmanaged, DuplicateManaged},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := Detect(resultWith("x", tt.insts...))
			var kinds []Kind
			for _, c := range conflicts {
				assert.Equal(t, "x", c.SkillName)
				kinds = append(kinds, c.Kind)
			}
			assert.Equal(t, tt.expected, kinds)
		})
	}
}

func TestDetectLocations(t *testing.T) {
	result := resultWith("x",
		physical(skilltypes.AgentCursor, "/c/x"),
		managedLink(skilltypes.AgentCodex, "/b/x", "/repo/x"),
		physical(skilltypes.AgentClaudeCode, "/a/x"),
		managedLink(skilltypes.AgentKodelet, "/d/x", "/repo/x"),
	)

	conflicts := Detect(result)
	require.Len(t, conflicts, 2)

	unmanaged := conflicts[0]
	assert.True(t, unmanaged.IsError())
	assert.Equal(t, []Location{
		{Agent: skilltypes.AgentCursor, Path: "/c/x"},
		{Agent: skilltypes.AgentClaudeCode, Path: "/a/x"},
	}, unmanaged.Locations)

	managed := conflicts[1]
	assert.False(t, managed.IsError())
	assert.Equal(t, []Location{
		{Agent: skilltypes.AgentCodex, Path: "/b/x", IsManaged: true, RepoPath: "/repo/x"},
		{Agent: skilltypes.AgentKodelet, Path: "/d/x", IsManaged: true, RepoPath: "/repo/x"},
	}, managed.Locations)
}

func TestDetectIsDeterministic(t *testing.T) {
	result := skilltypes.NewScanResult()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		result.Add(skilltypes.Header{Name: name, Description: "d"}, physical(skilltypes.AgentClaudeCode, "/a/"+name))
		result.Add(skilltypes.Header{Name: name, Description: "d"}, physical(skilltypes.AgentCodex, "/b/"+name))
	}

	first := Detect(result)
	require.Len(t, first, 3)
	assert.Equal(t, "zeta", first[0].SkillName)
	assert.Equal(t, "alpha", first[1].SkillName)
	assert.Equal(t, "mid", first[2].SkillName)
	assert.Equal(t, first, Detect(result))
}

func TestDetectNil(t *testing.T) {
	assert.Empty(t, Detect(nil))
	assert.Empty(t, Detect(skilltypes.NewScanResult()))
}

func TestFilters(t *testing.T) {
	conflicts := []Conflict{
		{SkillName: "a", Kind: DuplicateManaged},
		{SkillName: "b", Kind: DuplicateUnmanaged},
		{SkillName: "c", Kind: DuplicateManaged},
	}

	errs := FilterErrors(conflicts)
	require.Len(t, errs, 1)
	assert.Equal(t, "b", errs[0].SkillName)

	assert.Equal(t, errs, FilterDisplayable(conflicts, false))
	assert.Equal(t, conflicts, FilterDisplayable(conflicts, true))
	assert.True(t, HasErrors(conflicts))
	assert.False(t, HasErrors(conflicts[:1]))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "duplicate-unmanaged", DuplicateUnmanaged.String())
	assert.Equal(t, "duplicate-managed", DuplicateManaged.String())
	assert.True(t, DuplicateUnmanaged.IsError())
	assert.False(t, DuplicateManaged.IsError())
}

func writeSkill(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "---\nname: " + name + "\ndescription: " + name + " skill\n---\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
}

func TestScanThenDetect(t *testing.T) {
	tmpDir := t.TempDir()
	agentA := filepath.Join(tmpDir, "agent-a")
	agentB := filepath.Join(tmpDir, "agent-b")
	repo := filepath.Join(tmpDir, "repo")
	writeSkill(t, filepath.Join(agentA, "x"), "x")
	writeSkill(t, filepath.Join(agentB, "x"), "x")

	writeSkill(t, filepath.Join(repo, "y"), "y")
	require.NoError(t, os.Symlink(filepath.Join(repo, "y"), filepath.Join(agentA, "y")))
	require.NoError(t, os.Symlink(filepath.Join(repo, "y"), filepath.Join(agentB, "y")))

	scanner, err := skills.NewScanner(skills.WithRepository(repo))
	require.NoError(t, err)
	result := scanner.ScanAll(context.Background(), []skilltypes.AgentDirectory{
		{Agent: skilltypes.AgentClaudeCode, Scope: skilltypes.ScopeGlobal, Path: agentA, Enabled: true},
		{Agent: skilltypes.AgentCodex, Scope: skilltypes.ScopeGlobal, Path: agentB, Enabled: true},
	})

	x, ok := result.Get("x")
	require.True(t, ok)
	require.Len(t, x.Installations, 2)

	conflicts := Detect(result)
	require.Len(t, conflicts, 2)

	assert.Equal(t, "x", conflicts[0].SkillName)
	assert.Equal(t, DuplicateUnmanaged, conflicts[0].Kind)
	require.Len(t, conflicts[0].Locations, 2)
	assert.Equal(t, filepath.Join(agentA, "x"), conflicts[0].Locations[0].Path)
	assert.Equal(t, skilltypes.AgentClaudeCode, conflicts[0].Locations[0].Agent)
	assert.Equal(t, filepath.Join(agentB, "x"), conflicts[0].Locations[1].Path)
	assert.Equal(t, skilltypes.AgentCodex, conflicts[0].Locations[1].Agent)

	assert.Equal(t, "y", conflicts[1].SkillName)
	assert.Equal(t, DuplicateManaged, conflicts[1].Kind)
	assert.False(t, conflicts[1].IsError())

	assert.Len(t, FilterErrors(conflicts), 1)
}
