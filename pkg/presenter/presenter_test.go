package presenter

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillctl/pkg/conflicts"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

func newTestPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var output, errorOutput bytes.Buffer
	return NewWithOptions(&output, &errorOutput, ColorNever), &output, &errorOutput
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name     string
		noColor  string
		color    string
		expected ColorMode
	}{
		{"NO_COLOR set", "1", "", ColorNever},
		{"always", "", "always", ColorAlways},
		{"force", "", "force", ColorAlways},
		{"never", "", "never", ColorNever},
		{"off", "", "off", ColorNever},
		{"auto", "", "auto", ColorAuto},
		{"default", "", "", ColorAuto},
		{"invalid", "", "invalid", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("SKILLCTL_COLOR", tt.color)
			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	p, _, errorOutput := newTestPresenter()

	p.Error(errors.New("link failed"), "install")
	assert.Equal(t, "[ERROR] install: link failed\n", errorOutput.String())

	errorOutput.Reset()
	p.Error(errors.New("link failed"), "")
	assert.Equal(t, "[ERROR] link failed\n", errorOutput.String())

	errorOutput.Reset()
	p.Error(nil, "install")
	assert.Empty(t, errorOutput.String())
}

func TestMessages(t *testing.T) {
	p, output, _ := newTestPresenter()

	p.Success("Installed pdf-tools")
	p.Warning("unmanaged copy exists")
	p.Info("3 skills")
	p.Section("Conflicts")

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	assert.Equal(t, []string{
		"✓ Installed pdf-tools",
		"⚠ unmanaged copy exists",
		"3 skills",
		"Conflicts",
		"---------",
	}, lines)
}

func TestQuietMode(t *testing.T) {
	p, output, errorOutput := newTestPresenter()
	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("done")
	p.Warning("careful")
	p.Info("fyi")
	p.Section("title")
	p.Separator()
	p.ScanErrors([]skilltypes.ScanError{{Path: "/x", Message: "broken"}})
	assert.Empty(t, output.String())

	p.Error(errors.New("still shown"), "")
	assert.Contains(t, errorOutput.String(), "still shown")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, output, _ := newTestPresenter()
			p.SetInput(strings.NewReader(tt.input))
			assert.Equal(t, tt.want, p.Confirm("Remove pdf-tools?"))
			assert.Equal(t, "Remove pdf-tools? [y/N]: ", output.String())
		})
	}
}

func TestSkills(t *testing.T) {
	p, output, _ := newTestPresenter()

	p.Skills(nil, false)
	assert.Equal(t, "No skills found\n", output.String())

	managed := &skilltypes.Skill{Metadata: skilltypes.Header{Name: "pdf-tools", Description: "Work with\nPDF files"}}
	managed.AddInstallation(skilltypes.Installation{
		Agent: skilltypes.AgentClaudeCode, Path: "/home/u/.claude/skills/pdf-tools",
		Link: skilltypes.LinkSymlink, SymlinkTarget: "/repo/pdf-tools", RepoPath: "/repo/pdf-tools",
	})
	managed.AddInstallation(skilltypes.Installation{
		Agent: skilltypes.AgentClaudeCode, Scope: skilltypes.ScopeWorkspace, Path: "/w/.claude/skills/pdf-tools",
		Link: skilltypes.LinkSymlink, SymlinkTarget: "/repo/pdf-tools", RepoPath: "/repo/pdf-tools",
	})
	physical := &skilltypes.Skill{Metadata: skilltypes.Header{Name: "notes", Description: strings.Repeat("x", 80)}}
	physical.AddInstallation(skilltypes.Installation{Agent: skilltypes.AgentCodex, Path: "/c/notes", Link: skilltypes.LinkPhysical})

	output.Reset()
	p.Skills([]*skilltypes.Skill{managed, physical}, false)
	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "NAME")
	assert.Regexp(t, `^pdf-tools\s+managed\s+claude-code\s+Work with PDF files$`, lines[2])
	assert.Regexp(t, `^notes\s+unmanaged\s+codex\s+x{57}\.\.\.$`, lines[3])

	output.Reset()
	p.Skills([]*skilltypes.Skill{managed}, true)
	assert.Contains(t, output.String(), "/home/u/.claude/skills/pdf-tools -> /repo/pdf-tools")
	assert.Contains(t, output.String(), "claude-code/workspace")
}

func TestConflicts(t *testing.T) {
	p, output, _ := newTestPresenter()

	p.Conflicts([]conflicts.Conflict{
		{
			SkillName: "notes",
			Kind:      conflicts.DuplicateUnmanaged,
			Locations: []conflicts.Location{
				{Agent: skilltypes.AgentClaudeCode, Path: "/a/notes"},
				{Agent: skilltypes.AgentCodex, Path: "/b/notes"},
			},
		},
		{
			SkillName: "pdf-tools",
			Kind:      conflicts.DuplicateManaged,
			Locations: []conflicts.Location{
				{Agent: skilltypes.AgentClaudeCode, Path: "/a/pdf-tools", IsManaged: true, RepoPath: "/repo/pdf-tools"},
			},
		},
	})

	out := output.String()
	assert.Contains(t, out, "[ERROR] notes: duplicate-unmanaged")
	assert.Contains(t, out, "codex/global  /b/notes  (unmanaged)")
	assert.Contains(t, out, "[INFO] pdf-tools: duplicate-managed")
	assert.Contains(t, out, "(managed -> /repo/pdf-tools)")
}

func TestScanErrors(t *testing.T) {
	p, output, _ := newTestPresenter()
	p.ScanErrors([]skilltypes.ScanError{{Path: "/a/broken", Message: "broken symbolic link"}})
	assert.Equal(t, "⚠ /a/broken: broken symbolic link\n", output.String())
}
