package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

func TestExtractFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "simple block",
			input:    "---\nname: test\ndescription: desc\n---\n\n# Content\n",
			expected: "name: test\ndescription: desc\n",
		},
		{
			name:     "leading whitespace ignored",
			input:    "\n\n  ---\nname: test\n---\nbody",
			expected: "name: test\n",
		},
		{
			name:     "byte order mark ignored",
			input:    "\ufeff---\nname: test\n---\n",
			expected: "name: test\n",
		},
		{
			name:     "later markers are body",
			input:    "---\nname: test\n---\nbody\n---\nmore\n---\n",
			expected: "name: test\n",
		},
		{
			name:     "crlf line endings",
			input:    "---\r\nname: test\r\n---\r\n",
			expected: "name: test\r\n",
		},
		{
			name:    "no frontmatter",
			input:   "# Just content\nNo frontmatter.",
			wantErr: true,
		},
		{
			name:    "single marker",
			input:   "---\nname: test\n# No closing marker",
			wantErr: true,
		},
		{
			name:    "marker not on its own line",
			input:   "--- name: test\n---\n",
			wantErr: true,
		},
		{
			name:    "content before marker",
			input:   "title\n---\nname: test\n---\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := ExtractFrontmatter([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, skilltypes.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, block)
		})
	}
}

func TestParseHeader(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		header, err := ParseHeader([]byte(`---
name: pdf-tools
description: "  Work with PDF files  "
version: 1.2.0
author: Jane
license: MIT
extra: ignored
---
`))
		require.NoError(t, err)
		assert.Equal(t, skilltypes.Header{
			Name:        "pdf-tools",
			Description: "Work with PDF files",
			Version:     "1.2.0",
			Author:      "Jane",
			License:     "MIT",
		}, *header)
	})

	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"missing name", "---\ndescription: d\n---\n", "name is required"},
		{"missing description", "---\nname: n\n---\n", "description is required"},
		{"blank description", "---\nname: n\ndescription: '   '\n---\n", "description is required"},
		{"path separator in name", "---\nname: a/b\ndescription: d\n---\n", "must contain only"},
		{"dot dot in name", "---\nname: a..b\ndescription: d\n---\n", "must contain only"},
		{"leading dot", "---\nname: .hidden\ndescription: d\n---\n", "must contain only"},
		{"name too long", "---\nname: " + strings.Repeat("a", MaxNameLength+1) + "\ndescription: d\n---\n", "exceeds 64"},
		{"description too long", "---\nname: n\ndescription: " + strings.Repeat("d", MaxDescriptionLength+1) + "\n---\n", "exceeds 1024"},
		{"invalid yaml", "---\nname: [unclosed\n---\n", "invalid YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader([]byte(tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, skilltypes.ErrValidation))
			assert.Contains(t, err.Error(), tt.errText)
		})
	}

	t.Run("description length counts characters", func(t *testing.T) {
		description := strings.Repeat("é", MaxDescriptionLength)
		header, err := ParseHeader([]byte("---\nname: n\ndescription: " + description + "\n---\n"))
		require.NoError(t, err)
		assert.Equal(t, description, header.Description)
	})
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	content := `---
name: test-skill
description: A test skill
---

# Test Skill

## Instructions
This is a test skill.
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))

	doc, err := ReadDocument(dir)
	require.NoError(t, err)
	assert.Equal(t, "test-skill", doc.Header.Name)
	assert.Equal(t, "Test Skill", doc.Title)
	assert.True(t, strings.HasPrefix(doc.Body, "# Test Skill"))
	assert.Contains(t, doc.Body, "This is a test skill.")
}

func TestReadDocumentWithoutTitle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("---\nname: n\ndescription: d\n---\n\n## Only a subheading\n"), 0o644))

	doc, err := ReadDocument(dir)
	require.NoError(t, err)
	assert.Empty(t, doc.Title)
}

func TestParseHeaderFileReportsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SKILL.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nname: n\n---\n"), 0o644))

	_, err := ParseHeaderFile(dir)
	require.Error(t, err)

	var pathErr *skilltypes.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, path, pathErr.Path)

	_, err = ParseHeaderFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
