// Package skills reads SKILL.md headers and discovers skills installed in
// agent directories. Skills are packaged as directories containing a SKILL.md
// file with YAML frontmatter describing the skill.
package skills

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

const (
	frontmatterMarker = "---"

	// MaxNameLength bounds the header name, which doubles as a repository directory name
	MaxNameLength = 64
	// MaxDescriptionLength bounds the header description, counted in characters
	MaxDescriptionLength = 1024
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Document is a fully read SKILL.md file
type Document struct {
	Header skilltypes.Header
	Title  string // first level-one heading of the body, if any
	Body   string // everything after the closing frontmatter marker
}

// HeaderParser turns the raw bytes of a SKILL.md file into a validated header
type HeaderParser interface {
	Parse(content []byte) (*skilltypes.Header, error)
}

// FrontmatterParser is the default HeaderParser
type FrontmatterParser struct{}

// Parse implements HeaderParser
func (FrontmatterParser) Parse(content []byte) (*skilltypes.Header, error) {
	return ParseHeader(content)
}

// ExtractFrontmatter returns the text between the first and second "---"
// marker lines. Leading whitespace before the first marker is ignored;
// anything after the second marker is not part of the block.
func ExtractFrontmatter(content []byte) (string, error) {
	block, _, err := splitFrontmatter(content)
	return block, err
}

func splitFrontmatter(content []byte) (string, string, error) {
	s := strings.TrimPrefix(string(content), "\ufeff")
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, frontmatterMarker) {
		return "", "", skilltypes.Validation("", "missing opening '---' frontmatter marker")
	}

	lines := strings.SplitAfter(s, "\n")
	if strings.TrimRight(lines[0], " \t\r\n") != frontmatterMarker {
		return "", "", skilltypes.Validation("", "opening '---' marker must be on its own line")
	}

	offset := len(lines[0])
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r\n") == frontmatterMarker {
			block := s[len(lines[0]):offset]
			body := s[offset+len(lines[i]):]
			return block, body, nil
		}
		offset += len(lines[i])
	}

	return "", "", skilltypes.Validation("", "missing closing '---' frontmatter marker")
}

// ParseHeader extracts and validates the frontmatter of a SKILL.md file
func ParseHeader(content []byte) (*skilltypes.Header, error) {
	block, err := ExtractFrontmatter(content)
	if err != nil {
		return nil, err
	}

	var header skilltypes.Header
	if err := yaml.Unmarshal([]byte(block), &header); err != nil {
		return nil, skilltypes.NewPathError(skilltypes.ErrValidation, "", "invalid YAML frontmatter", err)
	}

	header.Name = strings.TrimSpace(header.Name)
	header.Description = strings.TrimSpace(header.Description)

	if err := ValidateName(header.Name); err != nil {
		return nil, err
	}
	if err := ValidateDescription(header.Description); err != nil {
		return nil, err
	}

	return &header, nil
}

// ValidateName checks that name is usable both as an identifier and as a single path component
func ValidateName(name string) error {
	switch {
	case name == "":
		return skilltypes.Validation("", "skill name is required in frontmatter")
	case len(name) > MaxNameLength:
		return skilltypes.Validation("", "skill name exceeds 64 characters")
	case !namePattern.MatchString(name) || strings.Contains(name, ".."):
		return skilltypes.Validation("", "skill name "+strconv.Quote(name)+" must contain only letters, digits, '.', '_' or '-'")
	}
	return nil
}

// ValidateDescription checks the 1-1024 character bound
func ValidateDescription(description string) error {
	n := utf8.RuneCountInString(description)
	if n == 0 {
		return skilltypes.Validation("", "skill description is required in frontmatter")
	}
	if n > MaxDescriptionLength {
		return skilltypes.Validation("", "skill description exceeds 1024 characters")
	}
	return nil
}

// ParseHeaderFile reads and parses dir/SKILL.md
func ParseHeaderFile(dir string) (*skilltypes.Header, error) {
	path := filepath.Join(dir, skilltypes.HeaderFileName)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}
	header, err := ParseHeader(content)
	if err != nil {
		return nil, withPath(err, path)
	}
	return header, nil
}

// ReadDocument reads dir/SKILL.md and returns its header, body and title
func ReadDocument(dir string) (*Document, error) {
	path := filepath.Join(dir, skilltypes.HeaderFileName)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	header, err := ParseHeader(content)
	if err != nil {
		return nil, withPath(err, path)
	}

	_, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, withPath(err, path)
	}

	return &Document{
		Header: *header,
		Title:  extractTitle(content),
		Body:   strings.TrimLeft(body, "\r\n"),
	}, nil
}

// extractTitle returns the text of the first level-one heading. The meta
// extension consumes the frontmatter so its closing marker is not read as a
// setext underline.
func extractTitle(content []byte) string {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	doc := md.Parser().Parse(text.NewReader(content))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		collectText(heading, content, &buf)
		title = strings.TrimSpace(buf.String())
		return ast.WalkStop, nil
	})
	return title
}

func collectText(n ast.Node, source []byte, buf *bytes.Buffer) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(source))
			if v.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(v.Value)
		default:
			collectText(c, source, buf)
		}
	}
}

func withPath(err error, path string) error {
	var pathErr *skilltypes.PathError
	if errors.As(err, &pathErr) && pathErr.Path == "" {
		pathErr.Path = path
	}
	return err
}
