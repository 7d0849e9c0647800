package manager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"

	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// FileDiff compares the SKILL.md of one installation against the first one
type FileDiff struct {
	Base      skilltypes.Installation `json:"base"`
	Other     skilltypes.Installation `json:"other"`
	Identical bool                    `json:"identical"`
	Unified   string                  `json:"unified,omitempty"`
}

// Diff returns one FileDiff per installation after the first. Installations
// that share a path with the first one are skipped.
func (m *Manager) Diff(ctx context.Context, name string) ([]FileDiff, error) {
	skill, _, err := m.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	base := skill.Installations[0]
	baseContent, err := readHeaderFile(base.Path)
	if err != nil {
		return nil, err
	}

	var diffs []FileDiff
	for _, other := range skill.Installations[1:] {
		if filepath.Clean(other.Path) == filepath.Clean(base.Path) {
			continue
		}
		content, err := readHeaderFile(other.Path)
		if err != nil {
			return nil, err
		}

		d := FileDiff{Base: base, Other: other, Identical: content == baseContent}
		if !d.Identical {
			d.Unified = udiff.Unified(
				filepath.Join(base.Path, skilltypes.HeaderFileName),
				filepath.Join(other.Path, skilltypes.HeaderFileName),
				baseContent, content)
		}
		diffs = append(diffs, d)
	}
	return diffs, nil
}

func readHeaderFile(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, skilltypes.HeaderFileName))
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", skilltypes.HeaderFileName)
	}
	return string(data), nil
}
