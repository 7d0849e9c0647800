package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/conflicts"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/jingkaihe/skillctl/pkg/skills"
)

// DoctorConfig holds the flags of the doctor command
type DoctorConfig struct {
	Verbose bool
	Pattern string
	JSON    bool
}

// NewDoctorConfig returns the doctor defaults
func NewDoctorConfig() *DoctorConfig {
	return &DoctorConfig{}
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report conflicting skill installations",
	Long: `Scan every agent directory and report skills installed inconsistently.

A skill with several unmanaged copies at different paths is an error and makes
doctor exit with status 1. Skills linked from one repository entry into several
agents are informational and only shown with --verbose.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDoctor(cmd, getDoctorConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewDoctorConfig()
	doctorCmd.Flags().BoolP("verbose", "v", defaults.Verbose, "Also show informational conflicts")
	doctorCmd.Flags().StringP("pattern", "p", defaults.Pattern, "Only check skills whose name matches this glob")
	doctorCmd.Flags().Bool("json", defaults.JSON, "Print conflicts as JSON")
}

func getDoctorConfigFromFlags(cmd *cobra.Command) *DoctorConfig {
	config := NewDoctorConfig()
	if verbose, err := cmd.Flags().GetBool("verbose"); err == nil {
		config.Verbose = verbose
	}
	if pattern, err := cmd.Flags().GetString("pattern"); err == nil {
		config.Pattern = pattern
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

func runDoctor(cmd *cobra.Command, config *DoctorConfig) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.scan(ctx)
	if config.Pattern != "" {
		if result, err = skills.FilterByPattern(result, config.Pattern); err != nil {
			return err
		}
	}

	found := conflicts.Detect(result)
	shown := conflicts.FilterDisplayable(found, config.Verbose)

	if config.JSON {
		if err := printJSON(cmd, shown); err != nil {
			return err
		}
	} else {
		p := presenter.Default()
		p.ScanErrors(result.Errors)
		if len(shown) == 0 {
			p.Success(fmt.Sprintf("No conflicts across %d skill(s)", len(result.Order)))
		}
		for _, c := range shown {
			p.Conflicts([]conflicts.Conflict{c})
			p.Info("    " + recommendation(c))
		}
	}

	if errs := conflicts.FilterErrors(found); len(errs) > 0 {
		return errors.Errorf("%d conflict(s) need attention", len(errs))
	}
	return nil
}

func recommendation(c conflicts.Conflict) string {
	switch c.Kind {
	case conflicts.DuplicateUnmanaged:
		if len(c.Locations) == 0 {
			return "adopt one copy into the repository and remove the others"
		}
		return fmt.Sprintf("run 'skillctl diff %s', then 'skillctl adopt %s --path %s' and remove the other copies",
			c.SkillName, c.SkillName, c.Locations[0].Path)
	case conflicts.DuplicateManaged:
		return fmt.Sprintf("%d agents share one repository entry; nothing to do", len(c.Locations))
	default:
		return ""
	}
}
