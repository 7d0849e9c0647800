package main

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/jingkaihe/skillctl/pkg/skills"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// ListConfig holds the flags of the list command
type ListConfig struct {
	Pattern string
	Agents  []string
	JSON    bool
	Long    bool
}

// NewListConfig returns the list defaults
func NewListConfig() *ListConfig {
	return &ListConfig{}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed skills",
	Long: `List every skill found in the configured agent directories, merged by name.

Examples:
  skillctl list
  skillctl list --pattern 'pdf-*' --long
  skillctl list --agent codex --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runList(cmd, getListConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().StringP("pattern", "p", defaults.Pattern, "Only list skills whose name matches this glob")
	listCmd.Flags().StringSliceP("agent", "a", defaults.Agents, "Only list skills installed for these agents")
	listCmd.Flags().Bool("json", defaults.JSON, "Print the scan result as JSON")
	listCmd.Flags().BoolP("long", "l", defaults.Long, "Show every installation")
}

func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()
	if pattern, err := cmd.Flags().GetString("pattern"); err == nil {
		config.Pattern = pattern
	}
	if agents, err := cmd.Flags().GetStringSlice("agent"); err == nil {
		config.Agents = agents
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	if long, err := cmd.Flags().GetBool("long"); err == nil {
		config.Long = long
	}
	return config
}

func runList(cmd *cobra.Command, config *ListConfig) error {
	ctx := cmd.Context()

	agents, err := parseAgents(config.Agents)
	if err != nil {
		return err
	}

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
	selected := filterByAgents(result, agents)

	if config.JSON {
		return printJSON(cmd, listOutput{Skills: selected, Errors: result.Errors})
	}

	presenter.Default().Skills(selected, config.Long)
	presenter.Default().ScanErrors(result.Errors)
	return nil
}

type listOutput struct {
	Skills []*skilltypes.Skill    `json:"skills"`
	Errors []skilltypes.ScanError `json:"errors,omitempty"`
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
