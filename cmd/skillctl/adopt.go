package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/manager"
	"github.com/jingkaihe/skillctl/pkg/presenter"
)

var adoptCmd = &cobra.Command{
	Use:   "adopt <skill-name>",
	Short: "Move an unmanaged skill into the repository",
	Long: `Move an unmanaged copy of a skill into the canonical repository and replace it
with a link. When the skill has several unmanaged copies, choose one with --path.

Examples:
  skillctl adopt pdf-tools
  skillctl adopt pdf-tools --path ~/.codex/skills/pdf-tools --link-agents`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		linkAgents, _ := cmd.Flags().GetBool("link-agents")
		return runAdopt(cmd, args[0], manager.AdoptOptions{Path: path, LinkAgents: linkAgents})
	},
}

func init() {
	adoptCmd.Flags().String("path", "", "Unmanaged installation to adopt")
	adoptCmd.Flags().Bool("link-agents", false, "Also link the skill into every other enabled agent")
}

func runAdopt(cmd *cobra.Command, name string, opts manager.AdoptOptions) error {
	ctx := cmd.Context()

	a, err := newManagerApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.manager.Adopt(ctx, name, opts)
	if err != nil {
		return err
	}

	p := presenter.Default()
	p.Success(fmt.Sprintf("Adopted %s from %s into %s", result.Name, result.From, result.RepoPath))
	for _, link := range result.Linked {
		p.Info("  linked " + link)
	}
	for _, w := range result.Warnings {
		p.Warning(w)
	}
	for _, path := range result.Remaining {
		p.Warning("unmanaged copy remains at " + path)
	}
	return nil
}
