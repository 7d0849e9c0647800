package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/manager"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Link every repository skill into every enabled agent",
	Long: `Create the missing links from each enabled agent directory to the skills in the
canonical repository. Existing entries that are not the expected link are
reported and left alone.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		scopeName, _ := cmd.Flags().GetString("scope")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		scope, err := skilltypes.ParseScope(scopeName)
		if err != nil {
			return err
		}
		return runSync(cmd, manager.SyncOptions{Scope: scope, DryRun: dryRun})
	},
}

func init() {
	syncCmd.Flags().StringP("scope", "s", skilltypes.ScopeGlobal.String(), "Scope to sync (global, workspace)")
	syncCmd.Flags().BoolP("dry-run", "n", false, "Show what would be linked without changing anything")
}

func runSync(cmd *cobra.Command, opts manager.SyncOptions) error {
	ctx := cmd.Context()

	a, err := newManagerApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.manager.Sync(ctx, opts)
	if err != nil {
		return err
	}

	p := presenter.Default()
	verb := "linked"
	if result.DryRun {
		verb = "would link"
	}
	for _, action := range result.Created {
		p.Info(fmt.Sprintf("  %s %s for %s at %s", verb, action.Skill, action.Agent, action.Path))
	}
	for _, action := range result.Skipped {
		p.Warning(fmt.Sprintf("%s for %s: %s (%s)", action.Skill, action.Agent, action.Reason, action.Path))
	}

	summary := fmt.Sprintf("%d %s, %d already in sync, %d skipped", len(result.Created), verb, result.InSync, len(result.Skipped))
	if result.DryRun {
		p.Info(summary)
	} else {
		p.Success(summary)
	}
	return nil
}
