package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/manager"
	"github.com/jingkaihe/skillctl/pkg/presenter"
)

// RemoveConfig holds the flags of the remove command
type RemoveConfig struct {
	Yes              bool
	KeepRepository   bool
	IncludeUnmanaged bool
}

// NewRemoveConfig returns the remove defaults
func NewRemoveConfig() *RemoveConfig {
	return &RemoveConfig{}
}

var removeCmd = &cobra.Command{
	Use:   "remove <skill-name>",
	Short: "Remove a skill's links and repository entry",
	Long: `Remove the managed links of a skill, then its repository entry. Unmanaged
copies are kept unless --include-unmanaged is given.

Examples:
  skillctl remove pdf-tools
  skillctl remove pdf-tools --yes --keep-repository
  skillctl remove pdf-tools --include-unmanaged`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemove(cmd, args[0], getRemoveConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewRemoveConfig()
	removeCmd.Flags().BoolP("yes", "y", defaults.Yes, "Do not ask for confirmation")
	removeCmd.Flags().Bool("keep-repository", defaults.KeepRepository, "Keep the repository entry")
	removeCmd.Flags().Bool("include-unmanaged", defaults.IncludeUnmanaged, "Also delete unmanaged copies")
}

func getRemoveConfigFromFlags(cmd *cobra.Command) *RemoveConfig {
	config := NewRemoveConfig()
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	if keep, err := cmd.Flags().GetBool("keep-repository"); err == nil {
		config.KeepRepository = keep
	}
	if include, err := cmd.Flags().GetBool("include-unmanaged"); err == nil {
		config.IncludeUnmanaged = include
	}
	return config
}

func runRemove(cmd *cobra.Command, name string, config *RemoveConfig) error {
	ctx := cmd.Context()
	p := presenter.Default()

	confirmed := config.Yes
	if !confirmed {
		question := fmt.Sprintf("Remove %s", name)
		if config.IncludeUnmanaged {
			question += " including unmanaged copies"
		}
		confirmed = p.Confirm(question + "?")
	}
	if !confirmed {
		p.Info("Aborted")
		return nil
	}

	a, err := newManagerApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.manager.Remove(ctx, name, manager.RemoveOptions{
		Confirmed:        confirmed,
		KeepRepository:   config.KeepRepository,
		IncludeUnmanaged: config.IncludeUnmanaged,
	})
	if result != nil {
		for _, path := range result.Removed {
			p.Info("  removed " + path)
		}
		for _, path := range result.Kept {
			p.Warning("kept unmanaged copy " + path)
		}
		if result.RepoKept {
			p.Info("  kept " + result.RepoPath)
		}
	}
	if err != nil {
		return err
	}
	p.Success("Removed " + name)
	return nil
}
