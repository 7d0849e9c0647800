package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/manager"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// InstallConfig holds the flags of the install command
type InstallConfig struct {
	Subdir string
	Agents []string
	Scope  string
}

// NewInstallConfig returns the install defaults
func NewInstallConfig() *InstallConfig {
	return &InstallConfig{Scope: skilltypes.ScopeGlobal.String()}
}

var installCmd = &cobra.Command{
	Use:   "install <path>",
	Short: "Install a skill into the repository and link it into agents",
	Long: `Copy a skill directory into the canonical repository and link it into each
target agent's skill directory. If any link cannot be created, the links made so
far and the repository copy are removed again.

Examples:
  skillctl install ./pdf-tools
  skillctl install ~/src/skills --subdir skills/pdf-tools
  skillctl install ./pdf-tools --agent claude-code,codex --scope workspace`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd, args[0], getInstallConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewInstallConfig()
	installCmd.Flags().StringP("subdir", "d", defaults.Subdir, "Skill directory inside <path>")
	installCmd.Flags().StringSliceP("agent", "a", defaults.Agents, "Agents to link (default every enabled agent)")
	installCmd.Flags().StringP("scope", "s", defaults.Scope, "Installation scope (global, workspace)")
}

func getInstallConfigFromFlags(cmd *cobra.Command) *InstallConfig {
	config := NewInstallConfig()
	if subdir, err := cmd.Flags().GetString("subdir"); err == nil {
		config.Subdir = subdir
	}
	if agents, err := cmd.Flags().GetStringSlice("agent"); err == nil {
		config.Agents = agents
	}
	if scope, err := cmd.Flags().GetString("scope"); err == nil {
		config.Scope = scope
	}
	return config
}

func runInstall(cmd *cobra.Command, src string, config *InstallConfig) error {
	ctx := cmd.Context()

	agents, err := parseAgents(config.Agents)
	if err != nil {
		return err
	}
	scope, err := skilltypes.ParseScope(config.Scope)
	if err != nil {
		return err
	}

	a, err := newManagerApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.manager.Install(ctx, src, manager.InstallOptions{
		Subdir: config.Subdir,
		Agents: agents,
		Scope:  scope,
	})
	if err != nil {
		return err
	}

	p := presenter.Default()
	p.Success(fmt.Sprintf("Installed %s into %s", result.Name, result.RepoPath))
	for _, link := range result.Linked {
		p.Info("  linked " + link)
	}
	for _, link := range result.Existing {
		p.Info("  already linked " + link)
	}
	return nil
}
