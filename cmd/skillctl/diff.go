package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/manager"
	"github.com/jingkaihe/skillctl/pkg/presenter"
)

var diffCmd = &cobra.Command{
	Use:   "diff <skill-name>",
	Short: "Compare SKILL.md across the installations of a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiff(cmd, args[0])
	},
}

func runDiff(cmd *cobra.Command, name string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	diffs, err := manager.New(a.cfg, a.scanner).Diff(ctx, name)
	if err != nil {
		return err
	}

	p := presenter.Default()
	if len(diffs) == 0 {
		p.Info(fmt.Sprintf("%s has a single installation", name))
		return nil
	}
	for _, d := range diffs {
		if d.Identical {
			p.Success(fmt.Sprintf("%s (%s) matches %s (%s)", d.Other.Path, d.Other.Agent, d.Base.Path, d.Base.Agent))
			continue
		}
		fmt.Fprint(cmd.OutOrStdout(), d.Unified)
	}
	return nil
}
