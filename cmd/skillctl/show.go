package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/conflicts"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/jingkaihe/skillctl/pkg/skills"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

var showCmd = &cobra.Command{
	Use:   "show <skill-name>",
	Short: "Show one skill and where it is installed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return runShow(cmd, args[0], asJSON)
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "Print the skill as JSON")
}

type showOutput struct {
	Skill     *skilltypes.Skill    `json:"skill"`
	Title     string               `json:"title,omitempty"`
	Conflicts []conflicts.Conflict `json:"conflicts,omitempty"`
}

func runShow(cmd *cobra.Command, name string, asJSON bool) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.scan(ctx)
	skill, ok := result.Get(name)
	if !ok {
		return skilltypes.NewPathError(skilltypes.ErrDirectoryNotFound, name, "skill not found", nil)
	}

	out := showOutput{Skill: skill}
	if doc, err := skills.ReadDocument(skill.Installations[0].Path); err == nil {
		out.Title = doc.Title
	} else {
		logger.G(ctx).WithError(err).WithField(logger.FieldSkill, name).Debug("failed to read skill document")
	}
	for _, c := range conflicts.Detect(result) {
		if c.SkillName == name {
			out.Conflicts = append(out.Conflicts, c)
		}
	}

	if asJSON {
		return printJSON(cmd, out)
	}

	writeSkillDetails(cmd.OutOrStdout(), out)
	if len(out.Conflicts) > 0 {
		presenter.Default().Conflicts(out.Conflicts)
	}
	return nil
}

func writeSkillDetails(w io.Writer, out showOutput) {
	skill := out.Skill
	fmt.Fprintf(w, "Name:        %s\n", skill.Metadata.Name)
	if out.Title != "" {
		fmt.Fprintf(w, "Title:       %s\n", out.Title)
	}
	fmt.Fprintf(w, "Description: %s\n", skill.Metadata.Description)
	if skill.Metadata.Version != "" {
		fmt.Fprintf(w, "Version:     %s\n", skill.Metadata.Version)
	}
	if skill.Metadata.Author != "" {
		fmt.Fprintf(w, "Author:      %s\n", skill.Metadata.Author)
	}
	if skill.Metadata.License != "" {
		fmt.Fprintf(w, "License:     %s\n", skill.Metadata.License)
	}
	if skill.IsManaged {
		fmt.Fprintf(w, "Repository:  %s\n", skill.RepoPath)
	} else {
		fmt.Fprintf(w, "Repository:  (unmanaged)\n")
	}

	fmt.Fprintf(w, "\nInstallations:\n")
	for _, inst := range skill.Installations {
		line := fmt.Sprintf("  %-12s %-9s %-8s %s", inst.Agent, inst.Scope, inst.Link, inst.Path)
		if inst.IsSymlink() {
			line += " -> " + inst.SymlinkTarget
		}
		fmt.Fprintln(w, line)
	}
}
