package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/journal"
	"github.com/jingkaihe/skillctl/pkg/presenter"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent install, remove, adopt and sync operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		if schema, _ := cmd.Flags().GetBool("schema"); schema {
			return runHistorySchema(cmd, asJSON)
		}
		return runHistory(cmd, limit, asJSON)
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of operations to show")
	historyCmd.Flags().Bool("json", false, "Print operations as JSON")
	historyCmd.Flags().Bool("schema", false, "Show the journal location and schema version instead of operations")
}

type schemaOutput struct {
	Path          string `json:"path"`
	SchemaVersion int64  `json:"schema_version"`
}

func openJournal(cmd *cobra.Command) (*journal.Store, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	if !cfg.Journal.Enabled {
		return nil, "", nil
	}
	store, err := journal.Open(cmd.Context(), cfg.Journal.Path)
	if err != nil {
		return nil, "", err
	}
	return store, cfg.Journal.Path, nil
}

func runHistorySchema(cmd *cobra.Command, asJSON bool) error {
	store, path, err := openJournal(cmd)
	if err != nil {
		return err
	}
	if store == nil {
		presenter.Warning("The operation journal is disabled")
		return nil
	}
	defer store.Close()

	version, err := store.SchemaVersion(cmd.Context())
	if err != nil {
		return err
	}
	out := schemaOutput{Path: path, SchemaVersion: version}
	if asJSON {
		return printJSON(cmd, out)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Journal:         %s\nSchema version:  %d\n", out.Path, out.SchemaVersion)
	return nil
}

func runHistory(cmd *cobra.Command, limit int, asJSON bool) error {
	store, _, err := openJournal(cmd)
	if err != nil {
		return err
	}
	if store == nil {
		presenter.Warning("The operation journal is disabled")
		return nil
	}
	defer store.Close()

	ops, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd, ops)
	}
	if len(ops) == 0 {
		presenter.Info("No operations recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tKIND\tSKILL\tSTATUS\tDURATION\tDETAIL")
	for _, op := range ops {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			op.StartedAt.Local().Format(time.DateTime), op.Kind, op.SkillName, op.Status, duration(op), op.Detail)
	}
	return w.Flush()
}

func duration(op journal.Operation) string {
	if op.FinishedAt == nil {
		return "-"
	}
	return op.FinishedAt.Sub(op.StartedAt).Round(time.Millisecond).String()
}
