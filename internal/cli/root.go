// Package cli implements the stagetrack command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/johnwards/stagetrack/internal/config"
)

// NewRootCmd returns the stagetrack command tree. Flags override
// STAGETRACK_* environment variables, which override defaults.
func NewRootCmd() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:   "stagetrack",
		Short: "Track customers through the consultation to franchise pipeline",
		Long: `stagetrack keeps one table per pipeline stage (consultations, contracts,
installations, operations, franchises) and moves records forward in
batches, copying each eligible record into the next stage and flagging
the source.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("db", "", "SQLite database path (STAGETRACK_DB)")
	root.PersistentFlags().Bool("seed", false, "seed demo data into an empty database (STAGETRACK_SEED)")
	_ = v.BindPFlag(config.KeyDB, root.PersistentFlags().Lookup("db"))
	_ = v.BindPFlag(config.KeySeed, root.PersistentFlags().Lookup("seed"))

	root.AddCommand(
		ServeCmd(v),
		MigrateCmd(v),
		StatsCmd(v),
		RunsCmd(v),
		ExportCmd(v),
		SeedCmd(v),
	)
	return root
}
