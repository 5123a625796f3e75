package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/johnwards/stagetrack/internal/export"
	"github.com/johnwards/stagetrack/internal/pipeline"
)

// ExportCmd returns the export command.
func ExportCmd(v *viper.Viper) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <stage>",
		Short: "Write every record of a stage to an xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := stageArg(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = pipeline.MustSchema(stage).Table + ".xlsx"
			}

			a, err := open(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := export.Stage(cmd.Context(), f, a.store.Records, stage); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default <table>.xlsx)")
	return cmd
}
