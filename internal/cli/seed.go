package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/johnwards/stagetrack/internal/api/admin"
	"github.com/johnwards/stagetrack/internal/seed"
)

// SeedCmd returns the seed command.
func SeedCmd(v *viper.Viper) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo records into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			if reset {
				if err := admin.ResetData(cmd.Context(), a.store); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "database reset and seeded")
				return nil
			}
			if err := seed.Seed(cmd.Context(), a.store.Records); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seeded")
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "delete every record and the run log first")
	return cmd
}
