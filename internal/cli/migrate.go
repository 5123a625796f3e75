package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/pipeline"
)

// MigrateCmd returns the migrate command.
func MigrateCmd(v *viper.Viper) *cobra.Command {
	var all bool
	var actor int64

	cmd := &cobra.Command{
		Use:   "migrate <target-stage> [source-id...]",
		Short: "Move source records into the target stage",
		Long: `Move records from the stage before <target-stage> into it.

Pass source ids explicitly, or --all to migrate every record the stats
query currently reports as eligible.

Examples:
  stagetrack migrate contracts 7 12
  stagetrack migrate installations --all`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := stageArg(args[0])
			if err != nil {
				return err
			}

			ids := make([]int64, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", raw)
				}
				ids = append(ids, id)
			}
			if all && len(ids) > 0 {
				return fmt.Errorf("pass ids or --all, not both")
			}

			a, err := open(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			if all {
				set, err := a.engine.CountEligible(cmd.Context(), target)
				if err != nil {
					return err
				}
				if set.Count == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing eligible")
					return nil
				}
				ids = set.IDs
			}

			res, err := a.engine.MigrateBatch(cmd.Context(), target, ids, actor)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), res)
			if res.Outcome() == domain.OutcomeTotalFailure {
				return fmt.Errorf("no %s records were migrated", res.From)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "migrate every currently eligible record")
	cmd.Flags().Int64Var(&actor, "actor", 0, "user id recorded as creator of the new records")
	return cmd
}

func printBatch(w io.Writer, res *domain.BatchResult) {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	fmt.Fprintf(w, "%s -> %s (run %d)\n", res.From, res.To, res.RunID)
	switch res.Outcome() {
	case domain.OutcomeAllSucceeded:
		ok.Fprintf(w, "  migrated %d\n", res.SuccessCount)
	case domain.OutcomePartial:
		warn.Fprintf(w, "  migrated %d, failed %d\n", res.SuccessCount, res.ErrorCount)
	default:
		bad.Fprintf(w, "  failed %d\n", res.ErrorCount)
	}
	for _, item := range res.Items {
		if item.OK {
			fmt.Fprintf(w, "  %s %d -> %s %d\n", ok.Sprint("OK  "), item.SourceID, res.To, item.DestinationID)
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", bad.Sprint("FAIL"), item.Reason)
	}
}

// StatsCmd returns the stats command.
func StatsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [target-stage]",
		Short: "Show how many records are eligible to move into a stage",
		Long: `Show the records eligible to move into <target-stage>. Without an
argument every transition is listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var targets []domain.Stage
			if len(args) == 1 {
				target, err := stageArg(args[0])
				if err != nil {
					return err
				}
				targets = append(targets, target)
			} else {
				for _, tr := range pipeline.Transitions() {
					targets = append(targets, tr.To)
				}
			}

			a, err := open(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			w := cmd.OutOrStdout()
			for _, target := range targets {
				set, err := a.engine.CountEligible(cmd.Context(), target)
				if err != nil {
					return err
				}
				printEligible(w, set)
			}
			return nil
		},
	}
}

func printEligible(w io.Writer, set *domain.EligibleSet) {
	count := color.New(color.FgCyan, color.Bold)
	fmt.Fprintf(w, "%s -> %s: %s eligible\n", set.From, set.To, count.Sprint(set.Count))

	tr, err := pipeline.Lookup(set.To)
	if err == nil && len(tr.Categories) > 1 {
		for _, c := range tr.Categories {
			fmt.Fprintf(w, "  %s: %d\n", c, set.Breakdown[c])
		}
	}
	if len(set.IDs) > 0 {
		ids := make([]string, len(set.IDs))
		for i, id := range set.IDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		fmt.Fprintf(w, "  ids: %s\n", strings.Join(ids, " "))
	}
}

// RunsCmd returns the runs command.
func RunsCmd(v *viper.Viper) *cobra.Command {
	var limit int
	var id int64

	cmd := &cobra.Command{
		Use:   "runs [target-stage]",
		Short: "List recent migration runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target domain.Stage
			if len(args) == 1 {
				st, err := stageArg(args[0])
				if err != nil {
					return err
				}
				target = st
			}

			a, err := open(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			w := cmd.OutOrStdout()
			if id > 0 {
				run, err := a.store.Runs.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				printRun(w, run)
				return nil
			}

			runs, err := a.store.Runs.List(cmd.Context(), target, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(w, "no migration runs")
				return nil
			}
			for _, run := range runs {
				fmt.Fprintf(w, "#%d %s %s -> %s by %d: %s ok, %s failed\n",
					run.ID, run.CreatedAt, run.From, run.To, run.ActorID,
					color.GreenString("%d", run.SuccessCount),
					color.RedString("%d", run.ErrorCount),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")
	cmd.Flags().Int64Var(&id, "id", 0, "show one run with every item")
	return cmd
}

func printRun(w io.Writer, run *domain.MigrationRun) {
	fmt.Fprintf(w, "run #%d %s -> %s by %d at %s\n", run.ID, run.From, run.To, run.ActorID, run.CreatedAt)
	for _, item := range run.Items {
		if item.OK {
			fmt.Fprintf(w, "  %s %d -> %d\n", color.GreenString("ok"), item.SourceID, item.DestinationID)
			continue
		}
		fmt.Fprintf(w, "  %s %d: %s\n", color.RedString("failed"), item.SourceID, item.Reason)
	}
}
