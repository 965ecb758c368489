package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskbatch/internal/state"
	"github.com/ShayCichocki/taskbatch/pkg/models"
)

var (
	historyLimit      int
	historyShowOutput bool
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs",
	Long: `Without arguments, list the most recent runs recorded by 'taskbatch run'.
With a run ID, show the result of every task of that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list, 0 for all")
	historyCmd.Flags().BoolVar(&historyShowOutput, "output", false, "Include task output when showing a run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	path, err := historyPath(cfg)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No runs recorded. Run 'taskbatch run <tasks-file> --exec <command>' to start.")
		return nil
	}

	db, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return showRun(cmd, db, args[0])
	}

	runs, err := db.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	writeRuns(out, runs)
	return nil
}

func writeRuns(w io.Writer, runs []state.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTATUS\tSTRATEGY\tBATCHES\tTASKS\tDURATION")
	for _, r := range runs {
		dur := "-"
		if r.FinishedAt.Valid {
			dur = formatDuration(r.Duration())
		}
		strategy := string(r.Strategy)
		if r.Degraded {
			strategy += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, strategy, r.BatchCount, r.TaskCount, dur)
	}
	tw.Flush()
}

func showRun(cmd *cobra.Command, db *state.DB, id string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	r, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	results, err := db.ListResults(ctx, id)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	fmt.Fprintf(out, "%s %s\n", bold.Sprint("Run:"), r.ID)
	fmt.Fprintf(out, "  Source:   %s\n", r.Source)
	fmt.Fprintf(out, "  Strategy: %s\n", r.Strategy)
	fmt.Fprintf(out, "  Status:   %s\n", statusString(r.Status))
	fmt.Fprintf(out, "  Started:  %s\n", r.StartedAt.Local().Format(time.DateTime))
	if r.FinishedAt.Valid {
		fmt.Fprintf(out, "  Duration: %s\n", formatDuration(r.Duration()))
	}
	if r.Degraded {
		fmt.Fprintf(out, "  %s\n", color.YellowString("Final batch ran tasks with unresolved dependencies"))
	}
	fmt.Fprintln(out)

	batch := -1
	for _, res := range results {
		if res.Batch != batch {
			batch = res.Batch
			fmt.Fprintf(out, "%s\n", bold.Sprintf("Batch %d", batch+1))
		}
		line := fmt.Sprintf("  %-12s %s", res.TaskID, statusString(res.Status))
		if res.Status != models.RunStatusCanceled {
			line += fmt.Sprintf(" (%s)", formatDuration(res.Duration()))
		}
		if res.Error != "" {
			line += ": " + firstLine(res.Error, 120)
		}
		fmt.Fprintln(out, line)
		if historyShowOutput && res.Output != "" {
			fmt.Fprintln(out, color.HiBlackString("%s", res.Output))
		}
	}
	return nil
}
