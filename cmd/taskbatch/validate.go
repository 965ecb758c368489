package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskbatch/internal/plan"
	"github.com/ShayCichocki/taskbatch/internal/schedule"
)

var validatePlanPath string

var validateCmd = &cobra.Command{
	Use:   "validate <tasks-file>",
	Short: "Check a task file and an optional execution plan",
	Long: `Lint a task file for self-dependencies, unknown dependency references,
unnamed tasks and dependency cycles.

With --plan, also check that the plan places every task exactly once and
never puts a task in the same batch as, or before, one of its dependencies.

Exits non-zero when any error is found. Warnings alone do not fail.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validatePlanPath, "plan", "", "Execution plan file to check against the tasks")
}

func runValidate(cmd *cobra.Command, args []string) error {
	tasks, err := plan.LoadTasks(args[0])
	if err != nil {
		return err
	}

	findings := schedule.Lint(tasks)

	var violations []schedule.Violation
	if validatePlanPath != "" {
		doc, err := os.ReadFile(validatePlanPath)
		if err != nil {
			return fmt.Errorf("read plan: %w", err)
		}
		_, batches, err := plan.ParseExecutionPlan(doc)
		if err != nil {
			return fmt.Errorf("parse plan: %w", err)
		}
		violations = schedule.Check(tasks, batches)
	}

	out := cmd.OutOrStdout()
	failed := writeFindings(out, findings, violations)
	if failed {
		fmt.Fprintf(out, "%s %s\n", color.RedString("✗"), "validation failed")
		return errSilent
	}

	fmt.Fprintf(out, "%s %d task(s) valid", color.GreenString("✓"), len(tasks))
	if validatePlanPath != "" {
		fmt.Fprint(out, ", plan respects every dependency")
	}
	fmt.Fprintln(out)
	return nil
}
