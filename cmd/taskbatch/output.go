package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/taskbatch/internal/plan"
	"github.com/ShayCichocki/taskbatch/internal/schedule"
	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// outputText is the human-readable output format.
const outputText = "text"

// renderResult writes p in the named format: text, yaml, json or toml.
func renderResult(w io.Writer, p *planned, format string) error {
	if format == "" || format == outputText {
		writeScheduleText(w, p)
		return nil
	}

	f, err := plan.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := plan.Marshal(p.result.Document(p.tasks), f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeScheduleText(w io.Writer, p *planned) {
	res := p.result
	s := res.Schedule
	bold := color.New(color.Bold)

	strategy := string(res.Strategy)
	if res.Requested != "" && res.Requested != res.Strategy {
		strategy = fmt.Sprintf("%s (requested %s)", res.Strategy, res.Requested)
	}
	fmt.Fprintf(w, "%s %d task(s) in %d batch(es), strategy %s\n\n", bold.Sprint("Schedule:"), s.TaskCount(), s.Len(), strategy)

	for _, b := range s.Batches {
		header := fmt.Sprintf("Batch %d", b.Index+1)
		if b.Degraded {
			fmt.Fprintf(w, "%s %s\n", color.YellowString(header), color.YellowString("(unresolved dependencies)"))
		} else {
			fmt.Fprintf(w, "%s\n", bold.Sprint(header))
		}
		for _, t := range b.Tasks {
			line := fmt.Sprintf("  %-12s %s", t.ID, t.Name)
			if deps := t.DependsOn(); len(deps) > 0 {
				line += color.HiBlackString("  <- %s", joinTaskIDs(deps, ", "))
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}

	sum := res.Summary(p.tasks)
	if len(sum.CriticalPath) > 0 {
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("Critical path:"), joinTaskIDs(sum.CriticalPath, " -> "))
	}
	fmt.Fprintf(w, "%s %s (%s)\n", bold.Sprint("Parallelism:"), potentialString(sum.Potential), sum.Explanation)

	for _, v := range res.Violations {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("rejected:"), v.String())
	}
}

func potentialString(p string) string {
	switch p {
	case models.PotentialHigh:
		return color.GreenString(p)
	case models.PotentialMedium:
		return color.CyanString(p)
	default:
		return color.YellowString(p)
	}
}

// writeFindings prints lint findings and plan violations. It returns true
// when anything should fail the command.
func writeFindings(w io.Writer, findings []schedule.Finding, violations []schedule.Violation) bool {
	for _, f := range findings {
		label := color.YellowString("warning")
		if f.Severity == schedule.SeverityError {
			label = color.RedString("error")
		}
		fmt.Fprintf(w, "%s [%s] %s\n", label, f.Kind, f.Message)
	}
	for _, v := range violations {
		fmt.Fprintf(w, "%s [plan:%s] %s\n", color.RedString("error"), v.Kind, v.String())
	}
	return schedule.HasErrors(findings) || len(violations) > 0
}

func statusString(s models.RunStatus) string {
	switch s {
	case models.RunStatusDone:
		return color.GreenString(string(s))
	case models.RunStatusFailed:
		return color.RedString(string(s))
	case models.RunStatusCanceled:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func joinTaskIDs(ids []models.TaskID, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, sep)
}

// formatDuration formats a duration compactly.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// firstLine returns the first line of s, truncated to max runes.
func firstLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
