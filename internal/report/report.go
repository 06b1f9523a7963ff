// Package report renders batch results for the terminal.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/smazurov/procexec/internal/events"
	"github.com/smazurov/procexec/internal/jobs"
	"github.com/smazurov/procexec/internal/process"
	"github.com/smazurov/procexec/internal/stats"
)

// Row is one job's line in the results table.
type Row struct {
	Job    string
	Result *process.Result
}

// Status returns the short status label shown for a result.
func Status(res *process.Result) string {
	switch jobs.Outcome(res) {
	case events.OutcomeSuccess:
		return "ok"
	case events.OutcomeExitCode:
		return "exit " + strconv.Itoa(res.ExitCode)
	case events.OutcomeTimeout:
		return "timeout"
	case events.OutcomeKilled:
		return "killed"
	default:
		if code := process.CodeOf(res.Err); code != "" {
			return strings.ToLower(string(code))
		}
		return "error"
	}
}

func statusStyle(res *process.Result) lipgloss.Style {
	switch jobs.Outcome(res) {
	case events.OutcomeSuccess:
		return successStyle
	case events.OutcomeExitCode, events.OutcomeTimeout:
		return warningStyle
	default:
		return errorStyle
	}
}

// Results renders one row per job.
func Results(rows []Row) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("JOB", "STATUS", "EXIT", "DURATION", "STDOUT", "STDERR").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return cellStyle.Inherit(statusStyle(rows[row].Result))
			}
			return cellStyle
		})

	for _, r := range rows {
		res := r.Result
		t.Row(
			r.Job,
			Status(res),
			strconv.Itoa(res.ExitCode),
			formatDuration(res.Duration),
			strconv.Itoa(len(res.Stdout)),
			strconv.Itoa(len(res.Stderr)),
		)
	}

	return t.Render()
}

// Summary renders totals and duration percentiles.
func Summary(snap stats.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Summary"))
	b.WriteString("\n")

	line := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	passed := successStyle.Render(strconv.Itoa(snap.Succeeded))
	failed := strconv.Itoa(snap.Failed())
	if snap.Failed() > 0 {
		failed = errorStyle.Render(failed)
	}
	line("jobs", fmt.Sprintf("%d total, %s ok, %s failed", snap.Total, passed, failed))
	if snap.Failed() > 0 {
		line("failures", fmt.Sprintf("%d exit code, %d timeout, %d killed, %d error",
			snap.ExitCode, snap.TimedOut, snap.Killed, snap.Errored))
	}
	if snap.Total > 0 {
		line("duration", fmt.Sprintf("min %s  mean %s  max %s",
			formatDuration(snap.Min), formatDuration(snap.Mean), formatDuration(snap.Max)))
		line("quantiles", fmt.Sprintf("p50 %s  p90 %s  p99 %s",
			formatDuration(snap.P50), formatDuration(snap.P90), formatDuration(snap.P99)))
	}

	return b.String()
}

// Render renders the results table followed by the summary of the same results.
func Render(rows []Row) string {
	s := stats.NewSummary()
	for _, r := range rows {
		s.AddResult(r.Result)
	}
	return Results(rows) + "\n" + Summary(s.Snapshot())
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(100 * time.Microsecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
