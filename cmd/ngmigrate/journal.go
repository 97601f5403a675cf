package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gerunddev/ngmigrate/internal/app"
	"github.com/gerunddev/ngmigrate/internal/journal"
	"github.com/gerunddev/ngmigrate/internal/workflow"
)

func journalCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal [run-id]",
		Short: "Show recorded wizard runs and their backend writes",
		Long: `Without arguments, list the most recent wizard runs. With a run ID, print
every recorded stage change, upload, applied fix and created project of that
run, including the backup the backend made for each write.

Examples:
  ngmigrate journal
  ngmigrate journal --limit 50
  ngmigrate journal 6f1c2a9e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit cannot be negative")
			}

			a, err := appFactory(app.Config{})
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return printRun(cmd.OutOrStdout(), a, args[0])
			}
			return printRuns(cmd.OutOrStdout(), a, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func printRuns(out io.Writer, a App, limit int) error {
	runs, err := a.Runs(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs")
		return nil
	}

	for _, r := range runs {
		project := r.ProjectID
		if project == "" {
			project = "-"
		}
		fmt.Fprintf(out, "%s  %-9s  %-12s  %3d entries  %s\n",
			r.ID, r.Variant, humanize.Time(r.StartedAt), r.EntryCount, project)
	}
	return nil
}

func printRun(out io.Writer, a App, runID string) error {
	run, entries, err := a.RunEntries(runID)
	if errors.Is(err, journal.ErrNotFound) {
		return fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Variant)
	if run.ProjectID != "" {
		fmt.Fprintf(out, "Project: %s\n", run.ProjectID)
	}
	fmt.Fprintf(out, "Started: %s\n\n", run.StartedAt.Format("2006-01-02 15:04:05"))

	for _, e := range entries {
		fmt.Fprintf(out, "  %s %s %s\n", e.CreatedAt.Format("15:04:05"), entryIcon(e.Kind), describeEntry(e))
	}
	return nil
}

func entryIcon(kind string) string {
	switch kind {
	case workflow.RecordUpload:
		return "[^]"
	case workflow.RecordApply:
		return "[+]"
	case workflow.RecordCreate:
		return "[*]"
	default:
		return "[>]"
	}
}

func describeEntry(e *journal.Entry) string {
	var s string
	switch e.Kind {
	case workflow.RecordStage:
		s = "stage " + e.Detail
	case workflow.RecordUpload:
		s = fmt.Sprintf("uploaded %s as %s", e.Detail, e.Key)
	case workflow.RecordApply:
		s = "applied fix to " + e.Detail
	case workflow.RecordCreate:
		s = fmt.Sprintf("created %s (%s)", e.Key, e.Detail)
	default:
		s = e.Kind + " " + e.Key
	}
	if e.Backup != "" {
		s += "  backup: " + e.Backup
	}
	return s
}
