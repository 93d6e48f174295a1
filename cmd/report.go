package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/fgi/internal"
	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/storage/artifacts"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FD5763")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
	reportStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

var reportDir string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the summary of the last run",
	Long: `Read report.json from the output directory and print the summary of the
last run, including the result of every channel.

Example usage:
  fgi report
  fgi report --dir /var/lib/fgi/output`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printLastReport(cmd.OutOrStdout(), reportDir)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportDir, "dir", artifacts.DefaultDir, "output directory of the runs")
}

// printLastReport prints the report persisted by the previous run in dir.
func printLastReport(w io.Writer, dir string) error {
	store, err := artifacts.NewStore(dir)
	if err != nil {
		return err
	}

	report, err := store.LoadReport()
	if err != nil {
		return errors.Wrap(err, "failed to load last report")
	}
	if report == nil {
		return errors.Errorf("no run report at %s", store.Path(artifacts.ReportFile))
	}

	printReport(w, &internal.Outcome{Report: *report, Results: report.Results()}, report.DryRun)
	return nil
}

// printReport writes the per-channel summary of a run.
func printReport(w io.Writer, outcome *internal.Outcome, dryRun bool) {
	r := outcome.Report

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s  %s\n", r.RunID, r.Date)
	for _, instrument := range domain.Instruments() {
		s, ok := r.Snapshots[instrument]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%-7s %3d  appended %d\n", instrument, s.Now, r.Appended[instrument])
	}
	fmt.Fprintf(&b, "image   %s\n", r.ImagePath)

	switch {
	case dryRun:
		b.WriteString(mutedStyle.Render("dry run: nothing published"))
	case len(outcome.Results) == 0:
		b.WriteString(mutedStyle.Render("no channels configured"))
	default:
		lines := make([]string, 0, len(outcome.Results))
		for _, res := range outcome.Results {
			lines = append(lines, channelLine(res))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	fmt.Fprintln(w, reportStyle.Render(b.String()))
}

func channelLine(res domain.PublishResult) string {
	if res.OK {
		return fmt.Sprintf("%s %-8s %s", okStyle.Render("✓"), res.Channel, res.PostID)
	}
	return fmt.Sprintf("%s %-8s %s", failStyle.Render("✗"), res.Channel, res.Error())
}
