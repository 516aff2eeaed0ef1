package cmd

import (
	"github.com/spf13/cobra"

	tablewriterservice "github.com/oss-posture/posture/internal/cmdLineWriters/tablewriter"
	"github.com/oss-posture/posture/internal/constants/exportExcelOptions"
	reportexportservice "github.com/oss-posture/posture/internal/services/reportExportService"
	scoreservice "github.com/oss-posture/posture/internal/services/scoreService"
)

var scoreCmd = &cobra.Command{
	Use:   "score [repository-url]",
	Short: "score a repository's security posture",
	Long: `score analyzes the given repository and reports a table of security
	       signals: vulnerability history, fix timeliness, workflow hygiene,
	       branch protection, static analysis, packaging and more.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

var exportFlag bool

var scoreService scoreservice.ScoreService

// cant DI directly into the command so we use a setter
func SetScoreService(service scoreservice.ScoreService) {
	scoreService = service
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	report, err := scoreService.Score(ctx, args[0])
	if err != nil {
		return err
	}

	tablewriterservice.DisplayReportTable(report)
	tablewriterservice.DisplayVulnerabilityTable(report)

	if exportFlag {
		return reportexportservice.ExportReport(report)
	}

	choice, err := reportexportservice.SelectExportReportToExcel()
	if err != nil {
		return err
	}

	if choice == exportExcelOptions.Yes {
		if err := reportexportservice.ExportReport(report); err != nil {
			return err
		}
	}

	return nil
}

func init() {
	scoreCmd.Flags().BoolVarP(&exportFlag, "export", "e", false, "Export the report to excel without prompting")

	rootCmd.AddCommand(scoreCmd)
}
