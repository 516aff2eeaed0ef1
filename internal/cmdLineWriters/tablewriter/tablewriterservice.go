package tablewriterservice

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/oss-posture/posture/internal/clients/models"
	"github.com/oss-posture/posture/internal/constants/tableHeaders"
	"github.com/oss-posture/posture/internal/extensions"
)

func DisplayReportTable(report *models.Report) {
	fmt.Printf("\n Security posture for %s: \n", color.HiCyanString(report.Repository.FullName()))

	table := newTable()
	table.Header(tableHeaders.ReportTableHeaders)

	for _, signal := range report.Signals {
		table.Append([]string{
			signal.Name,
			renderScore(signal.Value),
			extensions.TruncateString(signal.Detail, 60),
		})
	}

	table.Render()
}

func DisplayVulnerabilityTable(report *models.Report) {
	if len(report.Vulnerabilities) == 0 {
		fmt.Print(color.GreenString("\n No recorded vulnerabilities for this repository!\n"))
		return
	}

	fmt.Printf("\n Found %d recorded vulnerabilities: \n", len(report.Vulnerabilities))

	table := newTable()
	table.Header(tableHeaders.VulnerabilityTableHeaders)

	for _, row := range report.Vulnerabilities {
		table.Append([]string{
			row.ID,
			fmt.Sprintf("%d", row.Year),
			renderStatus(row.Status),
			row.Severity,
			row.Rating,
		})
	}

	table.Render()
}

func newTable() *tablewriter.Table {
	return tablewriter.NewTable(os.Stdout,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap:  tw.WrapNormal,
					MergeMode: tw.MergeHierarchical}, //wrap long detail text
				Alignment:    tw.CellAlignment{Global: tw.AlignCenter},
				ColMaxWidths: tw.CellWidth{Global: 20},
			},
		}),
	)
}

func renderScore(value string) string {
	switch value {
	case "inconclusive", "no data":
		return color.YellowString(value)
	case "0", "1", "2", "3":
		return color.RedString(value)
	case "8", "9", "10":
		return color.GreenString(value)
	default:
		return value
	}
}

func renderStatus(status string) string {
	switch status {
	case "unfixed":
		return color.RedString(status)
	case "fixed":
		return color.GreenString(status)
	default:
		return color.YellowString(status)
	}
}
