package reportexportservice

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/xuri/excelize/v2"

	"github.com/oss-posture/posture/internal/clients/models"
	"github.com/oss-posture/posture/internal/constants/exportExcelOptions"
	"github.com/oss-posture/posture/internal/constants/tableHeaders"
)

const saveFileTo = "./export"
const signalSheetName = "Posture Signals"
const vulnerabilitySheetName = "Vulnerabilities"

func ExportReport(report *models.Report) error {
	if err := os.MkdirAll(saveFileTo, 0755); err != nil {
		return fmt.Errorf("error creating directory %s, %w", saveFileTo, err)
	}

	file := excelize.NewFile()
	defer file.Close()

	file.SetSheetName("Sheet1", signalSheetName)
	writeHeaders(file, signalSheetName, tableHeaders.ExcelReportTableHeaders)

	generatedAt := report.GeneratedAt.Format("2006-01-02 15:04")
	for i, signal := range report.Signals {
		rowData := []interface{}{
			report.Repository.FullName(),
			signal.Name,
			signal.Value,
			signal.Detail,
			generatedAt,
		}
		file.SetSheetRow(signalSheetName, fmt.Sprintf("A%d", i+2), &rowData)
	}

	if len(report.Vulnerabilities) > 0 {
		if _, err := file.NewSheet(vulnerabilitySheetName); err != nil {
			return fmt.Errorf("error creating vulnerability sheet, %w", err)
		}
		writeHeaders(file, vulnerabilitySheetName, tableHeaders.ExcelVulnerabilityTableHeaders)

		for i, row := range report.Vulnerabilities {
			rowData := []interface{}{
				report.Repository.FullName(),
				row.ID,
				row.Year,
				row.Status,
				row.Severity,
				row.Rating,
			}
			file.SetSheetRow(vulnerabilitySheetName, fmt.Sprintf("A%d", i+2), &rowData)
		}
	}

	fileName := fmt.Sprintf("posture_%s_%s_%s.xlsx",
		report.Repository.Owner,
		report.Repository.Name,
		time.Now().Format("2006-01-02T15-04-05"))
	fullPath := filepath.Join(saveFileTo, fileName)

	if err := file.SaveAs(fullPath); err != nil {
		return fmt.Errorf("failed to save excel to %s, %w", fullPath, err)
	}

	fmt.Printf("Your file has been saved to: %s", fullPath)

	return nil
}

func writeHeaders(file *excelize.File, sheet string, headers []string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(sheet, cell, header)
	}
}

func SelectExportReportToExcel() (string, error) {

	prompt := &survey.Select{
		Message: "Export Report",
		Options: exportExcelOptions.ExcelOptions,
	}

	var selectedIndex int
	err := survey.AskOne(prompt, &selectedIndex)
	if err != nil {
		fmt.Print("selection cancelled")
		return "", fmt.Errorf("selection error: %w", err)
	}

	return exportExcelOptions.ExcelOptions[selectedIndex], nil
}
