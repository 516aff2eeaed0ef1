package tableHeaders

var ReportTableHeaders = []string{"Signal", "Score", "Detail"}

var VulnerabilityTableHeaders = []string{"CVE", "Year", "Status", "Severity", "Rating"}

var ExcelReportTableHeaders = []string{"Repository", "Signal", "Score", "Detail", "Generated At"}

var ExcelVulnerabilityTableHeaders = []string{"Repository", "CVE", "Year", "Status", "Severity", "Rating"}
