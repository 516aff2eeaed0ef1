package models

import "time"

// Signal is one scored security signal in a report. Value is the rendered
// result ("7", "inconclusive", "no data"), Detail optional supporting text.
type Signal struct {
	Name   string
	Value  string
	Detail string
}

// VulnerabilityRow is one resolved vulnerability rendered for tables and
// exports.
type VulnerabilityRow struct {
	ID       string
	Year     int
	Status   string
	Severity string
	Rating   string
}

type Report struct {
	Repository      RepositoryIdentity
	Signals         []Signal
	Vulnerabilities []VulnerabilityRow
	GeneratedAt     time.Time
}
