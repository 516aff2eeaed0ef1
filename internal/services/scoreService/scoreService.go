package scoreservice

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/oss-posture/posture/internal/clients"
	"github.com/oss-posture/posture/internal/clients/models"
	"github.com/oss-posture/posture/internal/scoring"
	"github.com/oss-posture/posture/internal/vulnerability"
	"github.com/oss-posture/posture/internal/workflow"
)

const workflowDir = ".github/workflows/"

type ScoreService interface {
	Score(ctx context.Context, repositoryUrl string) (*models.Report, error)
}

type PostureScorer struct {
	githubClient clients.GithubClientService
	resolver     *vulnerability.Resolver
}

func NewScoreService(githubClient clients.GithubClientService, resolver *vulnerability.Resolver) PostureScorer {
	return PostureScorer{
		githubClient: githubClient,
		resolver:     resolver,
	}
}

// workflowSet is everything the workflow driven signals need: parsed
// evidence, the raw sources, and the per file run history.
type workflowSet struct {
	evidence []scoring.WorkflowEvidence
	raw      []string
}

// Score assembles the full posture report for one repository. Failing to
// identify the repository aborts; any other collaborator failure degrades
// its dependent signals to inconclusive instead.
func (s *PostureScorer) Score(ctx context.Context, repositoryUrl string) (*models.Report, error) {
	repo, err := s.githubClient.Repository(ctx, repositoryUrl)
	if err != nil {
		return nil, fmt.Errorf("resolving repository: %w", err)
	}

	if repo.Archived {
		fmt.Print(color.YellowString("\nRepository is archived, results reflect its frozen state\n"))
	}

	var (
		records    []vulnerability.Record
		recordsErr error

		files    []string
		filesErr error

		workflows    workflowSet
		workflowsErr error

		protections    []*scoring.BranchProtection
		protectionsErr error

		checkRuns    [][]scoring.CheckRun
		checkRunsErr error
	)

	var group errgroup.Group

	group.Go(func() error {
		records, recordsErr = s.resolver.Resolve(ctx, repo)
		return nil
	})

	group.Go(func() error {
		files, filesErr = s.githubClient.ListFiles(ctx, repo)
		if filesErr != nil {
			workflowsErr = filesErr
			return nil
		}
		workflows, workflowsErr = s.collectWorkflows(ctx, repo, files)
		return nil
	})

	group.Go(func() error {
		protections, protectionsErr = s.collectProtections(ctx, repo)
		return nil
	})

	group.Go(func() error {
		checkRuns, checkRunsErr = s.githubClient.CheckRunsForRecentCommits(ctx, repo)
		return nil
	})

	_ = group.Wait()

	report := &models.Report{
		Repository:  repo,
		GeneratedAt: time.Now(),
	}

	if recordsErr == nil {
		report.Vulnerabilities = vulnerabilityRows(records)
	}

	report.Signals = append(report.Signals, s.vulnerabilitySignals(records, recordsErr)...)
	report.Signals = append(report.Signals, s.workflowSignals(workflows, workflowsErr)...)
	report.Signals = append(report.Signals, s.protectionSignal(protections, protectionsErr))
	report.Signals = append(report.Signals, s.sastSignal(checkRuns, checkRunsErr, workflows, workflowsErr))
	report.Signals = append(report.Signals, s.fileSignals(files, filesErr)...)

	return report, nil
}

// collectWorkflows parses every workflow file on the default branch and
// attaches its successful run count. A file that fails to fetch or parse
// stays in the set with a nil definition so dependent scorers fail closed.
func (s *PostureScorer) collectWorkflows(ctx context.Context, repo models.RepositoryIdentity, files []string) (workflowSet, error) {
	var set workflowSet

	for _, filePath := range files {
		if !strings.HasPrefix(filePath, workflowDir) {
			continue
		}
		ext := path.Ext(filePath)
		if ext != ".yml" && ext != ".yaml" {
			continue
		}

		fileName := path.Base(filePath)
		entry := scoring.WorkflowEvidence{FileName: fileName}

		content, err := s.githubClient.FileContent(ctx, repo, filePath)
		if err == nil {
			set.raw = append(set.raw, string(content))
			if definition, parseErr := workflow.Parse(content); parseErr == nil {
				entry.Definition = definition
			}
		}

		if runs, err := s.githubClient.WorkflowSuccessfulRuns(ctx, repo, fileName); err == nil {
			entry.SuccessfulRuns = runs
		}

		set.evidence = append(set.evidence, entry)
	}

	return set, nil
}

// collectProtections gathers protection settings for the default branch,
// every development branch and every branch recent releases were cut from.
func (s *PostureScorer) collectProtections(ctx context.Context, repo models.RepositoryIdentity) ([]*scoring.BranchProtection, error) {
	candidates := []string{repo.DefaultBranch}
	if branches, err := s.githubClient.Branches(ctx, repo); err == nil {
		candidates = append(candidates, branches...)
	}
	if targets, err := s.githubClient.ReleaseTargets(ctx, repo); err == nil {
		candidates = append(candidates, targets...)
	}

	seen := make(map[string]struct{}, len(candidates))
	var protections []*scoring.BranchProtection

	for _, branch := range candidates {
		if branch == "" {
			continue
		}
		if _, dup := seen[branch]; dup {
			continue
		}
		seen[branch] = struct{}{}

		protection, err := s.githubClient.BranchProtection(ctx, repo, branch)
		if err != nil {
			return nil, err
		}
		protections = append(protections, protection)
	}

	return protections, nil
}

func (s *PostureScorer) vulnerabilitySignals(records []vulnerability.Record, err error) []models.Signal {
	if err != nil {
		detail := fmt.Sprintf("vulnerability lookup failed: %v", err)
		return []models.Signal{
			{Name: "Vulnerability History", Value: scoring.Inconclusive.String(), Detail: detail},
			{Name: "Unfixed Vulnerabilities", Value: scoring.Inconclusive.String(), Detail: detail},
			{Name: "Mean Severity", Value: scoring.Inconclusive.String(), Detail: detail},
			{Name: "Fix Timeliness", Value: scoring.Inconclusive.String(), Detail: detail},
		}
	}

	unfixed := vulnerability.Unfixed(records)

	signals := []models.Signal{
		{
			Name:  "Vulnerability History",
			Value: fmt.Sprintf("%d", len(records)),
		},
		{
			Name:   "Unfixed Vulnerabilities",
			Value:  fmt.Sprintf("%d", len(unfixed)),
			Detail: joinIdentifiers(unfixed),
		},
	}

	signals = append(signals, severitySignal("Mean Severity", records))
	signals = append(signals, timelinessSignal(records))

	return signals
}

func severitySignal(name string, records []vulnerability.Record) models.Signal {
	mean, err := vulnerability.MeanSeverity(records)
	if err != nil {
		return models.Signal{Name: name, Value: "no data", Detail: "no record carries a CVSS score"}
	}

	return models.Signal{
		Name:   name,
		Value:  fmt.Sprintf("%.2f", mean),
		Detail: vulnerability.SeverityRating(mean),
	}
}

func timelinessSignal(records []vulnerability.Record) models.Signal {
	gap, err := vulnerability.MeanFixGap(records, time.Now())
	if err != nil {
		return models.Signal{Name: "Fix Timeliness", Value: "no data", Detail: "no fixed vulnerabilities to measure"}
	}

	return models.Signal{
		Name:   "Fix Timeliness",
		Value:  fmt.Sprintf("%.2f", gap),
		Detail: "mean days from report to fix",
	}
}

func (s *PostureScorer) workflowSignals(workflows workflowSet, err error) []models.Signal {
	if err != nil || len(workflows.evidence) == 0 {
		detail := "no workflow files on the default branch"
		if err != nil {
			detail = fmt.Sprintf("workflow collection failed: %v", err)
		}
		return []models.Signal{
			{Name: "Untrusted Checkout", Value: scoring.Inconclusive.String(), Detail: detail},
			{Name: "Script Injection", Value: scoring.Inconclusive.String(), Detail: detail},
			{Name: "Token Permissions", Value: scoring.Inconclusive.String(), Detail: detail},
			{Name: "Packaging", Value: scoring.Inconclusive.String(), Detail: detail},
		}
	}

	var checkoutOffender, injectionDetail string
	definitions := make([]*workflow.Definition, 0, len(workflows.evidence))

	for _, entry := range workflows.evidence {
		definitions = append(definitions, entry.Definition)

		if checkoutOffender == "" && workflow.HasUntrustedCheckout(entry.Definition) {
			checkoutOffender = entry.FileName
		}
		if injectionDetail == "" {
			if expression, found := workflow.FirstInjection(entry.Definition); found {
				injectionDetail = entry.FileName
				if expression != "" {
					injectionDetail = fmt.Sprintf("%s interpolates %s", entry.FileName, expression)
				}
			}
		}
	}

	signals := []models.Signal{
		booleanSignal("Untrusted Checkout", checkoutOffender == "", checkoutOffender),
		booleanSignal("Script Injection", injectionDetail == "", injectionDetail),
		{
			Name:  "Token Permissions",
			Value: scoring.TokenPermissionScore(definitions).String(),
		},
		{
			Name:  "Packaging",
			Value: scoring.PackagingScore(workflows.evidence).String(),
		},
	}

	return signals
}

// booleanSignal renders a pass/fail workflow check as its score.
func booleanSignal(name string, clean bool, detail string) models.Signal {
	value := scoring.MaxScore
	if !clean {
		value = scoring.MinScore
	}

	return models.Signal{Name: name, Value: value.String(), Detail: detail}
}

func (s *PostureScorer) protectionSignal(protections []*scoring.BranchProtection, err error) models.Signal {
	if err != nil {
		return models.Signal{
			Name:   "Branch Protection",
			Value:  scoring.Inconclusive.String(),
			Detail: fmt.Sprintf("protection lookup failed: %v", err),
		}
	}

	return models.Signal{
		Name:   "Branch Protection",
		Value:  scoring.BranchProtectionScore(protections).String(),
		Detail: fmt.Sprintf("%d branches checked", len(protections)),
	}
}

func (s *PostureScorer) sastSignal(checkRuns [][]scoring.CheckRun, checkErr error,
	workflows workflowSet, workflowsErr error) models.Signal {
	sast := scoring.Inconclusive
	if checkErr == nil {
		sast = scoring.SASTScoreFromCheckRuns(checkRuns)
	}

	codeql := scoring.Inconclusive
	if workflowsErr == nil {
		codeql = scoring.CodeQLScoreFromWorkflows(workflows.raw)
	}

	return models.Signal{
		Name:  "SAST",
		Value: scoring.CombineSASTScores(sast, codeql).String(),
	}
}

func (s *PostureScorer) fileSignals(files []string, err error) []models.Signal {
	if err != nil {
		detail := fmt.Sprintf("file listing failed: %v", err)
		return []models.Signal{
			{Name: "Fuzzing", Value: scoring.Inconclusive.String(), Detail: detail},
			{Name: "Dependency Update Tool", Value: scoring.Inconclusive.String(), Detail: detail},
			{Name: "Binary Artifacts", Value: scoring.Inconclusive.String(), Detail: detail},
		}
	}

	return []models.Signal{
		{Name: "Fuzzing", Value: scoring.FuzzingScore(files).String()},
		{Name: "Dependency Update Tool", Value: scoring.DependencyUpdateToolScore(files).String()},
		{Name: "Binary Artifacts", Value: scoring.BinaryArtifactScore(files).String()},
	}
}

func vulnerabilityRows(records []vulnerability.Record) []models.VulnerabilityRow {
	rows := make([]models.VulnerabilityRow, 0, len(records))
	for _, record := range records {
		row := models.VulnerabilityRow{
			ID:       record.ID,
			Year:     record.Year,
			Status:   string(record.Status),
			Severity: "no data",
		}
		if record.Severity != nil {
			row.Severity = fmt.Sprintf("%.1f", *record.Severity)
			row.Rating = vulnerability.SeverityRating(*record.Severity)
		}
		rows = append(rows, row)
	}

	return rows
}

func joinIdentifiers(records []vulnerability.Record) string {
	if len(records) == 0 {
		return ""
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}

	return strings.Join(ids, ", ")
}
