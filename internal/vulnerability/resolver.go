package vulnerability

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"

	cache "github.com/oss-posture/posture/internal/caching"
	"github.com/oss-posture/posture/internal/clients/models"
	"github.com/oss-posture/posture/internal/evidence"
)

// Resolver maps a repository identity to its resolved vulnerability set.
// Resolution runs once per repository per session; repeated calls return
// the memoized snapshot.
type Resolver struct {
	db       VulnDatabase
	platform Platform
	bounty   BountySource
	policy   Policy
	cache    *cache.Cache
}

func NewResolver(db VulnDatabase, platform Platform, bounty BountySource,
	policy Policy, memo *cache.Cache) *Resolver {
	return &Resolver{
		db:       db,
		platform: platform,
		bounty:   bounty,
		policy:   policy,
		cache:    memo,
	}
}

// Resolve returns every known vulnerability record for the repository,
// partitioned into fixed/unfixed/unknown. A failing lookup for one CVE
// degrades that record to unknown instead of aborting the batch; only a
// failing keyword search aborts resolution entirely.
func (r *Resolver) Resolve(ctx context.Context, repo models.RepositoryIdentity) ([]Record, error) {
	resolved, err := r.cache.GetOrCreate(repo.FullName(), func() (interface{}, error) {
		return r.resolve(ctx, repo)
	})
	if err != nil {
		return nil, err
	}

	records, ok := resolved.([]Record)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type for %s", repo.FullName())
	}

	return records, nil
}

func (r *Resolver) resolve(ctx context.Context, repo models.RepositoryIdentity) ([]Record, error) {
	matches, err := r.db.SearchByKeyword(ctx, repo.FullName())
	if err != nil {
		return nil, fmt.Errorf("searching vulnerabilities for %s: %w", repo.FullName(), err)
	}

	// dedupe by identifier, first seen order wins
	seen := make(map[string]struct{}, len(matches))
	records := make([]Record, 0, len(matches))

	for _, match := range matches {
		if !IsCVE(match.ID) {
			continue
		}
		if _, dup := seen[match.ID]; dup {
			continue
		}
		seen[match.ID] = struct{}{}

		records = append(records, r.resolveRecord(ctx, repo, match))
	}

	return records, nil
}

func (r *Resolver) resolveRecord(ctx context.Context, repo models.RepositoryIdentity, match SearchMatch) Record {
	record := Record{
		ID:     match.ID,
		Year:   publishYear(match.ID),
		Status: StatusUnknown,
	}

	detail, err := r.db.Lookup(ctx, match.ID)
	if err != nil {
		// recovered locally, the record stays unknown
		return record
	}

	record.Times.CvePublished = detail.Published

	urls := detail.ReferenceURLs
	if len(urls) == 0 {
		urls = match.ReferenceURLs
	}
	record.References = evidence.ClassifyAll(urls, repo.BaseURL())

	if severity, err := r.db.BaseScore(ctx, match.ID); err == nil {
		record.Severity = severity
	}

	r.decideStatus(ctx, repo, &record)

	return record
}

// decideStatus applies the fix-status decision over the classified
// references. Evidence is gathered reference by reference, in order, then
// combined under the resolver's policy.
func (r *Resolver) decideStatus(ctx context.Context, repo models.RepositoryIdentity, record *Record) {
	var fixed, unfixed, failed bool

	for _, reference := range record.References {
		switch reference.Tag {
		case evidence.TagCommit:
			r.evaluateCommit(ctx, repo, reference.URL, record, &fixed, &unfixed, &failed)

		case evidence.TagIssue:
			r.evaluateIssue(ctx, repo, reference.URL, record, &fixed, &unfixed, &failed)

		case evidence.TagRelease:
			r.evaluateRelease(ctx, repo, reference.URL, record, &fixed, &unfixed)

		case evidence.TagPullRequest:
			fixed = true

		case evidence.TagAdvisory:
			if r.policy.AdvisoryImpliesFixed {
				fixed = true
			}

		case evidence.TagBounty:
			if reportedOn, err := r.bounty.ReportedOn(ctx, reference.URL); err == nil {
				record.Times.BountyReported = earlierOf(record.Times.BountyReported, reportedOn)
			}

		case evidence.TagNone:
			unfixed = true
		}
	}

	switch {
	case unfixed && fixed:
		if r.policy.UnfixedEvidenceWins {
			record.Status = StatusUnfixed
		} else {
			record.Status = StatusFixed
		}
	case unfixed:
		record.Status = StatusUnfixed
	case fixed:
		record.Status = StatusFixed
	case failed:
		record.Status = StatusUnknown
	default:
		// no reference gave evidence either way, conservative default
		record.Status = StatusUnfixed
	}
}

// evaluateCommit checks whether the fixing commit is reachable from the
// default branch.
func (r *Resolver) evaluateCommit(ctx context.Context, repo models.RepositoryIdentity,
	url string, record *Record, fixed, unfixed, failed *bool) {
	sha := lastSegment(url)
	if sha == "" {
		*unfixed = true
		return
	}

	branches, err := r.platform.BranchesContaining(ctx, repo, sha)
	if err != nil {
		*failed = true
		return
	}

	if !containsString(branches, repo.DefaultBranch) {
		*unfixed = true
		return
	}

	*fixed = true
	if commit, err := r.platform.Commit(ctx, repo, sha); err == nil {
		record.Times.CommitAuthored = earlierOf(record.Times.CommitAuthored, commit.AuthoredAt)
	}
}

// evaluateIssue treats a closed issue, or contributor engagement on an open
// one, as fixed evidence. An issue nobody from the project engaged with is
// unfixed evidence, closed or not; the tie-break policy decides conflicts.
func (r *Resolver) evaluateIssue(ctx context.Context, repo models.RepositoryIdentity,
	url string, record *Record, fixed, unfixed, failed *bool) {
	number, err := issueNumber(url)
	if err != nil {
		*unfixed = true
		return
	}

	issue, err := r.platform.Issue(ctx, repo, number)
	if err != nil {
		*failed = true
		return
	}

	record.Times.IssueOpened = earlierOf(record.Times.IssueOpened, issue.CreatedAt)
	record.Times.IssueClosed = earlierOf(record.Times.IssueClosed, issue.ClosedAt)

	if issue.State == "closed" {
		*fixed = true
	}

	contributors, err := r.platform.Contributors(ctx, repo)
	if err != nil {
		*failed = true
		return
	}

	if intersects(issue.CommentAuthors, contributors) {
		*fixed = true
	} else {
		*unfixed = true
	}
}

// evaluateRelease counts a release reference as fixed evidence, unless the
// referenced tag is newer than anything actually published, in which case
// the fix has not shipped.
func (r *Resolver) evaluateRelease(ctx context.Context, repo models.RepositoryIdentity,
	url string, record *Record, fixed, unfixed *bool) {
	tag := releaseTag(url)
	if tag == "" {
		*fixed = true
		return
	}

	if latest, err := r.platform.LatestReleaseTag(ctx, repo); err == nil && latest != "" {
		referenced, refErr := goversion.NewVersion(tag)
		newest, latestErr := goversion.NewVersion(latest)
		if refErr == nil && latestErr == nil && referenced.GreaterThan(newest) {
			*unfixed = true
			return
		}
	}

	*fixed = true
	if release, err := r.platform.Release(ctx, repo, tag); err == nil {
		record.Times.ReleasePublished = earlierOf(record.Times.ReleasePublished, release.PublishedAt)
	}
}

// Unfixed filters the records still present on the default branch.
func Unfixed(records []Record) []Record {
	return filterStatus(records, StatusUnfixed)
}

// Fixed filters the remediated records.
func Fixed(records []Record) []Record {
	return filterStatus(records, StatusFixed)
}

func filterStatus(records []Record, status FixStatus) []Record {
	var filtered []Record
	for _, record := range records {
		if record.Status == status {
			filtered = append(filtered, record)
		}
	}

	return filtered
}

func lastSegment(url string) string {
	trimmed := strings.TrimSuffix(url, "/")
	if i := strings.IndexAny(trimmed, "#?"); i >= 0 {
		trimmed = trimmed[:i]
	}

	segments := strings.Split(trimmed, "/")
	return segments[len(segments)-1]
}

func issueNumber(url string) (int, error) {
	return strconv.Atoi(lastSegment(url))
}

// releaseTag extracts the tag from .../releases/tag/<tag> urls. Bare
// /releases links carry no tag.
func releaseTag(url string) string {
	marker := "/releases/tag/"
	i := strings.Index(url, marker)
	if i < 0 {
		return ""
	}

	return lastSegment(url[i+len(marker):])
}

func containsString(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}

	return false
}

func intersects(left, right []string) bool {
	set := make(map[string]struct{}, len(right))
	for _, value := range right {
		set[value] = struct{}{}
	}

	for _, value := range left {
		if _, ok := set[value]; ok {
			return true
		}
	}

	return false
}
