package vulnerability

import (
	"context"
	"errors"
	"testing"
	"time"

	cache "github.com/oss-posture/posture/internal/caching"
	"github.com/oss-posture/posture/internal/clients/models"
)

var testRepo = models.RepositoryIdentity{
	Host:          "github.com",
	Owner:         "acme",
	Name:          "widget",
	DefaultBranch: "main",
}

const repoBase = "https://github.com/acme/widget"

type fakeDatabase struct {
	matches   []SearchMatch
	details   map[string]CveDetail
	scores    map[string]float64
	searchErr error
	lookupErr map[string]error
}

func (f *fakeDatabase) SearchByKeyword(_ context.Context, _ string) ([]SearchMatch, error) {
	return f.matches, f.searchErr
}

func (f *fakeDatabase) Lookup(_ context.Context, cveID string) (CveDetail, error) {
	if err := f.lookupErr[cveID]; err != nil {
		return CveDetail{}, err
	}
	return f.details[cveID], nil
}

func (f *fakeDatabase) BaseScore(_ context.Context, cveID string) (*float64, error) {
	if score, ok := f.scores[cveID]; ok {
		return &score, nil
	}
	return nil, nil
}

type fakePlatform struct {
	branchesBySha map[string][]string
	branchesErr   error
	issues        map[int]Issue
	contributors  []string
	latestTag     string
	releases      map[string]Release
	commits       map[string]Commit
}

func (f *fakePlatform) BranchesContaining(_ context.Context, _ models.RepositoryIdentity, sha string) ([]string, error) {
	if f.branchesErr != nil {
		return nil, f.branchesErr
	}
	return f.branchesBySha[sha], nil
}

func (f *fakePlatform) Issue(_ context.Context, _ models.RepositoryIdentity, number int) (Issue, error) {
	issue, ok := f.issues[number]
	if !ok {
		return Issue{}, ErrLookupFailure
	}
	return issue, nil
}

func (f *fakePlatform) Contributors(_ context.Context, _ models.RepositoryIdentity) ([]string, error) {
	return f.contributors, nil
}

func (f *fakePlatform) Commit(_ context.Context, _ models.RepositoryIdentity, sha string) (Commit, error) {
	commit, ok := f.commits[sha]
	if !ok {
		return Commit{}, ErrLookupFailure
	}
	return commit, nil
}

func (f *fakePlatform) LatestReleaseTag(_ context.Context, _ models.RepositoryIdentity) (string, error) {
	return f.latestTag, nil
}

func (f *fakePlatform) Release(_ context.Context, _ models.RepositoryIdentity, tag string) (Release, error) {
	release, ok := f.releases[tag]
	if !ok {
		return Release{}, ErrLookupFailure
	}
	return release, nil
}

type fakeBounty struct {
	reportedOn time.Time
}

func (f *fakeBounty) ReportedOn(_ context.Context, _ string) (time.Time, error) {
	if f.reportedOn.IsZero() {
		return time.Time{}, ErrLookupFailure
	}
	return f.reportedOn, nil
}

func newTestResolver(db *fakeDatabase, platform *fakePlatform, policy Policy) *Resolver {
	return NewResolver(db, platform, &fakeBounty{}, policy, &cache.Cache{})
}

func resolveOne(t *testing.T, resolver *Resolver) Record {
	t.Helper()
	records, err := resolver.Resolve(context.Background(), testRepo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	return records[0]
}

func TestResolveCommitOnDefaultBranchIsFixed(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2021-1234"}},
		details: map[string]CveDetail{
			"CVE-2021-1234": {ReferenceURLs: []string{repoBase + "/commit/abc123"}},
		},
	}
	platform := &fakePlatform{
		branchesBySha: map[string][]string{"abc123": {"main", "dev"}},
		commits:       map[string]Commit{"abc123": {AuthoredAt: time.Now()}},
	}

	record := resolveOne(t, newTestResolver(db, platform, DefaultPolicy()))
	if record.Status != StatusFixed {
		t.Fatalf("expected fixed, got %s", record.Status)
	}
}

func TestResolveCommitNotOnDefaultBranchIsUnfixed(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2021-1234"}},
		details: map[string]CveDetail{
			"CVE-2021-1234": {ReferenceURLs: []string{repoBase + "/commit/abc123"}},
		},
	}
	platform := &fakePlatform{
		branchesBySha: map[string][]string{"abc123": {"feature/fix"}},
	}

	record := resolveOne(t, newTestResolver(db, platform, DefaultPolicy()))
	if record.Status != StatusUnfixed {
		t.Fatalf("expected unfixed, got %s", record.Status)
	}
}

func TestResolveNoReferencesIsUnfixed(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2020-9999"}},
		details: map[string]CveDetail{"CVE-2020-9999": {}},
	}

	record := resolveOne(t, newTestResolver(db, &fakePlatform{}, DefaultPolicy()))
	if record.Status != StatusUnfixed {
		t.Fatalf("expected unfixed, got %s", record.Status)
	}
}

func TestResolveClosedIssueWithoutContributorEngagementIsUnfixed(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2022-0001"}},
		details: map[string]CveDetail{
			"CVE-2022-0001": {ReferenceURLs: []string{repoBase + "/issues/42"}},
		},
		scores: map[string]float64{"CVE-2022-0001": 7.5},
	}
	platform := &fakePlatform{
		issues: map[int]Issue{42: {
			State:          "closed",
			CommentAuthors: []string{"drive-by-reporter"},
		}},
		contributors: []string{"maintainer"},
	}

	record := resolveOne(t, newTestResolver(db, platform, DefaultPolicy()))
	if record.Status != StatusUnfixed {
		t.Fatalf("expected unfixed under conservative policy, got %s", record.Status)
	}

	mean, err := MeanSeverity([]Record{record})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mean != 7.50 {
		t.Fatalf("expected mean severity 7.50, got %v", mean)
	}
}

func TestResolveClosedIssueLenientPolicyIsFixed(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2022-0001"}},
		details: map[string]CveDetail{
			"CVE-2022-0001": {ReferenceURLs: []string{repoBase + "/issues/42"}},
		},
	}
	platform := &fakePlatform{
		issues:       map[int]Issue{42: {State: "closed"}},
		contributors: []string{"maintainer"},
	}

	policy := Policy{UnfixedEvidenceWins: false, AdvisoryImpliesFixed: true}
	record := resolveOne(t, newTestResolver(db, platform, policy))
	if record.Status != StatusFixed {
		t.Fatalf("expected fixed under lenient policy, got %s", record.Status)
	}
}

func TestResolveOpenIssueWithContributorCommentIsFixed(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2022-0002"}},
		details: map[string]CveDetail{
			"CVE-2022-0002": {ReferenceURLs: []string{repoBase + "/issues/7"}},
		},
	}
	platform := &fakePlatform{
		issues: map[int]Issue{7: {
			State:          "open",
			CommentAuthors: []string{"maintainer"},
		}},
		contributors: []string{"maintainer"},
	}

	record := resolveOne(t, newTestResolver(db, platform, DefaultPolicy()))
	if record.Status != StatusFixed {
		t.Fatalf("expected fixed, got %s", record.Status)
	}
}

func TestResolveReleaseReferenceIsFixed(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2023-0042"}},
		details: map[string]CveDetail{
			"CVE-2023-0042": {ReferenceURLs: []string{repoBase + "/releases/tag/v1.4.0"}},
		},
	}
	platform := &fakePlatform{
		latestTag: "v2.0.0",
		releases:  map[string]Release{"v1.4.0": {Tag: "v1.4.0", PublishedAt: time.Now()}},
	}

	record := resolveOne(t, newTestResolver(db, platform, DefaultPolicy()))
	if record.Status != StatusFixed {
		t.Fatalf("expected fixed, got %s", record.Status)
	}
}

func TestResolveUnshippedReleaseIsUnfixed(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2023-0042"}},
		details: map[string]CveDetail{
			"CVE-2023-0042": {ReferenceURLs: []string{repoBase + "/releases/tag/v3.0.0"}},
		},
	}
	platform := &fakePlatform{latestTag: "v2.0.0"}

	record := resolveOne(t, newTestResolver(db, platform, DefaultPolicy()))
	if record.Status != StatusUnfixed {
		t.Fatalf("a release newer than anything published has not shipped, got %s", record.Status)
	}
}

func TestResolveLookupFailureDegradesSingleRecord(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2021-1111"}, {ID: "CVE-2021-2222"}},
		details: map[string]CveDetail{
			"CVE-2021-2222": {ReferenceURLs: []string{repoBase + "/pull/5"}},
		},
		lookupErr: map[string]error{"CVE-2021-1111": ErrLookupFailure},
	}

	resolver := newTestResolver(db, &fakePlatform{}, DefaultPolicy())
	records, err := resolver.Resolve(context.Background(), testRepo)
	if err != nil {
		t.Fatalf("a single bad CVE must not abort the batch: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Status != StatusUnknown {
		t.Fatalf("expected degraded record to be unknown, got %s", records[0].Status)
	}
	if records[1].Status != StatusFixed {
		t.Fatalf("expected pull request reference to resolve fixed, got %s", records[1].Status)
	}
}

func TestResolveSearchFailureAborts(t *testing.T) {
	db := &fakeDatabase{searchErr: errors.New("service unavailable")}

	_, err := newTestResolver(db, &fakePlatform{}, DefaultPolicy()).Resolve(context.Background(), testRepo)
	if err == nil {
		t.Fatal("expected search failure to surface")
	}
}

func TestResolveDeduplicatesByIdentifier(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{
			{ID: "CVE-2021-1234"},
			{ID: "CVE-2021-1234"},
			{ID: "not-a-cve"},
		},
		details: map[string]CveDetail{"CVE-2021-1234": {}},
	}

	records, err := newTestResolver(db, &fakePlatform{}, DefaultPolicy()).Resolve(context.Background(), testRepo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected deduplicated single record, got %d", len(records))
	}
	if records[0].Year != 2021 {
		t.Fatalf("expected publish year 2021, got %d", records[0].Year)
	}
}

func TestResolveMemoizesPerRepository(t *testing.T) {
	db := &fakeDatabase{
		matches: []SearchMatch{{ID: "CVE-2021-1234"}},
		details: map[string]CveDetail{"CVE-2021-1234": {}},
	}
	resolver := newTestResolver(db, &fakePlatform{}, DefaultPolicy())

	first, err := resolver.Resolve(context.Background(), testRepo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a second pass must not hit the database again
	db.searchErr = errors.New("should not be called")
	second, err := resolver.Resolve(context.Background(), testRepo)
	if err != nil {
		t.Fatalf("unexpected error on memoized resolve: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("memoized result differs: %d vs %d", len(first), len(second))
	}
}
