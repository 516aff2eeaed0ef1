package evidence

import "strings"

// Tag classifies what a vulnerability reference url points at.
type Tag string

const (
	TagCommit      Tag = "commit"
	TagIssue       Tag = "issue"
	TagRelease     Tag = "release"
	TagAdvisory    Tag = "advisory"
	TagPullRequest Tag = "pull_request"
	TagBounty      Tag = "bounty"
	TagNone        Tag = "none"
)

// BountyHost matches bounty reports for any repository, not just the one
// being scored.
const BountyHost = "https://huntr.dev/bounties"

// Reference is a classified evidence url attached to a vulnerability record.
type Reference struct {
	URL string
	Tag Tag
}

// kindPaths are evaluated in priority order, the first match wins. All of
// them are anchored to the repository's own path segment.
var kindPaths = []struct {
	path string
	tag  Tag
}{
	{"/commit", TagCommit},
	{"/issues", TagIssue},
	{"/releases", TagRelease},
	{"/security/advisories", TagAdvisory},
	{"/pull", TagPullRequest},
}

// Classify maps a reference url to exactly one tag. repoBaseURL is the
// canonical https://<host>/<owner>/<name> url of the repository under
// analysis. Classification is pure, the same url always yields the same tag.
func Classify(rawURL, repoBaseURL string) Tag {
	base := strings.TrimSuffix(repoBaseURL, "/")
	for _, kind := range kindPaths {
		if strings.HasPrefix(rawURL, base+kind.path) {
			return kind.tag
		}
	}

	if strings.HasPrefix(rawURL, BountyHost) {
		return TagBounty
	}

	return TagNone
}

// ClassifyAll classifies every url against the repository, preserving order.
func ClassifyAll(urls []string, repoBaseURL string) []Reference {
	references := make([]Reference, 0, len(urls))
	for _, u := range urls {
		references = append(references, Reference{URL: u, Tag: Classify(u, repoBaseURL)})
	}

	return references
}
