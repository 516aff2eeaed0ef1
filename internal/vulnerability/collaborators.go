package vulnerability

import (
	"context"
	"errors"
	"time"

	"github.com/oss-posture/posture/internal/clients/models"
)

// ErrLookupFailure wraps any evidence source being unreachable or returning
// a non success response. Failures are recovered locally: they degrade a
// single record, never the whole batch.
var ErrLookupFailure = errors.New("evidence lookup failed")

// SearchMatch is one raw hit from a keyword search of the vulnerability
// database.
type SearchMatch struct {
	ID            string
	ReferenceURLs []string
}

// CveDetail is the public record of a single CVE.
type CveDetail struct {
	Published     time.Time
	ReferenceURLs []string
}

// VulnDatabase is the public vulnerability database collaborator.
type VulnDatabase interface {
	SearchByKeyword(ctx context.Context, keyword string) ([]SearchMatch, error)
	Lookup(ctx context.Context, cveID string) (CveDetail, error)
	BaseScore(ctx context.Context, cveID string) (*float64, error)
}

// Issue is the slice of a hosting platform issue the resolver needs.
type Issue struct {
	State          string
	CreatedAt      time.Time
	ClosedAt       time.Time
	CommentAuthors []string
}

// Commit is the slice of a hosting platform commit the resolver needs.
type Commit struct {
	AuthoredAt time.Time
}

// Release is the slice of a hosting platform release the resolver needs.
type Release struct {
	Tag         string
	PublishedAt time.Time
}

// Platform is the hosting platform query collaborator. All methods take
// the repository identity by value; the client owns auth and transport.
type Platform interface {
	BranchesContaining(ctx context.Context, repo models.RepositoryIdentity, sha string) ([]string, error)
	Issue(ctx context.Context, repo models.RepositoryIdentity, number int) (Issue, error)
	Contributors(ctx context.Context, repo models.RepositoryIdentity) ([]string, error)
	Commit(ctx context.Context, repo models.RepositoryIdentity, sha string) (Commit, error)
	LatestReleaseTag(ctx context.Context, repo models.RepositoryIdentity) (string, error)
	Release(ctx context.Context, repo models.RepositoryIdentity, tag string) (Release, error)
}

// BountySource resolves the reported-on date of an external bounty report.
type BountySource interface {
	ReportedOn(ctx context.Context, reportURL string) (time.Time, error)
}
