// Package vulnerability resolves the known vulnerability records of a
// repository and reduces them to severity and remediation timeliness
// signals. Everything here is a pure function over evidence supplied by the
// collaborator interfaces in collaborators.go.
package vulnerability

import (
	"regexp"
	"strconv"
	"time"

	"github.com/oss-posture/posture/internal/evidence"
)

// FixStatus says whether a vulnerability's defect is still present on the
// repository's default branch.
type FixStatus string

const (
	StatusFixed   FixStatus = "fixed"
	StatusUnfixed FixStatus = "unfixed"
	StatusUnknown FixStatus = "unknown"
)

// Record is one resolved vulnerability. Immutable after classification, one
// record per CVE identifier per repository.
type Record struct {
	ID         string
	Year       int
	References []evidence.Reference
	Severity   *float64
	Status     FixStatus
	Times      Timestamps
}

// Timestamps are the candidate reported/fixed dates gathered during
// resolution. A zero value means the source does not apply.
type Timestamps struct {
	CvePublished   time.Time
	IssueOpened    time.Time
	BountyReported time.Time

	CommitAuthored    time.Time
	IssueClosed       time.Time
	AdvisoryPublished time.Time
	ReleasePublished  time.Time
}

// Policy is the fix-status decision policy. The default is conservative:
// any unfixed evidence marks the record unfixed even when fixed evidence
// exists alongside it.
type Policy struct {
	// UnfixedEvidenceWins breaks fixed/unfixed evidence ties toward unfixed.
	UnfixedEvidenceWins bool
	// AdvisoryImpliesFixed counts a published security advisory as fixed
	// evidence.
	AdvisoryImpliesFixed bool
}

func DefaultPolicy() Policy {
	return Policy{
		UnfixedEvidenceWins:  true,
		AdvisoryImpliesFixed: true,
	}
}

var cveID = regexp.MustCompile(`^CVE-([0-9]{4})-[0-9]{4,}$`)

// IsCVE reports whether the identifier has the CVE-YYYY-NNNN+ form.
func IsCVE(id string) bool {
	return cveID.MatchString(id)
}

// publishYear derives the publish year embedded in a CVE identifier.
func publishYear(id string) int {
	match := cveID.FindStringSubmatch(id)
	if match == nil {
		return 0
	}

	year, _ := strconv.Atoi(match[1])
	return year
}
