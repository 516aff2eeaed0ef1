package vulnerability

import (
	"errors"
	"time"
)

// ErrNoFixedVulnerabilities means the fixed record set is empty and no
// timeliness can be computed.
var ErrNoFixedVulnerabilities = errors.New("no fixed vulnerabilities")

// MeanFixGap computes the mean days between the earliest reported date and
// the earliest fixed date across the fixed records, rounded to two
// decimals. Sources that do not apply default to now, so an absent signal
// never drags a date backwards; a fix recorded before its report counts as
// zero latency, never negative.
func MeanFixGap(records []Record, now time.Time) (float64, error) {
	var totalDays float64
	var fixed int

	for _, record := range records {
		if record.Status != StatusFixed {
			continue
		}
		fixed++

		reported := earliest(now,
			record.Times.CvePublished,
			record.Times.IssueOpened,
			record.Times.BountyReported)

		fixedAt := earliest(now,
			record.Times.CommitAuthored,
			record.Times.IssueClosed,
			record.Times.AdvisoryPublished,
			record.Times.ReleasePublished)

		days := fixedAt.Sub(reported).Hours() / 24
		if days < 0 {
			days = 0
		}

		totalDays += float64(int(days))
	}

	if fixed == 0 {
		return 0, ErrNoFixedVulnerabilities
	}

	return round2(totalDays / float64(fixed)), nil
}

// earliest picks the earliest applicable timestamp, falling back to the
// default when every source is absent.
func earliest(fallback time.Time, candidates ...time.Time) time.Time {
	min := fallback
	for _, candidate := range candidates {
		if candidate.IsZero() {
			continue
		}
		if candidate.Before(min) {
			min = candidate
		}
	}

	return min
}

// earlierOf keeps the earliest of two timestamps, treating zero as absent.
func earlierOf(current, candidate time.Time) time.Time {
	if candidate.IsZero() {
		return current
	}
	if current.IsZero() || candidate.Before(current) {
		return candidate
	}

	return current
}
