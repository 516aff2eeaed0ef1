package vulnerability

import (
	"errors"
	"math"
)

// ErrNoSeverityData means no record carried a CVSS base score. It is an
// explicit sentinel: zero would be indistinguishable from "nothing here is
// severe".
var ErrNoSeverityData = errors.New("no severity data")

// MeanSeverity reduces the records to the mean CVSS base score of those
// that have one, rounded to two decimals.
func MeanSeverity(records []Record) (float64, error) {
	var total float64
	var scored int

	for _, record := range records {
		if record.Severity == nil {
			continue
		}
		total += *record.Severity
		scored++
	}

	if scored == 0 {
		return 0, ErrNoSeverityData
	}

	return round2(total / float64(scored)), nil
}

// SeverityRating buckets a CVSS base score into the standard rating.
func SeverityRating(score float64) string {
	switch {
	case score == 0:
		return "NONE"
	case score < 4.0:
		return "LOW"
	case score < 7.0:
		return "MEDIUM"
	case score < 9.0:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
