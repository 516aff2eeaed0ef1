package scoring

import (
	"math"
	"strings"
)

// CheckRun is the relevant slice of a hosting platform check run.
type CheckRun struct {
	Status     string
	Conclusion string
	AppSlug    string
}

// Check run apps recognized as static analysis tooling.
var sastTools = map[string]bool{
	"codeql":               true,
	"github-code-scanning": true,
	"lgtm-com":             true,
	"sonarcloud":           true,
	"snyk":                 true,
	"semgrep":              true,
}

// SASTScoreFromCheckRuns scores the fraction of recent commits that carry a
// successful static analysis check run. No observed commits is inconclusive,
// not zero.
func SASTScoreFromCheckRuns(commitRuns [][]CheckRun) Score {
	if len(commitRuns) == 0 {
		return Inconclusive
	}

	analyzed := 0
	for _, runs := range commitRuns {
		for _, run := range runs {
			if run.Status != "completed" || run.Conclusion != "success" {
				continue
			}
			if sastTools[run.AppSlug] {
				analyzed++
				break
			}
		}
	}

	return clamp(float64(analyzed) / float64(len(commitRuns)) * float64(MaxScore))
}

// CodeQLScoreFromWorkflows scores CodeQL presence from raw workflow file
// contents. No workflow files at all is inconclusive.
func CodeQLScoreFromWorkflows(contents []string) Score {
	if len(contents) == 0 {
		return Inconclusive
	}

	for _, content := range contents {
		if strings.Contains(content, "github/codeql-action") {
			return MaxScore
		}
	}

	return MinScore
}

// CombineSASTScores folds the check run signal and the CodeQL signal into
// one score. The rules are evaluated in order:
//
//	both inconclusive          -> 0
//	both conclusive, sast = 10 -> 10
//	both conclusive, ql = 0    -> sast
//	both conclusive, ql = 10   -> round(sast*0.3 + ql*0.7)
//	both conclusive otherwise  -> 0
//	one inconclusive           -> the conclusive one
func CombineSASTScores(sast, codeql Score) Score {
	switch {
	case !sast.Conclusive() && !codeql.Conclusive():
		return MinScore

	case sast.Conclusive() && codeql.Conclusive():
		switch {
		case sast == MaxScore:
			return MaxScore
		case codeql == MinScore:
			return sast
		case codeql == MaxScore:
			return clamp(math.Round(float64(sast)*0.3 + float64(codeql)*0.7))
		default:
			return MinScore
		}

	case sast.Conclusive():
		return sast

	default:
		return codeql
	}
}
