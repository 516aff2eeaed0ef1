package scoring

import (
	"math"

	"github.com/oss-posture/posture/internal/workflow"
)

// Deductions per write scoped permission.
var writeDeductions = map[string]float64{
	"statuses":        0.5,
	"checks":          0.5,
	"security-events": 1,
	"deployments":     1,
	"contents":        10,
	"packages":        10,
	"actions":         10,
}

// Scopes that only count when declared at the workflow top level. At job
// level they are scoped tightly enough to not deduct.
var topLevelOnlyScopes = map[string]bool{
	"contents":        true,
	"packages":        true,
	"security-events": true,
}

// TokenPermissionScore scores GITHUB_TOKEN hygiene across the analyzed
// workflow files. A nil entry stands for a malformed workflow and fails
// closed. A file declaring no permissions block at any level runs with full
// write access and zeroes the score immediately.
func TokenPermissionScore(definitions []*workflow.Definition) Score {
	score := float64(MaxScore)

	for _, definition := range definitions {
		if definition == nil {
			return MinScore
		}

		if !permissionsDeclared(definition) {
			return MinScore
		}

		score -= deductions(definition.Permissions, false)
		for _, job := range definition.Jobs {
			score -= deductions(job.Permissions, true)
		}

		if score <= 0 {
			return MinScore
		}
	}

	// partial deductions always cost a point
	return clamp(math.Floor(score))
}

func permissionsDeclared(definition *workflow.Definition) bool {
	if definition.Permissions != nil {
		return true
	}
	for _, job := range definition.Jobs {
		if job.Permissions != nil {
			return true
		}
	}

	return false
}

func deductions(permissions *workflow.Permissions, jobLevel bool) float64 {
	if permissions == nil {
		return 0
	}

	if permissions.HasWriteAll() {
		return float64(MaxScore)
	}

	var total float64
	for scope, access := range permissions.Scopes {
		if access != "write" {
			continue
		}
		if jobLevel && topLevelOnlyScopes[scope] {
			continue
		}
		total += writeDeductions[scope]
	}

	return total
}
