package scoring

import (
	"strings"

	"github.com/oss-posture/posture/internal/workflow"
)

// WorkflowEvidence pairs a parsed workflow with its observed run history.
// Definition is nil when the source failed to parse.
type WorkflowEvidence struct {
	FileName       string
	Definition     *workflow.Definition
	SuccessfulRuns int
}

// PackagingScore is a binary check: the repository packages and publishes
// iff some workflow matches a packaging template and has at least one
// successful run. No workflow files at all is inconclusive.
func PackagingScore(workflows []WorkflowEvidence) Score {
	if len(workflows) == 0 {
		return Inconclusive
	}

	for _, wf := range workflows {
		if wf.Definition == nil {
			continue
		}
		if workflow.IsPackaging(wf.Definition) && wf.SuccessfulRuns > 0 {
			return MaxScore
		}
	}

	return MinScore
}

// Fuzzing configuration files and directories.
var fuzzingPathPrefixes = []string{
	".clusterfuzzlite/",
	"fuzz/",
	"fuzzing/",
}

// FuzzingScore is a binary presence check over the default branch file
// list. An empty file list is inconclusive.
func FuzzingScore(paths []string) Score {
	if len(paths) == 0 {
		return Inconclusive
	}

	for _, path := range paths {
		lowered := strings.ToLower(path)
		for _, prefix := range fuzzingPathPrefixes {
			if strings.HasPrefix(lowered, prefix) || strings.Contains(lowered, "/"+prefix) {
				return MaxScore
			}
		}
	}

	return MinScore
}

var dependabotConfigs = []string{
	".github/dependabot.yml",
	".github/dependabot.yaml",
}

var renovateConfigs = []string{
	".github/renovate.json",
	".github/renovate.json5",
	".renovaterc.json",
	"renovate.json",
	"renovate.json5",
	".renovaterc",
}

// DependencyUpdateToolScore checks for exactly one update bot configured
// with exactly one configuration file. Both bots present, or multiple
// config files for the same bot, is inconclusive.
func DependencyUpdateToolScore(paths []string) Score {
	var found []string
	foundDependabot := false
	foundRenovate := false

	for _, path := range paths {
		lowered := strings.ToLower(path)

		if matchesConfig(lowered, dependabotConfigs) {
			found = append(found, lowered)
			foundDependabot = true
			continue
		}
		if matchesConfig(lowered, renovateConfigs) {
			found = append(found, lowered)
			foundRenovate = true
		}
	}

	if len(found) == 0 {
		return MinScore
	}
	if foundDependabot && foundRenovate {
		return Inconclusive
	}
	if len(found) != 1 {
		return Inconclusive
	}

	return MaxScore
}

func matchesConfig(path string, configs []string) bool {
	for _, config := range configs {
		if path == config || strings.HasSuffix(path, "/"+config) {
			return true
		}
	}

	return false
}
