package workflow

import (
	"regexp"
	"sort"
	"strings"
)

// Triggers that run with elevated privilege against externally influenced
// input.
var elevatedTriggers = map[string]bool{
	"pull_request_target": true,
	"workflow_run":        true,
}

var interpolation = regexp.MustCompile(`\$\{\{([^}]*)\}\}`)

// Context paths whose values are controlled by an untrusted party.
var untrustedContexts = []*regexp.Regexp{
	regexp.MustCompile(`github\.event\.issue\.(title|body)`),
	regexp.MustCompile(`github\.event\.pull_request\.(title|body)`),
	regexp.MustCompile(`github\.event\.discussion\.(title|body)`),
	regexp.MustCompile(`github\.event\.comment\.body`),
	regexp.MustCompile(`github\.event\.review\.body`),
	regexp.MustCompile(`github\.event\.review_comment\.body`),
	regexp.MustCompile(`github\.event\.pages\.[^.}]*\.page_name`),
	regexp.MustCompile(`github\.event\.head_commit\.(message|author\.(name|email))`),
	regexp.MustCompile(`github\.event\.commits[^}]*\.(message|author\.(name|email))`),
	regexp.MustCompile(`github\.head_ref`),
}

// HasUntrustedCheckout reports whether the workflow checks out externally
// influenced code while running under an elevated privilege trigger. A nil
// definition (malformed source) fails closed.
func HasUntrustedCheckout(definition *Definition) bool {
	if definition == nil {
		return true
	}

	applicable := false
	for _, trigger := range definition.Triggers {
		if elevatedTriggers[trigger] {
			applicable = true
			break
		}
	}
	if !applicable {
		return false
	}

	for _, job := range definition.Jobs {
		for _, step := range job.Steps {
			if !strings.HasPrefix(step.Uses, "actions/checkout") {
				continue
			}
			if refersToExternalHead(step.With["ref"]) {
				return true
			}
		}
	}

	return false
}

// refersToExternalHead reports whether a checkout ref expression resolves to
// pull_request or workflow_run context fields.
func refersToExternalHead(ref string) bool {
	for _, match := range interpolation.FindAllStringSubmatch(ref, -1) {
		expression := match[1]
		if strings.Contains(expression, "pull_request") ||
			strings.Contains(expression, "workflow_run") ||
			strings.Contains(expression, "head_ref") {
			return true
		}
	}

	return false
}

// FirstInjection returns the first shell or parameter interpolation whose
// expression reads an untrusted context path, and whether one was found.
func FirstInjection(definition *Definition) (string, bool) {
	if definition == nil {
		return "", true
	}

	for _, job := range definition.Jobs {
		for _, step := range job.Steps {
			// stable field order, the reported expression must be
			// reproducible across runs
			fields := []string{step.Run}
			fields = append(fields, sortedValues(step.With)...)
			fields = append(fields, sortedValues(step.Env)...)

			for _, field := range fields {
				for _, match := range interpolation.FindAllStringSubmatch(field, -1) {
					expression := strings.TrimSpace(match[1])
					if isUntrustedExpression(expression) {
						return expression, true
					}
				}
			}
		}
	}

	return "", false
}

// HasScriptInjection reports whether any step interpolates an untrusted
// context value into a script or parameter field. A nil definition fails
// closed.
func HasScriptInjection(definition *Definition) bool {
	_, found := FirstInjection(definition)
	return found
}

func sortedValues(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ordered := make([]string, 0, len(keys))
	for _, key := range keys {
		ordered = append(ordered, values[key])
	}

	return ordered
}

func isUntrustedExpression(expression string) bool {
	for _, context := range untrustedContexts {
		if context.MatchString(expression) {
			return true
		}
	}

	return false
}
