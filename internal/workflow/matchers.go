package workflow

import "regexp"

// PatternKind distinguishes the two shapes an expected step field takes:
// a plain string field compared against a step field, or a mapping field
// with one distinguished sub key (e.g. with.registry-url).
type PatternKind int

const (
	StringPattern PatternKind = iota
	MappingPattern
)

// StepPattern is one expected field of a template step. Value is compared
// with prefix/regex semantics, anchored at the start of the step's value.
type StepPattern struct {
	Kind  PatternKind
	Key   string
	Field string
	value *regexp.Regexp
}

// String builds a pattern matching a plain step field such as uses or run.
func String(key, pattern string) StepPattern {
	return StepPattern{
		Kind:  StringPattern,
		Key:   key,
		value: regexp.MustCompile("^(?:" + pattern + ")"),
	}
}

// Mapping builds a pattern matching one distinguished sub key of a mapping
// step field, such as with.registry-url.
func Mapping(key, field, pattern string) StepPattern {
	return StepPattern{
		Kind:  MappingPattern,
		Key:   key,
		Field: field,
		value: regexp.MustCompile("^(?:" + pattern + ")"),
	}
}

// Matches dispatches on the pattern kind against a concrete step.
func (p StepPattern) Matches(step Step) bool {
	switch p.Kind {
	case StringPattern:
		return p.value.MatchString(stepField(step, p.Key))

	case MappingPattern:
		if p.Key != "with" {
			return false
		}
		return p.value.MatchString(step.With[p.Field])
	}

	return false
}

func stepField(step Step, key string) string {
	switch key {
	case "uses":
		return step.Uses
	case "run":
		return step.Run
	}

	return ""
}

// ExpectedStep is a set of patterns that must all match the same step.
type ExpectedStep []StepPattern

func (e ExpectedStep) matches(step Step) bool {
	for _, pattern := range e {
		if !pattern.Matches(step) {
			return false
		}
	}

	return true
}

// Template is a named ordered list of expected steps describing a known
// pipeline, e.g. an npm publish job.
type Template struct {
	Name  string
	Steps []ExpectedStep
}

// Satisfies reports whether, for every expected step of the template, some
// step in some job of the workflow matches it.
func Satisfies(definition *Definition, template Template) bool {
	if definition == nil {
		return false
	}

	for _, expected := range template.Steps {
		if !someStepMatches(definition, expected) {
			return false
		}
	}

	return true
}

func someStepMatches(definition *Definition, expected ExpectedStep) bool {
	for _, job := range definition.Jobs {
		for _, step := range job.Steps {
			if expected.matches(step) {
				return true
			}
		}
	}

	return false
}

// PackagingTemplates describes the publishing pipelines of the mainstream
// package registries.
var PackagingTemplates = []Template{
	{Name: "npm", Steps: []ExpectedStep{{
		String("uses", "actions/setup-node"),
		Mapping("with", "registry-url", "https://registry.npmjs.org"),
	}}},
	{Name: "maven", Steps: []ExpectedStep{
		{String("uses", "actions/setup-java")},
		{String("run", "mvn.*deploy")},
	}},
	{Name: "gradle", Steps: []ExpectedStep{
		{String("uses", "actions/setup-java")},
		{String("run", "gradle.*publish")},
	}},
	{Name: "gem", Steps: []ExpectedStep{{String("run", "gem.*push")}}},
	{Name: "nuget", Steps: []ExpectedStep{{String("run", "nuget.*push")}}},
	{Name: "docker", Steps: []ExpectedStep{{String("run", "docker.*push")}}},
	{Name: "docker-action", Steps: []ExpectedStep{{String("uses", "docker/build-push-action")}}},
	{Name: "pypi", Steps: []ExpectedStep{
		{String("uses", "actions/setup-python")},
		{String("uses", "pypa/gh-action-pypi-publish")},
	}},
	{Name: "semantic-release", Steps: []ExpectedStep{{String("uses", "relekang/python-semantic-release")}}},
	{Name: "goreleaser", Steps: []ExpectedStep{
		{String("uses", "actions/setup-go")},
		{String("uses", "goreleaser/goreleaser-action")},
	}},
	{Name: "cargo", Steps: []ExpectedStep{{String("run", "cargo.*publish")}}},
}

// MatchPackaging returns the name of the first packaging template the
// workflow satisfies.
func MatchPackaging(definition *Definition) (string, bool) {
	for _, template := range PackagingTemplates {
		if Satisfies(definition, template) {
			return template.Name, true
		}
	}

	return "", false
}

// IsPackaging reports whether the workflow is a packaging pipeline.
func IsPackaging(definition *Definition) bool {
	_, ok := MatchPackaging(definition)
	return ok
}
