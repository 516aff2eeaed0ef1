package workflow

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrMalformed marks a workflow source whose shape does not match what a
// GitHub Actions workflow is expected to look like. Callers treat a
// malformed workflow as insecure, never as safe.
var ErrMalformed = errors.New("malformed workflow")

// Definition is a parsed CI workflow: trigger set, optional top level
// permissions and an ordered list of jobs. Instances are read only once
// parsed and discarded after scoring.
type Definition struct {
	Triggers    []string
	Permissions *Permissions
	Jobs        []Job
}

type Job struct {
	ID          string
	Permissions *Permissions
	Steps       []Step
}

type Step struct {
	Name string
	Uses string
	Run  string
	With map[string]string
	Env  map[string]string
}

// Permissions models a GITHUB_TOKEN permissions block. The block is either
// the bare string form ("read-all", "write-all") carried in All, or a
// scope -> access mapping carried in Scopes.
type Permissions struct {
	All    string
	Scopes map[string]string
}

// HasWriteAll reports whether the block grants write on every scope.
func (p *Permissions) HasWriteAll() bool {
	return p != nil && p.All == "write-all"
}

type rawWorkflow struct {
	On          yaml.Node         `yaml:"on"`
	Permissions yaml.Node         `yaml:"permissions"`
	Jobs        map[string]rawJob `yaml:"jobs"`
}

type rawJob struct {
	Permissions yaml.Node   `yaml:"permissions"`
	Steps       []yaml.Node `yaml:"steps"`
}

type rawStep struct {
	Name string               `yaml:"name"`
	Uses string               `yaml:"uses"`
	Run  string               `yaml:"run"`
	With map[string]yaml.Node `yaml:"with"`
	Env  map[string]yaml.Node `yaml:"env"`
}

// Parse decodes a workflow yaml/json source into a Definition. Shape
// mismatches (missing jobs, non mapping steps) surface as ErrMalformed.
func Parse(src []byte) (*Definition, error) {
	var raw rawWorkflow
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if len(raw.Jobs) == 0 {
		return nil, fmt.Errorf("%w: missing jobs", ErrMalformed)
	}

	definition := &Definition{
		Triggers:    decodeTriggers(&raw.On),
		Permissions: decodePermissions(&raw.Permissions),
	}

	// map iteration order is random, keep job order stable
	jobIDs := make([]string, 0, len(raw.Jobs))
	for id := range raw.Jobs {
		jobIDs = append(jobIDs, id)
	}
	sort.Strings(jobIDs)

	for _, id := range jobIDs {
		rawjob := raw.Jobs[id]
		job := Job{
			ID:          id,
			Permissions: decodePermissions(&rawjob.Permissions),
		}

		for _, stepNode := range rawjob.Steps {
			step, err := decodeStep(&stepNode)
			if err != nil {
				return nil, err
			}
			job.Steps = append(job.Steps, step)
		}

		definition.Jobs = append(definition.Jobs, job)
	}

	return definition, nil
}

// decodeTriggers handles the three shapes "on" takes: a single event name, a
// list of event names or a mapping of parameterized events.
func decodeTriggers(node *yaml.Node) []string {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return nil
		}
		return []string{node.Value}

	case yaml.SequenceNode:
		triggers := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			triggers = append(triggers, item.Value)
		}
		return triggers

	case yaml.MappingNode:
		var triggers []string
		for i := 0; i+1 < len(node.Content); i += 2 {
			triggers = append(triggers, node.Content[i].Value)
		}
		return triggers
	}

	return nil
}

// decodePermissions returns nil when no permissions block is declared,
// distinct from an empty block.
func decodePermissions(node *yaml.Node) *Permissions {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return nil
		}
		return &Permissions{All: node.Value}

	case yaml.MappingNode:
		permissions := &Permissions{Scopes: make(map[string]string)}
		for i := 0; i+1 < len(node.Content); i += 2 {
			permissions.Scopes[node.Content[i].Value] = node.Content[i+1].Value
		}
		return permissions
	}

	return nil
}

func decodeStep(node *yaml.Node) (Step, error) {
	if node.Kind != yaml.MappingNode {
		return Step{}, fmt.Errorf("%w: step is not a mapping", ErrMalformed)
	}

	var raw rawStep
	if err := node.Decode(&raw); err != nil {
		return Step{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return Step{
		Name: raw.Name,
		Uses: raw.Uses,
		Run:  raw.Run,
		With: scalarMap(raw.With),
		Env:  scalarMap(raw.Env),
	}, nil
}

func scalarMap(nodes map[string]yaml.Node) map[string]string {
	if len(nodes) == 0 {
		return nil
	}

	values := make(map[string]string, len(nodes))
	for key, node := range nodes {
		if node.Kind == yaml.ScalarNode {
			values[key] = node.Value
		}
	}

	return values
}
