// Package actions implements ActionsCtl: the CI control plane that turns a
// pushed commit's workflow files into queued runs and jobs, dispatches
// those jobs to label-matching runners, and tracks runner liveness.
//
// Grounded on the teacher's domain/entities.go and domain/events.go
// (PipelineRun/PipelineEvent generalized to WorkflowRun/RunEvent) and
// secrets/core (Resolver, SecretString one-time-use/auto-clear) for the
// secret-injection seam.
package actions

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/catalyst-forge/forge-core/ferrors"
)

// ParsedStep is a single step of a workflow job. The control plane does not
// interpret step contents — runners do — so only the fields needed to
// render a job's execution plan are captured.
type ParsedStep struct {
	Name string            `yaml:"name"`
	Uses string            `yaml:"uses"`
	Run  string            `yaml:"run"`
	With map[string]string `yaml:"with"`
	Env  map[string]string `yaml:"env"`
}

// ParsedJob is a single job definition within a parsed workflow.
type ParsedJob struct {
	RunsOn         []string     `yaml:"-"`
	RunsOnRaw      yaml.Node    `yaml:"runs-on"`
	Needs          []string     `yaml:"needs"`
	TimeoutMinutes int          `yaml:"timeout-minutes"`
	Steps          []ParsedStep `yaml:"steps"`
}

// ParsedWorkflow is the minimal GitHub-Actions-compatible shape ActionsCtl
// understands: trigger events and a job graph.
type ParsedWorkflow struct {
	Name string               `yaml:"name"`
	On   TriggerSet           `yaml:"on"`
	Jobs map[string]ParsedJob `yaml:"jobs"`
}

// TriggerSet is the workflow's `on:` clause, which GitHub workflow YAML
// allows to be a single string, a list of strings, or a map keyed by event
// name — UnmarshalYAML normalizes all three into a string slice.
type TriggerSet []string

// UnmarshalYAML implements yaml.Unmarshaler, accepting string, sequence, or
// mapping node kinds for the `on:` clause.
func (t *TriggerSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*t = TriggerSet{s}
		return nil
	case yaml.SequenceNode:
		var s []string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*t = s
		return nil
	case yaml.MappingNode:
		events := make([]string, 0, len(node.Content)/2)
		for i := 0; i < len(node.Content); i += 2 {
			events = append(events, node.Content[i].Value)
		}
		*t = events
		return nil
	default:
		return fmt.Errorf("unsupported `on:` node kind %v", node.Kind)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler for ParsedJob, normalizing
// `runs-on:` (string or list) into RunsOn after the raw node is decoded.
func (j *ParsedJob) UnmarshalYAML(node *yaml.Node) error {
	type rawJob ParsedJob
	var raw rawJob
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*j = ParsedJob(raw)

	switch j.RunsOnRaw.Kind {
	case yaml.ScalarNode:
		j.RunsOn = []string{j.RunsOnRaw.Value}
	case yaml.SequenceNode:
		var labels []string
		if err := j.RunsOnRaw.Decode(&labels); err != nil {
			return err
		}
		j.RunsOn = labels
	}
	return nil
}

// ParseWorkflow parses source as a workflow YAML document. It is tolerant
// of unknown keys (fields ActionsCtl never interprets, like `permissions`
// or `concurrency`) since the control plane only needs
// trigger events and the job graph.
func ParseWorkflow(source []byte) (*ParsedWorkflow, error) {
	var wf ParsedWorkflow
	if err := yaml.Unmarshal(source, &wf); err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindInvalidInput, "ParseWorkflow")
	}
	if len(wf.Jobs) == 0 {
		return nil, ferrors.New(ferrors.KindInvalidInput, "ParseWorkflow", "workflow defines no jobs")
	}
	return &wf, nil
}

// MatchesTrigger reports whether the workflow declares interest in event.
func (w *ParsedWorkflow) MatchesTrigger(event string) bool {
	for _, e := range w.On {
		if e == event {
			return true
		}
	}
	return false
}
