package actions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWorkflowSingleTrigger(t *testing.T) {
	src := []byte(`
name: CI
on: push
jobs:
  build:
    runs-on: linux
    timeout-minutes: 10
    steps:
      - run: make test
`)
	wf, err := ParseWorkflow(src)
	require.NoError(t, err)
	require.Equal(t, "CI", wf.Name)
	require.Equal(t, []string{"push"}, []string(wf.On))
	require.True(t, wf.MatchesTrigger("push"))
	require.False(t, wf.MatchesTrigger("pull_request"))

	job, ok := wf.Jobs["build"]
	require.True(t, ok)
	require.Equal(t, []string{"linux"}, job.RunsOn)
	require.Equal(t, 10, job.TimeoutMinutes)
}

func TestParseWorkflowListAndMapTriggers(t *testing.T) {
	list := []byte(`
on: [push, pull_request]
jobs:
  build:
    runs-on: [linux, x64]
    steps: []
`)
	wf, err := ParseWorkflow(list)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"push", "pull_request"}, []string(wf.On))
	require.ElementsMatch(t, []string{"linux", "x64"}, wf.Jobs["build"].RunsOn)

	mapped := []byte(`
on:
  push:
    branches: [main]
  schedule:
    cron: "0 0 * * *"
jobs:
  build:
    runs-on: linux
    steps: []
`)
	wf2, err := ParseWorkflow(mapped)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"push", "schedule"}, []string(wf2.On))
}

func TestParseWorkflowRejectsNoJobs(t *testing.T) {
	_, err := ParseWorkflow([]byte("on: push\njobs: {}\n"))
	require.Error(t, err)
}

func TestParseWorkflowRejectsInvalidYAML(t *testing.T) {
	_, err := ParseWorkflow([]byte("not: [valid"))
	require.Error(t, err)
}
