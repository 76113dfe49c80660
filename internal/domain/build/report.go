package build

import (
	"slices"
	"time"
)

// Host describes the machine a build ran on.
type Host struct {
	OS     string   `yaml:"os"`
	Arch   string   `yaml:"arch"`
	Distro string   `yaml:"distro"`
	Tools  []string `yaml:"tools,omitempty"`
}

// Report is the outcome of one assembler invocation.
type Report struct {
	Version    string    `yaml:"version"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Host       Host      `yaml:"host"`
	Results    []Result  `yaml:"results"`
}

// Success reports whether at least one target produced an artifact.
func (r *Report) Success() bool {
	return slices.ContainsFunc(r.Results, func(result Result) bool {
		return result.Outcome == OutcomeSuccess
	})
}

// Count returns how many results ended with outcome.
func (r *Report) Count(outcome Outcome) int {
	count := 0

	for _, result := range r.Results {
		if result.Outcome == outcome {
			count++
		}
	}

	return count
}

// Artifacts returns the successful results in target order.
func (r *Report) Artifacts() []Result {
	artifacts := make([]Result, 0, len(r.Results))

	for _, result := range r.Results {
		if result.Outcome == OutcomeSuccess {
			artifacts = append(artifacts, result)
		}
	}

	return artifacts
}
