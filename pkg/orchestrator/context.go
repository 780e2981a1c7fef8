package orchestrator

import (
	"fmt"
	"sync"

	"github.com/rhuss/workbridge/pkg/api"
)

// StepContext holds the result of each step of one run. Every step is
// recorded at most once.
type StepContext struct {
	mu      sync.RWMutex
	results map[api.StepID]api.StepResult
}

// NewStepContext returns an empty context.
func NewStepContext() *StepContext {
	return &StepContext{results: make(map[api.StepID]api.StepResult, 5)}
}

// Set records the result of a step. Recording a step twice is a control
// flow defect and returns an error.
func (c *StepContext) Set(r api.StepResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.results[r.Step]; ok {
		return fmt.Errorf("step %s (%s) recorded twice", r.Step, r.Step.String())
	}
	c.results[r.Step] = r
	return nil
}

// Get returns the result of a step and whether the step has run.
func (c *StepContext) Get(id api.StepID) (api.StepResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[id]
	return r, ok
}

// Reference returns the artifact of a step if it succeeded.
func (c *StepContext) Reference(id api.StepID) (*api.ArtifactReference, bool) {
	r, ok := c.Get(id)
	if !ok || !r.Succeeded() {
		return nil, false
	}
	return r.Reference, true
}

// Len returns the number of recorded steps.
func (c *StepContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
