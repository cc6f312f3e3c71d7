// Package providertest provides a scripted completion provider for tests.
package providertest

import (
	"context"
	"sync"

	"github.com/storyforge/storyforge/internal/provider/domain"
)

// Step is one scripted provider outcome.
type Step struct {
	Response domain.CompletionResponse
	Err      error
}

// Fake replays scripted steps in order; once the script is exhausted it keeps
// returning the last step. It records every request it saw.
type Fake struct {
	mu       sync.Mutex
	name     string
	steps    []Step
	calls    int
	Requests []domain.CompletionRequest
}

func New(steps ...Step) *Fake {
	return &Fake{name: "fake", steps: steps}
}

func (f *Fake) WithName(name string) *Fake {
	f.name = name
	return f
}

func (f *Fake) Name() string { return f.name }

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Complete(_ context.Context, req domain.CompletionRequest) (domain.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req)
	idx := f.calls
	f.calls++

	if len(f.steps) == 0 {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindTransient, "no scripted steps", nil)
	}
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	step := f.steps[idx]
	return step.Response, step.Err
}
