// Package flow runs an orchestrator operation as an ordered list of named steps.
package flow

import (
	"context"
	"fmt"
)

type Step[T any] struct {
	Name    string
	Execute func(ctx context.Context, state *T) error
}

func NewStep[T any](name string, execute func(ctx context.Context, state *T) error) Step[T] {
	return Step[T]{Name: name, Execute: execute}
}

type Flow[T any] struct {
	name  string
	steps []Step[T]
}

func New[T any](name string, steps ...Step[T]) *Flow[T] {
	return &Flow[T]{name: name, steps: steps}
}

func (f *Flow[T]) Name() string {
	return f.name
}

// Run executes the steps in order and stops at the first failure, wrapping it with the step
// name. The wrapped error stays inspectable with errors.Is and errors.As.
func (f *Flow[T]) Run(ctx context.Context, state *T) error {
	for _, step := range f.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %s step not started: %w", f.name, step.Name, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("%s: %s step failed: %w", f.name, step.Name, err)
		}
	}
	return nil
}

// Limiter bounds how many submissions are in flight at once.
type Limiter struct {
	slots chan struct{}
}

func NewLimiter(n int) *Limiter {
	return &Limiter{slots: make(chan struct{}, max(n, 1))}
}

// Do runs fn once a slot is free. The slot is released even if fn panics.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.slots }()
	return fn()
}
