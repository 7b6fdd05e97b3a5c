package flow

import "context"

// Typed adapts a strongly-typed flow implementation to the erased Flow
// interface the executor works against. Authors write Run against concrete
// I/E/R types; Typed down-casts the input on entry and up-casts elements
// and the result on the way out, so the executor never needs generics.
type Typed[I, E, R any] struct {
	name string
	run  func(ctx context.Context, input I, rc *TypedRunContext[R]) <-chan TypedEmission[E]
}

// NewTyped builds a Flow from a strongly-typed run function.
func NewTyped[I, E, R any](
	name string,
	run func(ctx context.Context, input I, rc *TypedRunContext[R]) <-chan TypedEmission[E],
) *Typed[I, E, R] {
	return &Typed[I, E, R]{name: name, run: run}
}

func (t *Typed[I, E, R]) Name() string { return t.name }

func (t *Typed[I, E, R]) Run(ctx context.Context, input any, rc *RunContext) <-chan Emission {
	out := make(chan Emission)

	typedInput, _ := input.(I)
	typedRC := &TypedRunContext[R]{erased: rc}

	go func() {
		defer close(out)
		for em := range t.run(ctx, typedInput, typedRC) {
			out <- Emission{Element: em.Element, Err: em.Err}
		}
	}()

	return out
}

// TypedEmission mirrors Emission with a concrete element type E.
type TypedEmission[E any] struct {
	Element E
	Err     error
}

// TypedRunContext mirrors RunContext with a concrete result type R.
type TypedRunContext[R any] struct {
	erased *RunContext
}

func (t *TypedRunContext[R]) SetResult(v R) {
	t.erased.SetResult(v)
}
