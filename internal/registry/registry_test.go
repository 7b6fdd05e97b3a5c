package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowrun/flowengine/pkg/flow"
)

type stubFlow struct {
	name    string
	version int
}

func (s stubFlow) Name() string { return s.name }

func (s stubFlow) Run(ctx context.Context, input any, rc *flow.RunContext) <-chan flow.Emission {
	out := make(chan flow.Emission)
	close(out)
	return out
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()
	r.Register(stubFlow{name: "echo"})

	f, err := r.Get("echo")
	require.NoError(t, err)
	require.Equal(t, "echo", f.Name())
}

func TestRegistry_GetUnknownFlow(t *testing.T) {
	r := New()

	_, err := r.Get("missing")
	require.ErrorIs(t, err, ErrUnknownFlow)
}

func TestRegistry_RegisterOverwritesPriorName(t *testing.T) {
	r := New()
	r.Register(stubFlow{name: "echo", version: 1})
	r.Register(stubFlow{name: "echo", version: 2})

	f, err := r.Get("echo")
	require.NoError(t, err)
	require.Equal(t, "echo", f.Name())
	require.Equal(t, stubFlow{name: "echo", version: 2}, f)
}
