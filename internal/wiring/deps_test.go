package wiring_test

import (
	"testing"

	"github.com/grindlemire/graft"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orrery/internal/app"
	_ "go.trai.ch/orrery/internal/wiring"
)

// TestGraftDependencies checks that every node declaring a dependency
// actually uses it.
func TestGraftDependencies(t *testing.T) {
	// AssertDepsValid infers dependency IDs from the package of the type
	// passed to Dep[T]. Every adapter node provides a ports interface, so the
	// analysis sees them all as one "ports" node.
	t.Skip("graft static analysis cannot tell apart nodes that provide ports interfaces")
	graft.AssertDepsValid(t, "../../internal")
}

// TestGraph_ResolvesComponents builds the real graph the entry point uses.
func TestGraph_ResolvesComponents(t *testing.T) {
	components, _, err := graft.ExecuteFor[*app.Components](t.Context())
	require.NoError(t, err)
	require.NotNil(t, components.App)
	require.NotNil(t, components.Logger)
}
