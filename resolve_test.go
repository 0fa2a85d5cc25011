package vessel_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframework/vessel"
	"github.com/vesselframework/vessel/internal/testutil"
)

func TestResolve(t *testing.T) {
	t.Run("resolves by type", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		require.NoError(t, c.Register(vessel.NewDefinition("store", testutil.NewMemoryStore)))

		store, err := vessel.Resolve[*testutil.MemoryStore](c)
		require.NoError(t, err)
		assert.NotNil(t, store)

		// Interface lookups find the same singleton.
		iface, err := vessel.Resolve[testutil.Store](c)
		require.NoError(t, err)
		assert.Same(t, store, iface)
	})

	t.Run("misses surface as errors", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		_, err := vessel.Resolve[*testutil.MemoryStore](c)
		assert.ErrorIs(t, err, vessel.ErrNotFound)
	})
}

func TestResolveNamed(t *testing.T) {
	t.Run("checks the type", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		require.NoError(t, c.Register(vessel.NewDefinition("store", testutil.NewMemoryStore)))

		_, err := vessel.ResolveNamed[*testutil.Service](c, "store")
		var mismatch vessel.TypeMismatchError
		require.ErrorAs(t, err, &mismatch)
	})
}

func TestMustResolve(t *testing.T) {
	t.Run("returns the component", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		require.NoError(t, c.Register(vessel.NewDefinition("store", testutil.NewMemoryStore)))
		assert.NotNil(t, vessel.MustResolve[*testutil.MemoryStore](c))
	})

	t.Run("panics on failure", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		assert.Panics(t, func() {
			vessel.MustResolve[*testutil.MemoryStore](c)
		})
	})
}

func TestDependencyDescriptor(t *testing.T) {
	t.Parallel()

	store := vessel.DescriptorFor(reflect.TypeOf(&testutil.MemoryStore{}))
	assert.True(t, store.Required)
	assert.Contains(t, store.String(), "MemoryStore")

	qualified := vessel.DependencyDescriptor{Type: store.Type, Qualifier: "primary"}
	assert.Contains(t, qualified.String(), "qualifier primary")

	named := vessel.DependencyDescriptor{Type: store.Type, Name: "db"}
	assert.Contains(t, named.String(), "(db)")
}
