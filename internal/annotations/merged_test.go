package annotations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframework/vessel/internal/annotations"
)

func TestMerge(t *testing.T) {
	t.Run("direct annotations are present at distance zero", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		merged, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "component", Values: map[string]any{"name": "store"}},
			},
		})
		require.NoError(t, err)

		ma := merged.Get("component")
		assert.True(t, ma.Present)
		assert.True(t, ma.DirectlyPresent())
		assert.Equal(t, 0, ma.Distance)

		name, err := ma.GetString("name")
		require.NoError(t, err)
		assert.Equal(t, "store", name)
	})

	t.Run("meta-annotations are present at their distance", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		merged, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "controller", Values: map[string]any{}},
			},
		})
		require.NoError(t, err)

		assert.True(t, merged.Present("controller"))
		assert.True(t, merged.Present("component"))
		assert.False(t, merged.Get("component").DirectlyPresent())
		assert.Equal(t, 1, merged.Get("component").Distance)
		assert.Equal(t, []string{"component", "controller"}, merged.TypeNames())
	})

	t.Run("absent types return the missing view", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		merged, err := annotations.Merge(reg, annotations.Element{})
		require.NoError(t, err)

		ma := merged.Get("component")
		assert.False(t, ma.Present)
		assert.False(t, ma.DirectlyPresent())
		_, err = ma.GetString("name")
		assert.Error(t, err)
	})

	t.Run("defaults fill undeclared attributes", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		merged, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "component", Values: map[string]any{"name": "store"}},
			},
		})
		require.NoError(t, err)

		ma := merged.Get("component")
		scope, err := ma.GetString("scope")
		require.NoError(t, err)
		assert.Equal(t, "singleton", scope)
		assert.True(t, ma.Declared("name"))
		assert.False(t, ma.Declared("scope"))
	})

	t.Run("nearest declaration wins across paths", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		merged, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "restEndpoint", Values: map[string]any{}}, // component at distance 2
				{TypeName: "component", Values: map[string]any{"name": "direct"}},
			},
		})
		require.NoError(t, err)

		ma := merged.Get("component")
		assert.Equal(t, 0, ma.Distance)
		name, err := ma.GetString("name")
		require.NoError(t, err)
		assert.Equal(t, "direct", name)
	})

	t.Run("unknown attributes fail the merge", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		_, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "component", Values: map[string]any{"weight": 3}},
			},
		})

		var attrErr *annotations.AttributeError
		assert.ErrorAs(t, err, &attrErr)
	})
}

func TestMerge_Mirrors(t *testing.T) {
	t.Run("a declared mirror member spreads across the set", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		merged, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "restEndpoint", Values: map[string]any{"value": "/orders"}},
			},
		})
		require.NoError(t, err)

		ma := merged.Get("restEndpoint")
		path, err := ma.GetString("path")
		require.NoError(t, err)
		assert.Equal(t, "/orders", path)
	})

	t.Run("agreeing mirror values are accepted", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		_, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "restEndpoint", Values: map[string]any{"value": "/orders", "path": "/orders"}},
			},
		})
		assert.NoError(t, err)
	})

	t.Run("conflicting mirror values fail", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		_, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "restEndpoint", Values: map[string]any{"value": "/orders", "path": "/users"}},
			},
		})

		var aliasErr *annotations.AliasConfigurationError
		assert.ErrorAs(t, err, &aliasErr)
	})
}

func TestMerge_CrossAliases(t *testing.T) {
	t.Run("alias values override the meta attribute", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		merged, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "controller", Values: map[string]any{"name": "orders"}},
			},
		})
		require.NoError(t, err)

		name, err := merged.Get("component").GetString("name")
		require.NoError(t, err)
		assert.Equal(t, "orders", name)
		assert.True(t, merged.Get("component").Declared("name"))
	})

	t.Run("the nearest alias declaration claims the slot", func(t *testing.T) {
		t.Parallel()

		// restEndpoint declares a name, and the meta controller instance on
		// restEndpoint does not; restEndpoint is nearer so it wins.
		reg := newStereotypeRegistry(t)
		merged, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "restEndpoint", Values: map[string]any{"name": "endpoint"}},
			},
		})
		require.NoError(t, err)

		name, err := merged.Get("component").GetString("name")
		require.NoError(t, err)
		assert.Equal(t, "endpoint", name)
	})
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	reg := newStereotypeRegistry(t)
	merged, err := annotations.Merge(reg, annotations.Element{
		Annotations: []annotations.Instance{
			{TypeName: "component", Values: map[string]any{"name": "store"}},
		},
	})
	require.NoError(t, err)

	syn := merged.Get("component").Synthesize()
	assert.Equal(t, "component", syn.TypeName)
	assert.Equal(t, "store", syn.String_("name"))
	assert.Equal(t, "singleton", syn.String_("scope"))
	assert.Equal(t, "", syn.String_("missing"))
	assert.Equal(t, 0, syn.Int("name")) // wrong kind reads as zero
	assert.Equal(t, []string{"name", "scope"}, syn.AttributeNames())
}
