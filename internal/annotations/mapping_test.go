package annotations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframework/vessel/internal/annotations"
)

// newStereotypeRegistry builds a three-level hierarchy:
//
//	restEndpoint -> controller -> component
//
// with a mirror pair on restEndpoint (value/path) and a cross alias from
// controller.name to component.name.
func newStereotypeRegistry(t *testing.T) *annotations.Registry {
	t.Helper()

	reg := annotations.NewRegistry()

	require.NoError(t, reg.Register(&annotations.Type{
		Name: "component",
		Attributes: map[string]annotations.Attribute{
			"name":  {Name: "name", Kind: annotations.StringKind},
			"scope": {Name: "scope", Kind: annotations.StringKind, Default: "singleton"},
		},
	}))

	require.NoError(t, reg.Register(&annotations.Type{
		Name: "controller",
		Attributes: map[string]annotations.Attribute{
			"name": {
				Name: "name",
				Kind: annotations.StringKind,
				AliasFor: &annotations.AliasRef{
					Annotation: "component",
					Attribute:  "name",
				},
			},
		},
		MetaAnnotations: []annotations.Instance{
			{TypeName: "component", Values: map[string]any{}},
		},
	}))

	require.NoError(t, reg.Register(&annotations.Type{
		Name: "restEndpoint",
		Attributes: map[string]annotations.Attribute{
			"value": {Name: "value", Kind: annotations.StringKind, Default: "", AliasFor: &annotations.AliasRef{Attribute: "path"}},
			"path":  {Name: "path", Kind: annotations.StringKind, Default: ""},
			"name": {
				Name: "name",
				Kind: annotations.StringKind,
				AliasFor: &annotations.AliasRef{
					Annotation: "controller",
					Attribute:  "name",
				},
			},
		},
		MetaAnnotations: []annotations.Instance{
			{TypeName: "controller", Values: map[string]any{}},
		},
	}))

	return reg
}

func TestMappingsFor(t *testing.T) {
	t.Run("walks the hierarchy breadth-first", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		tm, err := reg.MappingsFor("restEndpoint")
		require.NoError(t, err)
		require.Len(t, tm.Mappings, 3)

		root, ok := tm.Get("restEndpoint")
		require.True(t, ok)
		assert.Equal(t, 0, root.Distance)
		assert.Nil(t, root.Source)

		controller, ok := tm.Get("controller")
		require.True(t, ok)
		assert.Equal(t, 1, controller.Distance)
		require.NotNil(t, controller.Source)
		assert.Equal(t, "controller", controller.Source.TypeName)

		component, ok := tm.Get("component")
		require.True(t, ok)
		assert.Equal(t, 2, component.Distance)
	})

	t.Run("computes mirror sets", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		tm, err := reg.MappingsFor("restEndpoint")
		require.NoError(t, err)

		root, _ := tm.Get("restEndpoint")
		require.Len(t, root.MirrorSets, 1)
		assert.Equal(t, []string{"path", "value"}, root.MirrorSets[0])
	})

	t.Run("caches results per root", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		first, err := reg.MappingsFor("restEndpoint")
		require.NoError(t, err)
		second, err := reg.MappingsFor("restEndpoint")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("unknown roots fail", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)
		_, err := reg.MappingsFor("ghost")
		assert.ErrorIs(t, err, annotations.ErrTypeNotRegistered)
	})

	t.Run("unknown meta-annotations fail", func(t *testing.T) {
		t.Parallel()

		reg := annotations.NewRegistry()
		require.NoError(t, reg.Register(&annotations.Type{
			Name: "dangling",
			MetaAnnotations: []annotations.Instance{
				{TypeName: "ghost"},
			},
		}))

		_, err := reg.MappingsFor("dangling")
		assert.ErrorIs(t, err, annotations.ErrTypeNotRegistered)
	})

	t.Run("recursive meta-annotations terminate", func(t *testing.T) {
		t.Parallel()

		// a and b meta-annotate each other; the nearest occurrence wins and
		// the walk stops instead of looping.
		reg := annotations.NewRegistry()
		require.NoError(t, reg.Register(&annotations.Type{
			Name:            "a",
			MetaAnnotations: []annotations.Instance{{TypeName: "b"}},
		}))
		require.NoError(t, reg.Register(&annotations.Type{
			Name:            "b",
			MetaAnnotations: []annotations.Instance{{TypeName: "a"}},
		}))

		tm, err := reg.MappingsFor("a")
		require.NoError(t, err)
		assert.Len(t, tm.Mappings, 2)
	})

	t.Run("alias targets outside the hierarchy fail", func(t *testing.T) {
		t.Parallel()

		reg := annotations.NewRegistry()
		require.NoError(t, reg.Register(&annotations.Type{
			Name: "component",
			Attributes: map[string]annotations.Attribute{
				"name": {Name: "name", Kind: annotations.StringKind},
			},
		}))
		require.NoError(t, reg.Register(&annotations.Type{
			Name: "loner",
			Attributes: map[string]annotations.Attribute{
				"name": {
					Name: "name",
					Kind: annotations.StringKind,
					AliasFor: &annotations.AliasRef{
						Annotation: "component",
						Attribute:  "name",
					},
				},
			},
			// No meta-annotation makes component reachable.
		}))

		_, err := reg.MappingsFor("loner")
		var aliasErr *annotations.AliasConfigurationError
		assert.ErrorAs(t, err, &aliasErr)
	})

	t.Run("alias chains follow through to the terminal attribute", func(t *testing.T) {
		t.Parallel()

		reg := newStereotypeRegistry(t)

		// restEndpoint.name -> controller.name -> component.name; merging an
		// instance proves the chain lands on component.
		merged, err := annotations.Merge(reg, annotations.Element{
			Annotations: []annotations.Instance{
				{TypeName: "restEndpoint", Values: map[string]any{"name": "orders"}},
			},
		})
		require.NoError(t, err)

		name, err := merged.Get("component").GetString("name")
		require.NoError(t, err)
		assert.Equal(t, "orders", name)
	})
}
