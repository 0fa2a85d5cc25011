package vessel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframework/vessel"
	"github.com/vesselframework/vessel/internal/testutil"
)

func TestDefinition_Validate(t *testing.T) {
	t.Parallel()

	t.Run("accepts a named constructor", func(t *testing.T) {
		t.Parallel()
		def := vessel.NewDefinition("store", testutil.NewMemoryStore)
		assert.NoError(t, def.Validate())
	})

	t.Run("rejects empty names", func(t *testing.T) {
		t.Parallel()
		def := vessel.NewDefinition("", testutil.NewMemoryStore)
		assert.ErrorIs(t, def.Validate(), vessel.ErrNameEmpty)
	})

	t.Run("rejects nil constructors", func(t *testing.T) {
		t.Parallel()
		def := vessel.NewDefinition("store", nil)
		assert.ErrorIs(t, def.Validate(), vessel.ErrConstructorNil)
	})

	t.Run("allows children to omit both", func(t *testing.T) {
		t.Parallel()
		def := &vessel.Definition{Parent: "base"}
		assert.NoError(t, def.Validate())
	})

	t.Run("rejects nil definitions", func(t *testing.T) {
		t.Parallel()
		var def *vessel.Definition
		assert.ErrorIs(t, def.Validate(), vessel.ErrDefinitionNil)
	})
}

func TestDefinition_Clone(t *testing.T) {
	t.Parallel()

	original := vessel.NewDefinition("store", testutil.NewMemoryStore,
		vessel.WithPrimary(true),
		vessel.WithPriority(7),
		vessel.WithDependsOn("db"),
		vessel.WithProperty("Label", vessel.Literal("a")),
	)

	clone := original.Clone()
	require.NotSame(t, original, clone)

	// Mutating the clone leaves the original untouched.
	*clone.Primary = false
	*clone.Priority = 1
	clone.DependsOn[0] = "cache"
	clone.Properties[0].Field = "Other"

	assert.True(t, *original.Primary)
	assert.Equal(t, 7, *original.Priority)
	assert.Equal(t, []string{"db"}, original.DependsOn)
	assert.Equal(t, "Label", original.Properties[0].Field)
}

func TestDefinition_CloneNestedValues(t *testing.T) {
	t.Parallel()

	inner := vessel.NewDefinition("inner", testutil.NewMemoryStore)
	original := vessel.NewDefinition("outer", testutil.NewService,
		vessel.WithArgs(vessel.Nested(inner)))

	clone := original.Clone()
	nested, ok := clone.Args[0].IsNested()
	require.True(t, ok)
	require.NotSame(t, inner, nested)

	nested.Name = "renamed"
	assert.Equal(t, "inner", inner.Name)
}

func TestDefinition_Merge(t *testing.T) {
	t.Parallel()

	t.Run("child fields win where set", func(t *testing.T) {
		t.Parallel()

		parent := vessel.NewDefinition("base", testutil.NewMemoryStore,
			vessel.WithScope(vessel.ScopeSingleton),
			vessel.WithLazyInit(true),
			vessel.WithPriority(1),
			vessel.WithInitFunc("Warm"),
		)
		child := &vessel.Definition{
			Name:     "child",
			Parent:   "base",
			Scope:    vessel.ScopePrototype,
			Priority: intPtr(9),
		}

		merged := child.Merge(parent)
		assert.Equal(t, "child", merged.Name)
		assert.Equal(t, vessel.ScopePrototype, merged.Scope)
		assert.Equal(t, 9, *merged.Priority)
		// Unset child fields fall through.
		assert.True(t, *merged.LazyInit)
		assert.Equal(t, "Warm", merged.InitFunc)
		assert.NotNil(t, merged.Constructor)
	})

	t.Run("dependsOn unions parent-first", func(t *testing.T) {
		t.Parallel()

		parent := vessel.NewDefinition("base", testutil.NewMemoryStore,
			vessel.WithDependsOn("db", "cache"))
		child := &vessel.Definition{
			Name:      "child",
			Parent:    "base",
			DependsOn: []string{"cache", "queue"},
		}

		merged := child.Merge(parent)
		assert.Equal(t, []string{"db", "cache", "queue"}, merged.DependsOn)
	})

	t.Run("properties merge by field name", func(t *testing.T) {
		t.Parallel()

		parent := vessel.NewDefinition("base", testutil.NewMemoryStore,
			vessel.WithProperty("Label", vessel.Literal("base")),
			vessel.WithProperty("Region", vessel.Literal("us-east")),
		)
		child := &vessel.Definition{
			Name:       "child",
			Parent:     "base",
			Properties: []vessel.Property{{Field: "Label", Value: vessel.Literal("child")}},
		}

		merged := child.Merge(parent)
		require.Len(t, merged.Properties, 2)

		byField := map[string]vessel.Property{}
		for _, p := range merged.Properties {
			byField[p.Field] = p
		}
		assert.Contains(t, byField, "Label")
		assert.Contains(t, byField, "Region")
	})

	t.Run("a new constructor drops inherited args", func(t *testing.T) {
		t.Parallel()

		parent := vessel.NewDefinition("base", func(limit int) *testutil.MemoryStore {
			return testutil.NewMemoryStore()
		}, vessel.WithArgs(vessel.Literal(10)))
		child := &vessel.Definition{
			Name:        "child",
			Parent:      "base",
			Constructor: testutil.NewMemoryStore,
		}

		merged := child.Merge(parent)
		assert.Empty(t, merged.Args)
	})

	t.Run("child args replace parent args wholesale", func(t *testing.T) {
		t.Parallel()

		parent := vessel.NewDefinition("base", func(limit int) *testutil.MemoryStore {
			return testutil.NewMemoryStore()
		}, vessel.WithArgs(vessel.Literal(10)))
		child := &vessel.Definition{
			Name:   "child",
			Parent: "base",
			Args:   []vessel.Value{vessel.Literal(20)},
		}

		merged := child.Merge(parent)
		require.Len(t, merged.Args, 1)
		raw, ok := merged.Args[0].IsLiteral()
		require.True(t, ok)
		assert.Equal(t, 20, raw)
	})

	t.Run("nil parent clones the child", func(t *testing.T) {
		t.Parallel()

		child := vessel.NewDefinition("solo", testutil.NewMemoryStore)
		merged := child.Merge(nil)
		assert.NotSame(t, child, merged)
		assert.Equal(t, "solo", merged.Name)
	})
}

func TestValue_Forms(t *testing.T) {
	t.Parallel()

	t.Run("refs expose their target", func(t *testing.T) {
		t.Parallel()

		name, ok := vessel.Ref("store").IsRef()
		assert.True(t, ok)
		assert.Equal(t, "store", name)

		_, ok = vessel.Literal(1).IsRef()
		assert.False(t, ok)
	})

	t.Run("nested values expose their definition", func(t *testing.T) {
		t.Parallel()

		inner := vessel.NewDefinition("inner", testutil.NewMemoryStore)
		def, ok := vessel.Nested(inner).IsNested()
		assert.True(t, ok)
		assert.Same(t, inner, def)
	})
}

func intPtr(i int) *int { return &i }
