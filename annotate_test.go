package vessel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframework/vessel"
	"github.com/vesselframework/vessel/internal/annotations"
	"github.com/vesselframework/vessel/internal/testutil"
)

func TestParseDirectives(t *testing.T) {
	t.Run("parses attributes and flags", func(t *testing.T) {
		t.Parallel()

		instances, err := vessel.ParseDirectives(
			`//vessel::component userStore -primary -priority=5 -scope=prototype -dependsOn=db,cache`,
		)
		require.NoError(t, err)
		require.Len(t, instances, 1)

		in := instances[0]
		assert.Equal(t, vessel.AnnotationComponent, in.TypeName)
		assert.Equal(t, "userStore", in.Values["name"])
		assert.Equal(t, true, in.Values["primary"])
		assert.Equal(t, 5, in.Values["priority"])
		assert.Equal(t, "prototype", in.Values["scope"])
		assert.Equal(t, []string{"db", "cache"}, in.Values["dependsOn"])
	})

	t.Run("rejects unknown annotation types", func(t *testing.T) {
		t.Parallel()

		_, err := vessel.ParseDirectives(`//vessel::mystery thing`)
		require.ErrorIs(t, err, annotations.ErrTypeNotRegistered)

		var parseErr *annotations.ParseError
		assert.ErrorAs(t, err, &parseErr)
	})

	t.Run("rejects unknown attributes", func(t *testing.T) {
		t.Parallel()

		_, err := vessel.ParseDirectives(`//vessel::component x -weight=3`)
		require.Error(t, err)
	})
}

func TestContainer_RegisterAnnotated(t *testing.T) {
	t.Run("builds a definition from component directives", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		require.NoError(t, c.RegisterAnnotated(testutil.NewMemoryStore,
			`//vessel::component userStore -primary -priority=3`,
		))

		def, ok := c.Registry().Definition("userStore")
		require.True(t, ok)
		require.NotNil(t, def.Primary)
		assert.True(t, *def.Primary)
		require.NotNil(t, def.Priority)
		assert.Equal(t, 3, *def.Priority)
		assert.Equal(t, vessel.ScopeSingleton, def.Scope)

		_, err := vessel.ResolveNamed[*testutil.MemoryStore](c, "userStore")
		require.NoError(t, err)
	})

	t.Run("stereotype name reaches the component view", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		require.NoError(t, c.RegisterAnnotated(testutil.NewMemoryStore,
			`//vessel::repository userStore`,
		))

		assert.True(t, c.Contains("userStore"))
	})

	t.Run("derives names from the component type", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		require.NoError(t, c.RegisterAnnotated(testutil.NewMemoryStore,
			`//vessel::component`,
		))

		assert.True(t, c.Contains("memoryStore"))
	})

	t.Run("undeclared flags stay unset", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		require.NoError(t, c.RegisterAnnotated(testutil.NewMemoryStore,
			`//vessel::component plainStore`,
		))

		def, ok := c.Registry().Definition("plainStore")
		require.True(t, ok)
		assert.Nil(t, def.Primary)
		assert.Nil(t, def.Priority)
		assert.Nil(t, def.LazyInit)
	})

	t.Run("directives survive onto the definition", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		require.NoError(t, c.RegisterAnnotated(testutil.NewMemoryStore,
			`//vessel::component metaStore -lazy`,
		))

		def, ok := c.Registry().Definition("metaStore")
		require.True(t, ok)
		require.Len(t, def.Annotations, 1)
		assert.Equal(t, vessel.AnnotationComponent, def.Annotations[0].TypeName)
		require.NotNil(t, def.LazyInit)
		assert.True(t, *def.LazyInit)
	})

	t.Run("rejects nil constructors and empty directive sets", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		assert.ErrorIs(t, c.RegisterAnnotated(nil, `//vessel::component x`), vessel.ErrConstructorNil)
		assert.Error(t, c.RegisterAnnotated(testutil.NewMemoryStore))
	})
}
