package typecache_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/vesselframework/vessel/internal/reflection"
	"github.com/vesselframework/vessel/internal/typecache"
)

type wired struct {
	reflection.In

	DB      *database
	Session *database `name:"session" optional:"true"`
	skipped *database
}

type database struct{}

func TestGet(t *testing.T) {
	t.Run("classifies kinds", func(t *testing.T) {
		t.Parallel()

		info := typecache.Get(reflect.TypeOf(""))
		assert.True(t, info.IsPrimitive)
		assert.False(t, info.CanBeNil)

		info = typecache.Get(reflect.TypeOf(&database{}))
		assert.True(t, info.IsPointer)
		assert.True(t, info.CanBeNil)
		assert.Equal(t, reflect.TypeOf(database{}), info.ElementType)

		info = typecache.Get(reflect.TypeOf([]*database{}))
		assert.True(t, info.IsSlice)

		info = typecache.Get(reflect.TypeOf(map[string]*database{}))
		assert.Equal(t, reflect.TypeOf(""), info.KeyType)
	})

	t.Run("captures function metadata", func(t *testing.T) {
		t.Parallel()

		fn := func(db *database) (*database, error) { return db, nil }
		info := typecache.Get(reflect.TypeOf(fn))

		assert.True(t, info.IsFunc)
		assert.Equal(t, 1, info.NumIn)
		assert.Equal(t, 2, info.NumOut)
		assert.True(t, info.HasErrorReturn)
	})

	t.Run("captures struct fields with wiring tags", func(t *testing.T) {
		t.Parallel()

		info := typecache.Get(reflect.TypeOf(wired{}))
		require.True(t, info.IsStruct)
		assert.True(t, info.HasInField)
		require.Len(t, info.Fields, 4)

		byName := map[string]*typecache.FieldInfo{}
		for _, f := range info.Fields {
			byName[f.Name] = f
		}

		assert.True(t, byName["In"].IsAnonymous)
		assert.True(t, byName["DB"].IsExported)
		assert.Equal(t, "session", byName["Session"].NameTag)
		assert.True(t, byName["Session"].Optional)
		assert.False(t, byName["skipped"].IsExported)
	})

	t.Run("returns the same entry for repeated lookups", func(t *testing.T) {
		t.Parallel()

		first := typecache.Get(reflect.TypeOf(database{}))
		second := typecache.Get(reflect.TypeOf(database{}))
		assert.Same(t, first, second)
	})

	t.Run("nil types yield nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, typecache.Get(nil))
	})
}

func TestMarkers(t *testing.T) {
	t.Parallel()

	assert.True(t, typecache.IsInMarker(reflect.TypeOf(reflection.In{})))
	assert.True(t, typecache.IsOutMarker(reflect.TypeOf(reflection.Out{})))
	assert.True(t, typecache.IsInMarker(reflect.TypeOf(dig.In{})))
	assert.True(t, typecache.IsOutMarker(reflect.TypeOf(dig.Out{})))
	assert.False(t, typecache.IsInMarker(reflect.TypeOf(database{})))
	assert.False(t, typecache.IsInMarker(nil))
}

func TestFormatType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "typecache_test.database", typecache.FormatType(reflect.TypeOf(database{})))
	assert.Equal(t, "*typecache_test.database", typecache.FormatType(reflect.TypeOf(&database{})))
	assert.Equal(t, "[]*typecache_test.database", typecache.FormatType(reflect.TypeOf([]*database{})))
	assert.Equal(t, "map[string]typecache_test.database", typecache.FormatType(reflect.TypeOf(map[string]database{})))
	assert.Equal(t, "string", typecache.FormatType(reflect.TypeOf("")))
	assert.Equal(t, "<nil>", typecache.FormatType(nil))
}
