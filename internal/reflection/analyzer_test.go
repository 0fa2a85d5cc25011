package reflection_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/vesselframework/vessel/internal/reflection"
)

type database struct{}
type cache struct{}

type service struct {
	db *database
}

func newService(db *database) *service { return &service{db: db} }

func newServiceErr(db *database) (*service, error) { return &service{db: db}, nil }

type serviceParams struct {
	reflection.In

	DB       *database
	Cache    *cache  `optional:"true"`
	Named    *cache  `name:"sessionCache"`
	Ignored  *cache  `inject:"-"`
	internal *cache
}

type digParams struct {
	dig.In

	DB *database
}

type serviceResults struct {
	reflection.Out

	Primary *service
	Named   *cache `name:"sessionCache"`
}

func newFromParams(p serviceParams) *service { return &service{db: p.DB} }

func newResults() serviceResults { return serviceResults{} }

func TestAnalyzer_Analyze(t *testing.T) {
	t.Run("plain constructors", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		info, err := a.Analyze(newService)
		require.NoError(t, err)

		assert.True(t, info.IsFunc)
		assert.False(t, info.IsParamObject)
		require.Len(t, info.Parameters, 1)
		assert.Equal(t, reflect.TypeOf(&database{}), info.Parameters[0].Type)
		require.Len(t, info.Returns, 1)
		assert.False(t, info.HasErrorReturn)
	})

	t.Run("error returns are recognised", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		info, err := a.Analyze(newServiceErr)
		require.NoError(t, err)

		assert.True(t, info.HasErrorReturn)
		require.Len(t, info.Returns, 2)
		assert.False(t, info.Returns[0].IsError)
		assert.True(t, info.Returns[1].IsError)
	})

	t.Run("parameter objects expand into fields", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		info, err := a.Analyze(newFromParams)
		require.NoError(t, err)

		assert.True(t, info.IsParamObject)
		require.Len(t, info.Parameters, 3) // DB, Cache, Named; marker, inject:"-" and unexported skipped

		byName := map[string]reflection.ParameterInfo{}
		for _, p := range info.Parameters {
			byName[p.Name] = p
		}

		assert.False(t, byName["DB"].Optional)
		assert.True(t, byName["Cache"].Optional)
		assert.Equal(t, "sessionCache", byName["Named"].RefName)
		assert.NotContains(t, byName, "Ignored")
	})

	t.Run("dig markers are interchangeable", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		info, err := a.Analyze(func(p digParams) *service { return &service{db: p.DB} })
		require.NoError(t, err)

		assert.True(t, info.IsParamObject)
		require.Len(t, info.Parameters, 1)
		assert.Equal(t, "DB", info.Parameters[0].Name)
	})

	t.Run("result objects expand into fields", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		info, err := a.Analyze(newResults)
		require.NoError(t, err)

		assert.True(t, info.IsResultObject)
		require.Len(t, info.Returns, 2)

		names := []string{info.Returns[0].Name, info.Returns[1].Name}
		assert.ElementsMatch(t, []string{"Primary", "sessionCache"}, names)
	})

	t.Run("non-functions are instances", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		instance := &service{}
		info, err := a.Analyze(instance)
		require.NoError(t, err)

		assert.False(t, info.IsFunc)
		assert.Same(t, instance, info.InstanceValue)
	})

	t.Run("nil constructors fail", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		_, err := a.Analyze(nil)
		assert.Error(t, err)

		var fn func() *service
		_, err = a.Analyze(fn)
		assert.Error(t, err)
	})

	t.Run("results are cached per function", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		first, err := a.Analyze(newService)
		require.NoError(t, err)
		second, err := a.Analyze(newService)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, a.CacheSize())

		a.Clear()
		assert.Equal(t, 0, a.CacheSize())
	})
}

func TestAnalyzer_ComponentType(t *testing.T) {
	t.Run("first non-error return", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		ct, err := a.ComponentType(newServiceErr)
		require.NoError(t, err)
		assert.Equal(t, reflect.TypeOf(&service{}), ct)
	})

	t.Run("instances report their own type", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		ct, err := a.ComponentType(&service{})
		require.NoError(t, err)
		assert.Equal(t, reflect.TypeOf(&service{}), ct)
	})

	t.Run("result objects report the struct type", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		ct, err := a.ComponentType(newResults)
		require.NoError(t, err)
		assert.Equal(t, reflect.TypeOf(serviceResults{}), ct)
	})

	t.Run("void constructors fail", func(t *testing.T) {
		t.Parallel()

		a := reflection.New()
		_, err := a.ComponentType(func() {})
		assert.Error(t, err)
	})
}
