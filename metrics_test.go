package vessel_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframework/vessel"
	"github.com/vesselframework/vessel/internal/testutil"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metric:
		for _, m := range family.GetMetric() {
			for key, want := range labels {
				if !hasLabel(m, key, want) {
					continue metric
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, key, value string) bool {
	for _, pair := range m.GetLabel() {
		if pair.GetName() == key && pair.GetValue() == value {
			return true
		}
	}
	return false
}

func TestContainer_Metrics(t *testing.T) {
	t.Run("counts creations and resolutions", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		c := vessel.New(vessel.WithMetrics(reg))
		require.NoError(t, c.Register(vessel.NewDefinition("store", testutil.NewMemoryStore)))

		_, err := c.Get("store")
		require.NoError(t, err)
		_, err = c.Get("store") // cached, resolves again but creates nothing
		require.NoError(t, err)
		_, err = c.Get("ghost")
		require.Error(t, err)

		assert.Equal(t, float64(1), gatherValue(t, reg, "vessel_components_created_total", nil))
		assert.Equal(t, float64(2), gatherValue(t, reg, "vessel_resolutions_total", map[string]string{"outcome": "success"}))
		assert.Equal(t, float64(1), gatherValue(t, reg, "vessel_resolutions_total", map[string]string{"outcome": "error"}))
	})

	t.Run("tracks the singleton gauge", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		c := vessel.New(vessel.WithMetrics(reg))
		require.NoError(t, c.Register(vessel.NewDefinition("store", testutil.NewMemoryStore)))

		assert.Equal(t, float64(0), gatherValue(t, reg, "vessel_active_singletons", nil))

		_, err := c.Get("store")
		require.NoError(t, err)
		assert.Equal(t, float64(1), gatherValue(t, reg, "vessel_active_singletons", nil))
	})

	t.Run("observes the merged-definition cache", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		c := vessel.New(vessel.WithMetrics(reg))
		require.NoError(t, c.Register(vessel.NewDefinition("store", testutil.NewMemoryStore)))

		_, err := c.Registry().Merged("store")
		require.NoError(t, err)
		_, err = c.Registry().Merged("store")
		require.NoError(t, err)

		assert.Equal(t, float64(1), gatherValue(t, reg, "vessel_merged_cache_misses_total", nil))
		assert.GreaterOrEqual(t, gatherValue(t, reg, "vessel_merged_cache_hits_total", nil), float64(1))
	})

	t.Run("metrics stay optional", func(t *testing.T) {
		t.Parallel()

		c := vessel.New()
		require.NoError(t, c.Register(vessel.NewDefinition("store", testutil.NewMemoryStore)))
		_, err := c.Get("store")
		assert.NoError(t, err)
	})
}
