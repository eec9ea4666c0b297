package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/internal/metrics"
)

func TestNewRegistersAllCollectorsWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	pending := 0

	m := metrics.New(reg, func() int { return pending })
	require.NotNil(t, m)

	m.CacheHits.Inc()
	m.CacheMisses.Inc()
	m.AssociationsActive.Set(3)
	m.AssociationsOpened.WithLabelValues("scu", "accepted").Inc()
	m.CMoveDuration.Observe(0.25)
	m.HTTPRequestsTotal.WithLabelValues("/studies", "2xx").Inc()
	m.HTTPRequestDuration.WithLabelValues("/studies").Observe(0.01)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestTrackerPendingGaugeFuncReflectsCallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	pending := 5

	metrics.New(reg, func() int { return pending })

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "dicom_gateway_tracker_pending" {
			found = true
			require.Len(t, f.Metric, 1)
			var g *dto.Gauge = f.Metric[0].Gauge
			assert.Equal(t, float64(5), g.GetValue())
		}
	}
	assert.True(t, found, "expected dicom_gateway_tracker_pending metric family")
}
