package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DeliveriesTotal.WithLabelValues("prompt", "ok").Add(3)
	m.TriggersTotal.WithLabelValues("open", "performed").Inc()
	m.SummaryDuration.Observe(1.5)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("prompt", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TriggersTotal.WithLabelValues("open", "performed")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["standup_deliveries_total"])
	assert.True(t, names["standup_summary_duration_seconds"])
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
