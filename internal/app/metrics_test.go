package app

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				out[f.GetName()] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				out[f.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	return out
}

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Observe(Gauges{Participants: 3, VoiceRooms: 1, Peers: 2, Transports: 4, Producers: 2, Consumers: 2})
	m.SignalError("ProducerNotFound")
	m.SignalError("RateLimited")
	m.TeacherDeparted()

	got := gathered(t, reg)
	assert.Equal(t, 3.0, got["classroom_participants"])
	assert.Equal(t, 4.0, got["classroom_transports"])
	assert.Equal(t, 2.0, got["classroom_signal_errors_total"])
	assert.Equal(t, 1.0, got["classroom_teacher_departures_total"])
	assert.Equal(t, 0.0, got["classroom_grace_purges_total"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe(Gauges{Participants: 1})
		m.SignalError("x")
		m.TeacherDeparted()
		m.GracePurged()
		m.Kicked()
	})
}
