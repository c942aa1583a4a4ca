package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges is a point-in-time count of coordinator state.
type Gauges struct {
	Participants int
	VoiceRooms   int
	Peers        int
	Transports   int
	Producers    int
	Consumers    int
}

// Metrics exports coordinator state to Prometheus. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	participants prometheus.Gauge
	voiceRooms   prometheus.Gauge
	peers        prometheus.Gauge
	transports   prometheus.Gauge
	producers    prometheus.Gauge
	consumers    prometheus.Gauge

	signalErrors      *prometheus.CounterVec
	teacherDepartures prometheus.Counter
	gracePurges       prometheus.Counter
	kicked            prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Namespace: "classroom", Name: name, Help: help})
	}
	return &Metrics{
		participants: gauge("participants", "Participants present in the session registry"),
		voiceRooms:   gauge("voice_rooms", "Live voice rooms"),
		peers:        gauge("voice_peers", "Connections joined to a voice room"),
		transports:   gauge("transports", "Open media transports"),
		producers:    gauge("producers", "Live producers"),
		consumers:    gauge("consumers", "Live consumers"),
		signalErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroom",
			Name:      "signal_errors_total",
			Help:      "Signaling requests answered with an error, by kind",
		}, []string{"kind"}),
		teacherDepartures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "classroom",
			Name:      "teacher_departures_total",
			Help:      "Teacher departures that started a grace window",
		}),
		gracePurges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "classroom",
			Name:      "grace_purges_total",
			Help:      "Rooms purged after the teacher grace window elapsed",
		}),
		kicked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "classroom",
			Name:      "backpressure_kicks_total",
			Help:      "Connections dropped because their send buffer was full",
		}),
	}
}

func (m *Metrics) Observe(g Gauges) {
	if m == nil {
		return
	}
	m.participants.Set(float64(g.Participants))
	m.voiceRooms.Set(float64(g.VoiceRooms))
	m.peers.Set(float64(g.Peers))
	m.transports.Set(float64(g.Transports))
	m.producers.Set(float64(g.Producers))
	m.consumers.Set(float64(g.Consumers))
}

func (m *Metrics) SignalError(kind string) {
	if m == nil {
		return
	}
	m.signalErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) TeacherDeparted() {
	if m == nil {
		return
	}
	m.teacherDepartures.Inc()
}

func (m *Metrics) GracePurged() {
	if m == nil {
		return
	}
	m.gracePurges.Inc()
}

func (m *Metrics) Kicked() {
	if m == nil {
		return
	}
	m.kicked.Inc()
}
