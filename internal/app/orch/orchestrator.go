package orch

import (
	"sync"
	"time"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/app/voice"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultGraceWindow is how long participants may linger in a room after its
// teacher left before they are purged from the registry.
const DefaultGraceWindow = 5 * time.Minute

// Orchestrator is the session manager handed to every signaling handler. It
// keeps the presence plane (Registry) and the voice plane (Voice) of a room
// consistent and drives the media engine.
type Orchestrator struct {
	Registry *app.Registry
	Voice    *voice.Manager
	Engine   core.MediaEngine
	Store    core.ParticipantStore
	Policy   app.Policy
	Metrics  *app.Metrics

	GraceWindow  time.Duration
	StoreTimeout time.Duration

	mu    sync.Mutex
	grace map[domain.RoomID]*graceTimer
}

type graceTimer struct {
	timer *time.Timer
}

// Bind finishes wiring: defaults, grace timers and the engine's own
// transport-closed signal. It must be called once before serving.
func (o *Orchestrator) Bind() *Orchestrator {
	if o.Registry == nil {
		o.Registry = app.NewRegistry()
	}
	if o.Voice == nil {
		o.Voice = voice.NewManager()
	}
	if o.GraceWindow <= 0 {
		o.GraceWindow = DefaultGraceWindow
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	o.grace = make(map[domain.RoomID]*graceTimer)
	if o.Engine != nil {
		o.Engine.OnTransportClosed(o.onTransportClosed)
	}
	return o
}

func (o *Orchestrator) send(conn core.ConnID, typ string, data any) bool {
	sig, ok := o.Registry.Signal(conn)
	if !ok {
		return false
	}
	f, err := core.EncodeEvent(typ, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", typ).Msg("encode event")
		return false
	}
	if err := sig.TrySend(f); err != nil {
		o.OnBackpressure(conn)
		return false
	}
	return true
}

func (o *Orchestrator) sendAll(conns []core.ConnID, typ string, data any) core.PublishResult {
	res := core.PublishResult{}
	for _, c := range conns {
		if o.send(c, typ, data) {
			res.SendTo++
		} else {
			res.Dropped = append(res.Dropped, c)
		}
	}
	log.Debug().Str("module", "orch").Str("type", typ).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// broadcastRoom sends to the presence broadcast group of room.
func (o *Orchestrator) broadcastRoom(room domain.RoomID, typ string, data any) core.PublishResult {
	members := o.Registry.MembersOfRoom(room)
	conns := make([]core.ConnID, 0, len(members))
	for _, m := range members {
		conns = append(conns, m.Conn)
	}
	return o.sendAll(conns, typ, data)
}

// OnBackpressure applies the policy to a connection whose send buffer is full.
func (o *Orchestrator) OnBackpressure(conn core.ConnID) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(conn) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("conn", string(conn)).Msg("send buffer full, kicking")
		o.Metrics.Kicked()
		o.Registry.Cancel(conn)
	case app.MarkSlow, app.DropFrame, app.NoAction:
	}
}

func (o *Orchestrator) observe() {
	if o.Metrics == nil {
		return
	}
	s := o.Voice.Stats()
	o.Metrics.Observe(app.Gauges{
		Participants: o.Registry.Count(),
		VoiceRooms:   s.Rooms,
		Peers:        s.Peers,
		Transports:   s.Transports,
		Producers:    s.Producers,
		Consumers:    s.Consumers,
	})
}

// Shutdown stops pending grace timers.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for room, g := range o.grace {
		g.timer.Stop()
		delete(o.grace, room)
	}
}
