package sfu

import (
	"context"
	"sync"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// RelayManager keeps one Relay per producer.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[domain.ProducerID]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[domain.ProducerID]*Relay),
	}
}

// StartRelay creates a Relay for the producer and starts its loop.
func (m *RelayManager) StartRelay(ctx context.Context, id domain.ProducerID, src RTPSource) *Relay {
	logger := log.With().
		Str("module", "relay").
		Str("producer", string(id)).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, cancel)

	m.mu.Lock()
	if old, ok := m.relays[id]; ok {
		logger.Info().Msg("replacing existing relay for producer")
		old.markAllDelete()
		old.cancel()
	}
	m.relays[id] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")

	go relay.loop(relayCtx, &logger)
	return relay
}

// AddSubscriber attaches a muted OutTrack for consumer to the producer's relay.
func (m *RelayManager) AddSubscriber(producer domain.ProducerID, consumer domain.ConsumerID, sink RTPSink) bool {
	m.mu.RLock()
	relay, ok := m.relays[producer]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	relay.AddOutTrack(consumer, NewOutTrack(sink))
	return true
}

// ResumeSubscriber lets packets flow to a consumer.
func (m *RelayManager) ResumeSubscriber(producer domain.ProducerID, consumer domain.ConsumerID) bool {
	ot, ok := m.outTrack(producer, consumer)
	if !ok {
		return false
	}
	ot.MarkOk()
	return ot.GetState() == TrackStateOk
}

// MarkSubscriberDelete marks the consumer's OutTrack as TrackStateDelete.
func (m *RelayManager) MarkSubscriberDelete(producer domain.ProducerID, consumer domain.ConsumerID) {
	if ot, ok := m.outTrack(producer, consumer); ok {
		ot.MarkDelete()
	}
}

func (m *RelayManager) outTrack(producer domain.ProducerID, consumer domain.ConsumerID) (*OutTrack, bool) {
	m.mu.RLock()
	relay, ok := m.relays[producer]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return relay.outTrack(consumer)
}

// SetPaused stops or restarts forwarding for a whole producer.
func (m *RelayManager) SetPaused(id domain.ProducerID, paused bool) bool {
	m.mu.RLock()
	relay, ok := m.relays[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	relay.paused.Store(paused)
	return true
}

// StopRelay stops a relay and removes it from the manager.
func (m *RelayManager) StopRelay(id domain.ProducerID) {
	m.mu.Lock()
	relay, ok := m.relays[id]
	if ok {
		delete(m.relays, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.markAllDelete()
	relay.cancel()
}

// HasRelay reports whether a relay exists for the producer.
func (m *RelayManager) HasRelay(id domain.ProducerID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[id]
	return ok
}
