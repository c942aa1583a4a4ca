package orch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

var opusCaps = domain.RTPCapabilities{Codecs: []domain.RTPCodecCapability{{
	Kind: domain.KindAudio, MimeType: "audio/opus", PreferredPayloadType: 111, ClockRate: 48000, Channels: 2,
}}}

// gate parks one engine call until the test releases it.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

type fakeEngine struct {
	mu           sync.Mutex
	seq          int
	gates        map[string]*gate
	incompatible bool
	failConnect  error
	failPause    error
	onClosed     func(domain.TransportID)

	closedTransports []domain.TransportID
	closedProducers  []domain.ProducerID
	closedConsumers  []domain.ConsumerID
	died             chan error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{gates: make(map[string]*gate), died: make(chan error, 1)}
}

func (e *fakeEngine) hold(op string) *gate {
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	e.mu.Lock()
	e.gates[op] = g
	e.mu.Unlock()
	return g
}

func (e *fakeEngine) wait(op string) {
	e.mu.Lock()
	g, ok := e.gates[op]
	delete(e.gates, op)
	e.mu.Unlock()
	if ok {
		close(g.entered)
		<-g.release
	}
}

func (e *fakeEngine) next(prefix string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return fmt.Sprintf("%s%d", prefix, e.seq)
}

func (e *fakeEngine) RTPCapabilities() domain.RTPCapabilities { return opusCaps }

func (e *fakeEngine) CreateTransport(_ context.Context, _ domain.Direction) (domain.TransportParams, error) {
	e.wait("create")
	return domain.TransportParams{ID: domain.TransportID(e.next("T"))}, nil
}

func (e *fakeEngine) ConnectTransport(_ context.Context, _ domain.TransportID, _ domain.DTLSParameters, _ *domain.ICEParameters) error {
	e.wait("connect")
	return e.failConnect
}

func (e *fakeEngine) Produce(_ context.Context, _ domain.TransportID, _ domain.MediaKind, _ domain.RTPParameters) (domain.ProducerID, error) {
	e.wait("produce")
	return domain.ProducerID(e.next("P")), nil
}

func (e *fakeEngine) CanConsume(domain.ProducerID, domain.RTPCapabilities) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.incompatible
}

func (e *fakeEngine) Consume(_ context.Context, _ domain.TransportID, producer domain.ProducerID, _ domain.RTPCapabilities) (domain.ConsumerParams, error) {
	e.wait("consume")
	return domain.ConsumerParams{
		ID:         domain.ConsumerID(e.next("C")),
		ProducerID: producer,
		Kind:       domain.KindAudio,
	}, nil
}

func (e *fakeEngine) ResumeConsumer(context.Context, domain.ConsumerID) error {
	e.wait("resume")
	return nil
}

func (e *fakeEngine) PauseProducer(context.Context, domain.ProducerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failPause
}

func (e *fakeEngine) ResumeProducer(context.Context, domain.ProducerID) error { return nil }

func (e *fakeEngine) CloseTransport(id domain.TransportID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closedTransports = append(e.closedTransports, id)
}

func (e *fakeEngine) CloseProducer(id domain.ProducerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closedProducers = append(e.closedProducers, id)
}

func (e *fakeEngine) CloseConsumer(id domain.ConsumerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closedConsumers = append(e.closedConsumers, id)
}

func (e *fakeEngine) OnTransportClosed(fn func(domain.TransportID)) { e.onClosed = fn }
func (e *fakeEngine) Died() <-chan error { return e.died }
func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) consumersClosed() []domain.ConsumerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.ConsumerID(nil), e.closedConsumers...)
}

type fakeStore struct {
	mu      sync.Mutex
	cleared []domain.RoomID
}

func (s *fakeStore) ClearSessionParticipants(_ context.Context, room domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, room)
	return nil
}

func (s *fakeStore) rooms() []domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RoomID(nil), s.cleared...)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// fakeConn captures every frame pushed to one connection.
type fakeConn struct {
	mu     sync.Mutex
	frames []frame
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return fmt.Errorf("full")
	}
	var fr frame
	if err := json.Unmarshal(f, &fr); err != nil {
		return err
	}
	c.frames = append(c.frames, fr)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) events(typ string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, f := range c.frames {
		if f.Type == typ {
			out = append(out, f.Data)
		}
	}
	return out
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}
