package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/dkeye/Classroom/internal/app/sfu"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed           = errors.New("rtc: engine closed")
	ErrUnknownTransport = errors.New("rtc: unknown transport")
	ErrUnknownProducer  = errors.New("rtc: unknown producer")
	ErrUnknownConsumer  = errors.New("rtc: unknown consumer")
	ErrMissingICE       = errors.New("rtc: remote ice parameters required")
)

// Engine is the process-wide media router built from pion's ORTC objects:
// every transport is an ICE gatherer/transport plus a DTLS transport, a
// producer is an RTPReceiver and a consumer is an RTPSender fed by a relay.
type Engine struct {
	api    *webrtc.API
	opts   Options
	caps   domain.RTPCapabilities
	relays *sfu.RelayManager

	conn *watchedConn
	mux  io.Closer

	mu         sync.RWMutex
	transports map[domain.TransportID]*transport
	producers  map[domain.ProducerID]*producer
	consumers  map[domain.ConsumerID]*consumer
	onClosed   func(domain.TransportID)

	died   chan error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates the single worker/router pair for the process.
func NewEngine(opts Options) (*Engine, error) {
	m := &webrtc.MediaEngine{}
	for _, c := range routerCodecs {
		if err := m.RegisterCodec(toPionCodec(c), kindOf(c.Kind)); err != nil {
			return nil, fmt.Errorf("register codec %s: %w", c.MimeType, err)
		}
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	if opts.AnnouncedIP == "" {
		opts.AnnouncedIP = AnnouncedIPv4()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultOptions().ConnectTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:       opts,
		caps:       domain.RTPCapabilities{Codecs: append([]domain.RTPCodecCapability(nil), routerCodecs...)},
		relays:     sfu.NewRelayManager(),
		transports: make(map[domain.TransportID]*transport),
		producers:  make(map[domain.ProducerID]*producer),
		consumers:  make(map[domain.ConsumerID]*consumer),
		died:       make(chan error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	s := webrtc.SettingEngine{}
	s.SetLite(true)
	s.SetNAT1To1IPs([]string{opts.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	if opts.UDPPort > 0 {
		udp, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(opts.ListenIP), Port: opts.UDPPort})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("listen udp %s:%d: %w", opts.ListenIP, opts.UDPPort, err)
		}
		e.conn = newWatchedConn(udp)
		mux := webrtc.NewICEUDPMux(nil, e.conn)
		e.mux = mux
		s.SetICEUDPMux(mux)
		go e.watch()
	} else if err := s.SetEphemeralUDPPortRange(opts.MinPort, opts.MaxPort); err != nil {
		cancel()
		return nil, fmt.Errorf("port range %d-%d: %w", opts.MinPort, opts.MaxPort, err)
	}

	e.api = webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(s),
	)

	log.Info().
		Str("module", "rtc").
		Str("listen_ip", opts.ListenIP).
		Str("announced_ip", opts.AnnouncedIP).
		Int("udp_port", opts.UDPPort).
		Msg("media engine started")
	return e, nil
}

func (e *Engine) watch() {
	select {
	case err := <-e.conn.died:
		log.Error().Err(err).Str("module", "rtc").Msg("media socket failed")
		e.died <- err
	case <-e.ctx.Done():
	}
}

func (e *Engine) RTPCapabilities() domain.RTPCapabilities { return e.caps }

func (e *Engine) OnTransportClosed(fn func(domain.TransportID)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onClosed = fn
}

func (e *Engine) Died() <-chan error { return e.died }

func (e *Engine) transport(id domain.TransportID) (*transport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.transports[id]
	if !ok {
		return nil, ErrUnknownTransport
	}
	return t, nil
}

// transportFailed runs when DTLS reports the transport gone without us
// closing it.
func (e *Engine) transportFailed(t *transport) {
	e.mu.RLock()
	_, live := e.transports[t.id]
	fn := e.onClosed
	e.mu.RUnlock()
	if !live {
		return
	}
	log.Warn().Str("module", "rtc").Str("transport", string(t.id)).Msg("transport closed by engine")
	if fn != nil {
		fn(t.id)
	}
	e.CloseTransport(t.id)
}

func (e *Engine) CloseTransport(id domain.TransportID) {
	e.mu.Lock()
	t, ok := e.transports[id]
	delete(e.transports, id)
	var owned []domain.ProducerID
	for pid, p := range e.producers {
		if p.transport == id {
			owned = append(owned, pid)
		}
	}
	var consumed []domain.ConsumerID
	for cid, c := range e.consumers {
		if c.transport == id {
			consumed = append(consumed, cid)
		}
	}
	e.mu.Unlock()

	for _, cid := range consumed {
		e.CloseConsumer(cid)
	}
	for _, pid := range owned {
		e.CloseProducer(pid)
	}
	if ok {
		t.close()
		log.Info().Str("module", "rtc").Str("transport", string(id)).Msg("transport closed")
	}
}

// Close stops every transport and the shared socket.
func (e *Engine) Close() error {
	e.mu.RLock()
	ids := make([]domain.TransportID, 0, len(e.transports))
	for id := range e.transports {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	for _, id := range ids {
		e.CloseTransport(id)
	}
	e.cancel()
	var err error
	if e.mux != nil {
		err = e.mux.Close()
	}
	if e.conn != nil {
		err = errors.Join(err, e.conn.Close())
	}
	return err
}
