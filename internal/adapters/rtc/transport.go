package rtc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type transport struct {
	id       domain.TransportID
	dir      domain.Direction
	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport

	started     atomic.Bool
	connectOnce sync.Once
	connected   chan struct{}
	closed      atomic.Bool
	done        chan struct{}
}

// waitConnected blocks until DTLS is up, the transport is closed, or ctx ends.
func (t *transport) waitConnected(ctx context.Context) error {
	select {
	case <-t.connected:
		return nil
	case <-t.done:
		return fmt.Errorf("transport %s closed", t.id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *transport) close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	close(t.done)
	if err := t.dtls.Stop(); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Str("transport", string(t.id)).Msg("dtls stop")
	}
	if err := t.ice.Stop(); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Str("transport", string(t.id)).Msg("ice stop")
	}
	if err := t.gatherer.Close(); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Str("transport", string(t.id)).Msg("gatherer close")
	}
}

// CreateTransport gathers host candidates on the announced address and
// returns the local ICE/DTLS descriptor.
func (e *Engine) CreateTransport(ctx context.Context, dir domain.Direction) (domain.TransportParams, error) {
	if e.ctx.Err() != nil {
		return domain.TransportParams{}, ErrClosed
	}
	gatherer, err := e.api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: e.opts.iceServers()})
	if err != nil {
		return domain.TransportParams{}, fmt.Errorf("ice gatherer: %w", err)
	}
	ice := e.api.NewICETransport(gatherer)
	dtls, err := e.api.NewDTLSTransport(ice, nil)
	if err != nil {
		_ = gatherer.Close()
		return domain.TransportParams{}, fmt.Errorf("dtls transport: %w", err)
	}
	t := &transport{
		id:        domain.TransportID(uuid.NewString()),
		dir:       dir,
		gatherer:  gatherer,
		ice:       ice,
		dtls:      dtls,
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}

	gathered := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gathered)
		}
	})
	if err := gatherer.Gather(); err != nil {
		t.close()
		return domain.TransportParams{}, fmt.Errorf("gather: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		t.close()
		return domain.TransportParams{}, ctx.Err()
	}

	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		t.close()
		return domain.TransportParams{}, fmt.Errorf("local ice parameters: %w", err)
	}
	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		t.close()
		return domain.TransportParams{}, fmt.Errorf("local candidates: %w", err)
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		t.close()
		return domain.TransportParams{}, fmt.Errorf("local dtls parameters: %w", err)
	}

	dtls.OnStateChange(func(s webrtc.DTLSTransportState) {
		log.Info().Str("module", "rtc").Str("transport", string(t.id)).Str("dtls_state", s.String()).Msg("DTLS state")
		switch s {
		case webrtc.DTLSTransportStateConnected:
			t.connectOnce.Do(func() { close(t.connected) })
		case webrtc.DTLSTransportStateFailed, webrtc.DTLSTransportStateClosed:
			if !t.closed.Load() {
				go e.transportFailed(t)
			}
		}
	})

	e.mu.Lock()
	e.transports[t.id] = t
	e.mu.Unlock()

	return domain.TransportParams{
		ID:             t.id,
		ICEParameters:  toICEParameters(iceParams),
		ICECandidates:  toICECandidates(candidates),
		DTLSParameters: toDTLSParameters(dtlsParams),
	}, nil
}

// ConnectTransport records the remote parameters and starts ICE and DTLS in
// the background. The handshake completes once the client sends media or
// connectivity checks; producers and consumers wait for it.
func (e *Engine) ConnectTransport(_ context.Context, id domain.TransportID, dtls domain.DTLSParameters, ice *domain.ICEParameters) error {
	t, err := e.transport(id)
	if err != nil {
		return err
	}
	if ice == nil {
		return ErrMissingICE
	}
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("transport %s already connected", id)
	}
	remoteICE := fromICEParameters(*ice)
	remoteDTLS := fromDTLSParameters(dtls)

	go func() {
		role := webrtc.ICERoleControlled
		if err := t.ice.Start(t.gatherer, remoteICE, &role); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("transport", string(t.id)).Msg("ice start")
			if !t.closed.Load() {
				e.transportFailed(t)
			}
			return
		}
		if err := t.dtls.Start(remoteDTLS); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("transport", string(t.id)).Msg("dtls start")
			if !t.closed.Load() {
				e.transportFailed(t)
			}
		}
	}()
	return nil
}
