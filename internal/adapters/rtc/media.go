package rtc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type producer struct {
	id        domain.ProducerID
	transport domain.TransportID
	kind      domain.MediaKind
	codec     domain.RTPCodecCapability
	receiver  *webrtc.RTPReceiver
}

type consumer struct {
	id        domain.ConsumerID
	producer  domain.ProducerID
	transport domain.TransportID
	sender    *webrtc.RTPSender
	cancel    context.CancelFunc
}

// Produce waits for the transport's DTLS handshake, then starts an
// RTPReceiver for the encoding the client announced and relays it.
func (e *Engine) Produce(ctx context.Context, transportID domain.TransportID, kind domain.MediaKind, params domain.RTPParameters) (domain.ProducerID, error) {
	t, err := e.transport(transportID)
	if err != nil {
		return "", err
	}
	rc, sent, ok := routerCodecFor(kind, params)
	if !ok {
		return "", domain.ErrCodecIncompatible
	}
	if len(params.Encodings) == 0 || params.Encodings[0].SSRC == 0 {
		return "", errors.New("rtc: produce requires an encoding ssrc")
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.opts.ConnectTimeout)
	defer cancel()
	if err := t.waitConnected(waitCtx); err != nil {
		return "", fmt.Errorf("wait transport %s: %w", transportID, err)
	}

	receiver, err := e.api.NewRTPReceiver(kindOf(kind), t.dtls)
	if err != nil {
		return "", fmt.Errorf("rtp receiver: %w", err)
	}
	err = receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{{
			RTPCodingParameters: webrtc.RTPCodingParameters{
				SSRC:        webrtc.SSRC(params.Encodings[0].SSRC),
				PayloadType: webrtc.PayloadType(sent.PayloadType),
			},
		}},
	})
	if err != nil {
		_ = receiver.Stop()
		return "", fmt.Errorf("receive: %w", err)
	}

	p := &producer{
		id:        domain.ProducerID(uuid.NewString()),
		transport: transportID,
		kind:      kind,
		codec:     rc,
		receiver:  receiver,
	}

	e.mu.Lock()
	if _, live := e.transports[transportID]; !live {
		e.mu.Unlock()
		_ = receiver.Stop()
		return "", ErrUnknownTransport
	}
	e.producers[p.id] = p
	e.mu.Unlock()

	e.relays.StartRelay(e.ctx, p.id, receiver.Track())
	log.Info().Str("module", "rtc").Str("producer", string(p.id)).Str("transport", string(transportID)).Uint32("ssrc", params.Encodings[0].SSRC).Msg("producer started")
	return p.id, nil
}

func (e *Engine) CanConsume(id domain.ProducerID, caps domain.RTPCapabilities) bool {
	e.mu.RLock()
	p, ok := e.producers[id]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	_, ok = matchCaps(domain.RTPCodecParameters{MimeType: p.codec.MimeType, ClockRate: p.codec.ClockRate, Channels: p.codec.Channels}, caps)
	return ok
}

// Consume attaches a paused out-track for the producer and returns the RTP
// parameters the client must receive with. Sending starts once the consumer
// transport is connected; packets flow only after ResumeConsumer.
func (e *Engine) Consume(_ context.Context, transportID domain.TransportID, producerID domain.ProducerID, caps domain.RTPCapabilities) (domain.ConsumerParams, error) {
	t, err := e.transport(transportID)
	if err != nil {
		return domain.ConsumerParams{}, err
	}
	e.mu.RLock()
	p, ok := e.producers[producerID]
	e.mu.RUnlock()
	if !ok {
		return domain.ConsumerParams{}, ErrUnknownProducer
	}
	cc, ok := matchCaps(domain.RTPCodecParameters{MimeType: p.codec.MimeType, ClockRate: p.codec.ClockRate, Channels: p.codec.Channels}, caps)
	if !ok {
		return domain.ConsumerParams{}, domain.ErrCodecIncompatible
	}

	id := domain.ConsumerID(uuid.NewString())
	track, err := webrtc.NewTrackLocalStaticRTP(toPionCodec(p.codec).RTPCodecCapability, string(id), string(producerID))
	if err != nil {
		return domain.ConsumerParams{}, fmt.Errorf("local track: %w", err)
	}
	sender, err := e.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return domain.ConsumerParams{}, fmt.Errorf("rtp sender: %w", err)
	}
	sendParams := sender.GetParameters()
	var ssrc uint32
	if len(sendParams.Encodings) > 0 {
		ssrc = uint32(sendParams.Encodings[0].SSRC)
	}

	ctx, cancel := context.WithCancel(e.ctx)
	c := &consumer{id: id, producer: producerID, transport: transportID, sender: sender, cancel: cancel}

	e.mu.Lock()
	_, tLive := e.transports[transportID]
	_, pLive := e.producers[producerID]
	if !tLive || !pLive {
		e.mu.Unlock()
		cancel()
		_ = sender.Stop()
		return domain.ConsumerParams{}, ErrUnknownProducer
	}
	e.consumers[id] = c
	e.mu.Unlock()

	if !e.relays.AddSubscriber(producerID, id, track) {
		e.CloseConsumer(id)
		return domain.ConsumerParams{}, ErrUnknownProducer
	}

	go e.startSending(ctx, t, c, sendParams)

	return domain.ConsumerParams{
		ID:         id,
		ProducerID: producerID,
		Kind:       p.kind,
		RTPParameters: domain.RTPParameters{
			Codecs: []domain.RTPCodecParameters{{
				MimeType:    p.codec.MimeType,
				PayloadType: cc.PreferredPayloadType,
				ClockRate:   p.codec.ClockRate,
				Channels:    p.codec.Channels,
			}},
			Encodings: []domain.RTPEncoding{{SSRC: ssrc}},
		},
	}, nil
}

func (e *Engine) startSending(ctx context.Context, t *transport, c *consumer, params webrtc.RTPSendParameters) {
	if err := t.waitConnected(ctx); err != nil {
		return
	}
	if err := c.sender.Send(params); err != nil {
		log.Warn().Err(err).Str("module", "rtc").Str("consumer", string(c.id)).Msg("rtp sender start")
		return
	}
	// Drain RTCP so interceptors keep running.
	buf := make([]byte, 1500)
	for {
		if _, _, err := c.sender.Read(buf); err != nil {
			return
		}
	}
}

func (e *Engine) ResumeConsumer(_ context.Context, id domain.ConsumerID) error {
	e.mu.RLock()
	c, ok := e.consumers[id]
	e.mu.RUnlock()
	if !ok {
		return ErrUnknownConsumer
	}
	if !e.relays.ResumeSubscriber(c.producer, id) {
		return fmt.Errorf("consumer %s is no longer attached to producer %s", id, c.producer)
	}
	return nil
}

func (e *Engine) PauseProducer(_ context.Context, id domain.ProducerID) error {
	if !e.relays.SetPaused(id, true) {
		return ErrUnknownProducer
	}
	return nil
}

func (e *Engine) ResumeProducer(_ context.Context, id domain.ProducerID) error {
	if !e.relays.SetPaused(id, false) {
		return ErrUnknownProducer
	}
	return nil
}

func (e *Engine) CloseProducer(id domain.ProducerID) {
	e.mu.Lock()
	p, ok := e.producers[id]
	delete(e.producers, id)
	var consumers []domain.ConsumerID
	for cid, c := range e.consumers {
		if c.producer == id {
			consumers = append(consumers, cid)
		}
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	for _, cid := range consumers {
		e.CloseConsumer(cid)
	}
	e.relays.StopRelay(id)
	if err := p.receiver.Stop(); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Str("producer", string(id)).Msg("receiver stop")
	}
	log.Info().Str("module", "rtc").Str("producer", string(id)).Msg("producer closed")
}

func (e *Engine) CloseConsumer(id domain.ConsumerID) {
	e.mu.Lock()
	c, ok := e.consumers[id]
	delete(e.consumers, id)
	e.mu.Unlock()
	if !ok {
		return
	}
	c.cancel()
	e.relays.MarkSubscriberDelete(c.producer, id)
	if err := c.sender.Stop(); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Str("consumer", string(id)).Msg("sender stop")
	}
}
