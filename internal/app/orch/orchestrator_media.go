package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Classroom/internal/app/voice"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

type newProducer struct {
	ProducerID domain.ProducerID `json:"producerId"`
	UserID     domain.UserID     `json:"userId"`
}

type producerClosed struct {
	ConsumerID domain.ConsumerID `json:"consumerId"`
	ProducerID domain.ProducerID `json:"producerId"`
}

type producerState struct {
	ProducerID domain.ProducerID `json:"producerId"`
	UserID     domain.UserID     `json:"userId"`
}

type audioToggle struct {
	UserID domain.UserID `json:"userId"`
	Muted  bool          `json:"muted"`
}

// ConsumeResult is what a consumer learns about its new consumer.
type ConsumeResult struct {
	domain.ConsumerParams
	ProducerOwner domain.UserID `json:"producerOwnerUserId"`
}

// JoinVoiceRoom adds conn to the voice room (creating it on first join) and
// returns the router capabilities.
func (o *Orchestrator) JoinVoiceRoom(conn core.ConnID, room domain.RoomID, user domain.UserID) (domain.RTPCapabilities, error) {
	created, prior := o.Voice.Join(room, conn, user)
	if prior != nil {
		o.afterDeparture(conn, prior)
	}
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("room", string(room)).Str("user", string(user)).Bool("created", created).Msg("voice join")
	o.observe()
	return o.Engine.RTPCapabilities(), nil
}

// CreateTransport asks the engine for a new transport of dir and records it
// under conn's peer. If the peer vanished while the engine was busy, the
// transport is released again.
func (o *Orchestrator) CreateTransport(ctx context.Context, conn core.ConnID, dir domain.Direction) (domain.TransportParams, error) {
	if _, err := o.Voice.Peer(conn); err != nil {
		return domain.TransportParams{}, err
	}

	params, err := o.Engine.CreateTransport(ctx, dir)
	if err != nil {
		if _, perr := o.Voice.Peer(conn); perr != nil {
			return domain.TransportParams{}, perr
		}
		return domain.TransportParams{}, domain.EngineFailure("create transport", err)
	}

	if err := o.Voice.AddTransport(conn, params.ID, dir); err != nil {
		log.Warn().Str("module", "orch").Str("conn", string(conn)).Str("transport", string(params.ID)).Msg("peer gone during transport creation")
		o.Engine.CloseTransport(params.ID)
		return domain.TransportParams{}, err
	}
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("transport", string(params.ID)).Str("direction", string(dir)).Msg("transport created")
	o.observe()
	return params, nil
}

// ConnectTransport passes the client's DTLS parameters to the engine. Any
// transport owned by conn may be connected regardless of direction.
func (o *Orchestrator) ConnectTransport(ctx context.Context, conn core.ConnID, id domain.TransportID, dtls domain.DTLSParameters, ice *domain.ICEParameters) error {
	if _, err := o.Voice.Transport(conn, id, ""); err != nil {
		return err
	}
	if err := o.Engine.ConnectTransport(ctx, id, dtls, ice); err != nil {
		return domain.EngineFailure("connect transport", err)
	}
	if err := o.Voice.MarkConnected(conn, id); err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("transport", string(id)).Msg("transport connected")
	return nil
}

// Produce creates an outbound producer on a producer transport and tells the
// rest of the room about it.
func (o *Orchestrator) Produce(ctx context.Context, conn core.ConnID, transportID domain.TransportID, kind domain.MediaKind, params domain.RTPParameters) (domain.ProducerID, error) {
	if _, err := o.Voice.Transport(conn, transportID, domain.DirectionProducer); err != nil {
		return "", err
	}
	peer, err := o.Voice.Peer(conn)
	if err != nil {
		return "", err
	}

	id, err := o.Engine.Produce(ctx, transportID, kind, params)
	if err != nil {
		if _, terr := o.Voice.Transport(conn, transportID, domain.DirectionProducer); terr != nil {
			return "", terr
		}
		if errors.Is(err, domain.ErrCodecIncompatible) {
			return "", domain.ErrCodecIncompatible
		}
		return "", domain.EngineFailure("produce", err)
	}

	others, err := o.Voice.AddProducer(conn, transportID, id, kind)
	if err != nil {
		log.Warn().Str("module", "orch").Str("conn", string(conn)).Str("producer", string(id)).Msg("transport gone during produce")
		o.Engine.CloseProducer(id)
		return "", err
	}
	o.sendAll(others, core.EventNewProducer, newProducer{ProducerID: id, UserID: peer.User})
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("user", string(peer.User)).Str("producer", string(id)).Str("kind", string(kind)).Msg("producing")
	o.observe()
	return id, nil
}

// Consume creates a paused consumer of producerID on a consumer transport.
// The consumer only starts flowing after ResumeConsumer.
func (o *Orchestrator) Consume(ctx context.Context, conn core.ConnID, transportID domain.TransportID, producerID domain.ProducerID, caps domain.RTPCapabilities) (ConsumeResult, error) {
	if _, err := o.Voice.Transport(conn, transportID, domain.DirectionConsumer); err != nil {
		return ConsumeResult{}, err
	}
	prod, err := o.Voice.Producer(conn, producerID)
	if err != nil {
		return ConsumeResult{}, err
	}
	if !o.Engine.CanConsume(producerID, caps) {
		return ConsumeResult{}, domain.ErrCodecIncompatible
	}

	params, err := o.Engine.Consume(ctx, transportID, producerID, caps)
	if err != nil {
		if _, terr := o.Voice.Transport(conn, transportID, domain.DirectionConsumer); terr != nil {
			return ConsumeResult{}, terr
		}
		if _, perr := o.Voice.Producer(conn, producerID); perr != nil {
			return ConsumeResult{}, perr
		}
		if errors.Is(err, domain.ErrCodecIncompatible) {
			return ConsumeResult{}, domain.ErrCodecIncompatible
		}
		return ConsumeResult{}, domain.EngineFailure("consume", err)
	}

	if err := o.Voice.AddConsumer(conn, transportID, params); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn)).Str("consumer", string(params.ID)).Msg("stale consume, releasing")
		o.Engine.CloseConsumer(params.ID)
		return ConsumeResult{}, err
	}
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("consumer", string(params.ID)).Str("producer", string(producerID)).Msg("consumer created paused")
	o.observe()
	return ConsumeResult{ConsumerParams: params, ProducerOwner: prod.UserID}, nil
}

func (o *Orchestrator) ResumeConsumer(ctx context.Context, conn core.ConnID, id domain.ConsumerID) error {
	if _, err := o.Voice.Consumer(conn, id); err != nil {
		return err
	}
	if err := o.Engine.ResumeConsumer(ctx, id); err != nil {
		return domain.EngineFailure("resume consumer", err)
	}
	if err := o.Voice.MarkConsumerActive(conn, id); err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("consumer", string(id)).Msg("consumer resumed")
	return nil
}

// SetProducerPaused pauses or resumes one of conn's own producers and tells
// the room.
func (o *Orchestrator) SetProducerPaused(ctx context.Context, conn core.ConnID, id domain.ProducerID, paused bool) error {
	peer, err := o.Voice.Peer(conn)
	if err != nil {
		return err
	}
	prior, err := o.Voice.Producer(conn, id)
	if err != nil {
		return err
	}
	if err := o.Voice.SetProducerPaused(conn, id, paused); err != nil {
		return err
	}
	op, event := o.Engine.ResumeProducer, core.EventProducerResumed
	if paused {
		op, event = o.Engine.PauseProducer, core.EventProducerPaused
	}
	if err := op(ctx, id); err != nil {
		// The producer may have closed meanwhile; then there is nothing to restore.
		_ = o.Voice.SetProducerPaused(conn, id, prior.Paused)
		return domain.EngineFailure(event, err)
	}
	others, err := o.Voice.Others(conn)
	if err != nil {
		return err
	}
	o.sendAll(others, event, producerState{ProducerID: id, UserID: peer.User})
	return nil
}

// ListProducers returns every live producer in conn's room, including the
// caller's own.
func (o *Orchestrator) ListProducers(conn core.ConnID) ([]voice.ProducerInfo, error) {
	return o.Voice.Producers(conn)
}

// ToggleAudio relays a mute flag to the rest of the room. Nothing is stored.
func (o *Orchestrator) ToggleAudio(conn core.ConnID, muted bool) {
	peer, err := o.Voice.Peer(conn)
	if err != nil {
		return
	}
	others, err := o.Voice.Others(conn)
	if err != nil {
		return
	}
	log.Info().Str("module", "orch").Str("user", string(peer.User)).Bool("muted", muted).Msg("toggle audio")
	o.sendAll(others, core.EventUserAudioToggle, audioToggle{UserID: peer.User, Muted: muted})
}

// TeardownPeer closes everything conn owns in its voice room and returns the
// connections that were told the user's voice presence ended.
func (o *Orchestrator) TeardownPeer(conn core.ConnID) []core.ConnID {
	d, ok := o.Voice.Leave(conn)
	if !ok {
		return nil
	}
	o.afterDeparture(conn, d)
	o.observe()
	return d.Others
}

func (o *Orchestrator) afterDeparture(conn core.ConnID, d *voice.Departure) {
	o.release(d.Released)
	o.sendAll(d.Others, core.EventVoiceUserDisconnect, userRef{UserID: d.User})
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("room", string(d.Room)).Str("user", string(d.User)).Bool("room_deleted", d.RoomDeleted).Msg("voice peer torn down")
}

// release hands a cascade to the engine and sends the one producer-closed
// notification each affected consumer is owed.
func (o *Orchestrator) release(r voice.Released) {
	for _, c := range r.Consumers {
		o.Engine.CloseConsumer(c.ID)
		if c.Notify {
			o.send(c.Conn, core.EventProducerClosed, producerClosed{ConsumerID: c.ID, ProducerID: c.Producer})
		}
	}
	for _, id := range r.Producers {
		o.Engine.CloseProducer(id)
	}
	for _, id := range r.Transports {
		o.Engine.CloseTransport(id)
	}
}

func (o *Orchestrator) onTransportClosed(id domain.TransportID) {
	r := o.Voice.CloseTransport(id)
	if r.Empty() {
		return
	}
	log.Info().Str("module", "orch").Str("transport", string(id)).Msg("engine closed transport")
	o.release(r)
	o.observe()
}
