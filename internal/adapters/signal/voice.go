package signal

import (
	"context"
	"errors"

	"github.com/dkeye/Classroom/internal/domain"
)

func (ctl *SignalWSController) handleVoiceJoin(c *WsSignalConn, req *request) {
	var p voiceJoinPayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	if err := errors.Join(domain.ValidateRoomID(p.RoomID), domain.ValidateUserID(p.UserID)); err != nil {
		ctl.replyError(c, req, domain.Errorf(domain.KindBadPayload, "%v", err))
		return
	}
	caps, err := ctl.Orch.JoinVoiceRoom(c.id, p.RoomID, p.UserID)
	if err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.reply(c, req, voiceJoinResult{RTPCapabilities: caps})
}

func (ctl *SignalWSController) handleCreateTransport(ctx context.Context, c *WsSignalConn, req *request, dir domain.Direction) {
	params, err := ctl.Orch.CreateTransport(ctx, c.id, dir)
	if err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.reply(c, req, params)
}

func (ctl *SignalWSController) handleConnectTransport(ctx context.Context, c *WsSignalConn, req *request) {
	var p connectPayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	if err := ctl.Orch.ConnectTransport(ctx, c.id, p.TransportID, p.DTLSParameters, p.ICEParameters); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.reply(c, req, successResult{Success: true})
}

func (ctl *SignalWSController) handleProduce(ctx context.Context, c *WsSignalConn, req *request) {
	var p producePayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	if p.Kind == "" {
		p.Kind = domain.KindAudio
	}
	id, err := ctl.Orch.Produce(ctx, c.id, p.TransportID, p.Kind, p.RTPParameters)
	if err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.reply(c, req, produceResult{ID: id})
}

func (ctl *SignalWSController) handleConsume(ctx context.Context, c *WsSignalConn, req *request) {
	var p consumePayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	res, err := ctl.Orch.Consume(ctx, c.id, p.TransportID, p.ProducerID, p.RTPCapabilities)
	if err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.reply(c, req, res)
}

func (ctl *SignalWSController) handleResumeConsumer(ctx context.Context, c *WsSignalConn, req *request) {
	var p consumerPayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	if err := ctl.Orch.ResumeConsumer(ctx, c.id, p.ConsumerID); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.reply(c, req, successResult{Success: true})
}

func (ctl *SignalWSController) handleProducerPause(ctx context.Context, c *WsSignalConn, req *request, paused bool) {
	var p producerPayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	if err := ctl.Orch.SetProducerPaused(ctx, c.id, p.ProducerID, paused); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.reply(c, req, successResult{Success: true})
}

func (ctl *SignalWSController) handleGetProducers(c *WsSignalConn, req *request) {
	list, err := ctl.Orch.ListProducers(c.id)
	if err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.reply(c, req, list)
}

func (ctl *SignalWSController) handleToggleAudio(c *WsSignalConn, req *request) {
	var p togglePayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.Orch.ToggleAudio(c.id, p.Muted)
}
