package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump closing")
		ctl.Orch.Disconnect(c.id)
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, c, data)
		}
	}
}

// request is one inbound frame. Data stays raw until the handler for Type
// decodes it into its own payload type.
type request struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (r *request) decode(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return domain.Errorf(domain.KindBadPayload, "%s: %v", r.Type, err)
	}
	return nil
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("bad json")
		ctl.replyError(c, &req, domain.Errorf(domain.KindBadPayload, "malformed frame"))
		return
	}
	if !c.limiter.Allow() {
		log.Warn().Str("module", "signal").Str("conn", string(c.id)).Str("type", req.Type).Msg("rate limited")
		ctl.replyError(c, &req, domain.Errorf(domain.KindRateLimited, "too many messages"))
		return
	}

	switch req.Type {
	case "announce-presence":
		ctl.handleAnnounce(c, &req)
	case "position-update":
		ctl.handlePosition(c, &req)
	case "leave-session":
		ctl.handleLeaveSession(c, &req)
	case "voice-join-room":
		ctl.handleVoiceJoin(c, &req)
	case "create-producer-transport":
		ctl.handleCreateTransport(ctx, c, &req, domain.DirectionProducer)
	case "create-consumer-transport":
		ctl.handleCreateTransport(ctx, c, &req, domain.DirectionConsumer)
	case "connect-producer-transport", "connect-consumer-transport":
		ctl.handleConnectTransport(ctx, c, &req)
	case "produce":
		ctl.handleProduce(ctx, c, &req)
	case "consume":
		ctl.handleConsume(ctx, c, &req)
	case "resume-consumer":
		ctl.handleResumeConsumer(ctx, c, &req)
	case "pause-producer":
		ctl.handleProducerPause(ctx, c, &req, true)
	case "resume-producer":
		ctl.handleProducerPause(ctx, c, &req, false)
	case "get-producers":
		ctl.handleGetProducers(c, &req)
	case "toggle-audio":
		ctl.handleToggleAudio(c, &req)
	case "test-audio":
		ctl.handleTestAudio(c, &req)
	case "ping":
		ctl.handlePing(c, &req)
	default:
		log.Warn().Str("module", "signal").Str("type", req.Type).Msg("unknown signal")
		ctl.replyError(c, &req, domain.Errorf(domain.KindBadPayload, "unknown type %q", req.Type))
	}
}

func (ctl *SignalWSController) reply(c *WsSignalConn, req *request, data any) {
	ctl.sendJSON(c, core.Envelope{Type: req.Type, ID: req.ID, Data: data})
}

func (ctl *SignalWSController) replyError(c *WsSignalConn, req *request, err error) {
	e := domain.AsError(err)
	ctl.Orch.Metrics.SignalError(string(e.Kind))
	log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", req.Type).Str("kind", string(e.Kind)).Msg("request failed")
	ctl.sendJSON(c, core.Envelope{Type: req.Type, ID: req.ID, Error: e})
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); errors.Is(err, ErrBackpressure) {
		ctl.Orch.OnBackpressure(c.id)
	}
}
