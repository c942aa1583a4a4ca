package signal

import (
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleAnnounce(c *WsSignalConn, req *request) {
	var p announcePayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	if !ctl.announces.Allow(p.UserID) {
		ctl.replyError(c, req, domain.Errorf(domain.KindRateLimited, "announce limit reached for %s", p.UserID))
		return
	}
	ctl.Orch.AnnouncePresence(c.id, p.RoomID, p.UserID, p.AvatarRef, domain.ParseRole(p.Role))
}

func (ctl *SignalWSController) handlePosition(c *WsSignalConn, req *request) {
	var p positionPayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.Orch.UpdatePosition(p.UserID, p.Position)
}

// handleLeaveSession removes the participant; the connection stays open.
func (ctl *SignalWSController) handleLeaveSession(c *WsSignalConn, req *request) {
	var p leavePayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(c.id)).Str("user", string(p.UserID)).Msg("leave session")
	ctl.Orch.Leave(p.UserID, p.RoomID)
}
