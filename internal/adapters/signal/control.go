package signal

import "github.com/dkeye/Classroom/internal/core"

func (ctl *SignalWSController) handlePing(c *WsSignalConn, req *request) {
	ctl.sendJSON(c, core.Envelope{Type: "pong", ID: req.ID})
}

// handleTestAudio echoes the client's local audio check back to it.
func (ctl *SignalWSController) handleTestAudio(c *WsSignalConn, req *request) {
	var p testAudioPayload
	if err := req.decode(&p); err != nil {
		ctl.replyError(c, req, err)
		return
	}
	ctl.sendJSON(c, core.Envelope{Type: core.EventAudioTestResult, ID: req.ID, Data: p})
}
