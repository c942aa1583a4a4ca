package sfu

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

// RTPSink is the write side of a consumer, usually a *webrtc.TrackLocalStaticRTP.
type RTPSink interface {
	WriteRTP(p *rtp.Packet) error
}

// OutTrack represents a single consumer of a relay. Consumers start muted and
// only receive packets after MarkOk.
type OutTrack struct {
	Sink  RTPSink
	state atomic.Int32
}

func NewOutTrack(sink RTPSink) *OutTrack {
	ot := &OutTrack{Sink: sink}
	ot.MarkMuted()
	return ot
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkOk() {
	ot.state.CompareAndSwap(int32(TrackStateMuted), int32(TrackStateOk))
}

func (ot *OutTrack) MarkMuted() {
	ot.state.Store(int32(TrackStateMuted))
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
