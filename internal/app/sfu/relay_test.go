package sfu

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource struct {
	pkts  chan *rtp.Packet
	reads chan struct{}
}

func newChanSource() *chanSource {
	return &chanSource{pkts: make(chan *rtp.Packet), reads: make(chan struct{}, 64)}
}

func (s *chanSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	s.reads <- struct{}{}
	p, ok := <-s.pkts
	if !ok {
		return nil, nil, io.EOF
	}
	return p, nil, nil
}

// step hands one packet to the relay and returns once it has been forwarded.
func (s *chanSource) step(seq uint16) {
	s.pkts <- &rtp.Packet{Header: rtp.Header{SequenceNumber: seq}}
	<-s.reads
}

type recordSink struct {
	mu   sync.Mutex
	seqs []uint16
	err  error
}

func (s *recordSink) WriteRTP(p *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.seqs = append(s.seqs, p.SequenceNumber)
	return nil
}

func (s *recordSink) got() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.seqs...)
}

func startRelay(t *testing.T) (*RelayManager, *Relay, *chanSource) {
	t.Helper()
	m := NewRelayManager()
	src := newChanSource()
	r := m.StartRelay(context.Background(), "p1", src)
	<-src.reads
	t.Cleanup(func() {
		m.StopRelay("p1")
		close(src.pkts)
	})
	return m, r, src
}

func TestOutTrackStates(t *testing.T) {
	ot := NewOutTrack(&recordSink{})
	assert.Equal(t, TrackStateMuted, ot.GetState())
	ot.MarkOk()
	assert.Equal(t, TrackStateOk, ot.GetState())
	ot.MarkDelete()
	ot.MarkOk()
	assert.Equal(t, TrackStateDelete, ot.GetState())
}

func TestSubscriberMutedUntilResumed(t *testing.T) {
	m, _, src := startRelay(t)
	sink := &recordSink{}
	require.True(t, m.AddSubscriber("p1", "c1", sink))

	src.step(1)
	assert.Empty(t, sink.got())

	require.True(t, m.ResumeSubscriber("p1", "c1"))
	src.step(2)
	src.step(3)
	assert.Equal(t, []uint16{2, 3}, sink.got())
}

func TestPausedRelayDropsPackets(t *testing.T) {
	m, _, src := startRelay(t)
	sink := &recordSink{}
	require.True(t, m.AddSubscriber("p1", "c1", sink))
	require.True(t, m.ResumeSubscriber("p1", "c1"))

	require.True(t, m.SetPaused("p1", true))
	src.step(1)
	require.True(t, m.SetPaused("p1", false))
	src.step(2)

	assert.Equal(t, []uint16{2}, sink.got())
}

func TestWriteErrorDropsSubscriber(t *testing.T) {
	m, r, src := startRelay(t)
	bad := &recordSink{err: errors.New("closed pipe")}
	good := &recordSink{}
	require.True(t, m.AddSubscriber("p1", "bad", bad))
	require.True(t, m.AddSubscriber("p1", "good", good))
	m.ResumeSubscriber("p1", "bad")
	m.ResumeSubscriber("p1", "good")

	src.step(1)

	_, ok := r.outTrack("bad")
	assert.False(t, ok)
	assert.Equal(t, []uint16{1}, good.got())
}

func TestDeletedSubscriberIsRemoved(t *testing.T) {
	m, r, src := startRelay(t)
	sink := &recordSink{}
	require.True(t, m.AddSubscriber("p1", "c1", sink))
	m.ResumeSubscriber("p1", "c1")

	m.MarkSubscriberDelete("p1", "c1")
	src.step(1)

	assert.Empty(t, sink.got())
	_, ok := r.outTrack("c1")
	assert.False(t, ok)
	assert.False(t, m.ResumeSubscriber("p1", "c1"))
}

func TestUnknownProducer(t *testing.T) {
	m := NewRelayManager()
	assert.False(t, m.AddSubscriber("nope", "c1", &recordSink{}))
	assert.False(t, m.ResumeSubscriber("nope", "c1"))
	assert.False(t, m.SetPaused("nope", true))
	assert.NotPanics(t, func() { m.StopRelay("nope") })
}

func TestStopRelay(t *testing.T) {
	m := NewRelayManager()
	src := newChanSource()
	r := m.StartRelay(context.Background(), "p1", src)
	sink := &recordSink{}
	require.True(t, m.AddSubscriber("p1", "c1", sink))
	ot, _ := r.outTrack("c1")

	m.StopRelay("p1")
	close(src.pkts)

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("relay loop did not exit")
	}
	assert.False(t, m.HasRelay("p1"))
	assert.Equal(t, TrackStateDelete, ot.GetState())
}
