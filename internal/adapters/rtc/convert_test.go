package rtc

import (
	"testing"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterCodecFor(t *testing.T) {
	sent := domain.RTPParameters{Codecs: []domain.RTPCodecParameters{
		{MimeType: "audio/PCMU", PayloadType: 0, ClockRate: 8000},
		{MimeType: "audio/OPUS", PayloadType: 109, ClockRate: 48000, Channels: 2},
	}}

	rc, codec, ok := routerCodecFor(domain.KindAudio, sent)
	require.True(t, ok)
	assert.Equal(t, webrtc.MimeTypeOpus, rc.MimeType)
	assert.Equal(t, uint8(109), codec.PayloadType)

	_, _, ok = routerCodecFor(domain.KindVideo, sent)
	assert.False(t, ok)
	_, _, ok = routerCodecFor(domain.KindAudio, domain.RTPParameters{})
	assert.False(t, ok)
}

func TestMatchCaps(t *testing.T) {
	opus := domain.RTPCodecParameters{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}

	c, ok := matchCaps(opus, domain.RTPCapabilities{Codecs: []domain.RTPCodecCapability{
		{Kind: domain.KindAudio, MimeType: "audio/opus", PreferredPayloadType: 100, ClockRate: 48000},
	}})
	require.True(t, ok)
	assert.Equal(t, uint8(100), c.PreferredPayloadType)

	_, ok = matchCaps(opus, domain.RTPCapabilities{Codecs: []domain.RTPCodecCapability{
		{Kind: domain.KindAudio, MimeType: "audio/opus", ClockRate: 48000, Channels: 1},
	}})
	assert.False(t, ok)
	_, ok = matchCaps(opus, domain.RTPCapabilities{})
	assert.False(t, ok)
}

func TestDTLSRoles(t *testing.T) {
	tests := map[string]webrtc.DTLSRole{
		"client": webrtc.DTLSRoleClient,
		"Server": webrtc.DTLSRoleServer,
		"auto":   webrtc.DTLSRoleAuto,
		"":       webrtc.DTLSRoleAuto,
	}
	for role, want := range tests {
		got := fromDTLSParameters(domain.DTLSParameters{
			Role:         role,
			Fingerprints: []domain.DTLSFingerprint{{Algorithm: "sha-256", Value: "AB:CD"}},
		})
		assert.Equal(t, want, got.Role, role)
		assert.Equal(t, []webrtc.DTLSFingerprint{{Algorithm: "sha-256", Value: "AB:CD"}}, got.Fingerprints)
	}
}

func TestCandidateConversion(t *testing.T) {
	out := toICECandidates([]webrtc.ICECandidate{{
		Foundation: "1",
		Priority:   2130706431,
		Address:    "203.0.113.7",
		Protocol:   webrtc.ICEProtocolUDP,
		Port:       10000,
		Typ:        webrtc.ICECandidateTypeHost,
	}})

	assert.Equal(t, []domain.ICECandidate{{
		Foundation: "1",
		Priority:   2130706431,
		IP:         "203.0.113.7",
		Protocol:   "udp",
		Port:       10000,
		Type:       "host",
	}}, out)
}

func TestICEParametersRoundTrip(t *testing.T) {
	p := domain.ICEParameters{UsernameFragment: "ufrag", Password: "pwd", ICELite: true}
	assert.Equal(t, p, toICEParameters(fromICEParameters(p)))
}

func TestOptionsICEServers(t *testing.T) {
	assert.Nil(t, DefaultOptions().iceServers())
	o := Options{STUNURLs: []string{"stun:stun.example.org:3478"}}
	assert.Equal(t, []webrtc.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}}, o.iceServers())
}
