package rtc

import (
	"strings"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
)

// routerCodecs is the codec set the router accepts and offers.
var routerCodecs = []domain.RTPCodecCapability{
	{
		Kind:                 domain.KindAudio,
		MimeType:             webrtc.MimeTypeOpus,
		PreferredPayloadType: 111,
		ClockRate:            48000,
		Channels:             2,
	},
}

func toPionCodec(c domain.RTPCodecCapability) webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    c.MimeType,
			ClockRate:   c.ClockRate,
			Channels:    c.Channels,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: webrtc.PayloadType(c.PreferredPayloadType),
	}
}

func sameCodec(mime string, clock uint32, channels uint16, c domain.RTPCodecCapability) bool {
	if !strings.EqualFold(mime, c.MimeType) || clock != c.ClockRate {
		return false
	}
	return channels == 0 || c.Channels == 0 || channels == c.Channels
}

// routerCodecFor finds the router codec matching what a producer sends.
func routerCodecFor(kind domain.MediaKind, p domain.RTPParameters) (domain.RTPCodecCapability, domain.RTPCodecParameters, bool) {
	for _, sent := range p.Codecs {
		for _, rc := range routerCodecs {
			if rc.Kind == kind && sameCodec(sent.MimeType, sent.ClockRate, sent.Channels, rc) {
				return rc, sent, true
			}
		}
	}
	return domain.RTPCodecCapability{}, domain.RTPCodecParameters{}, false
}

// matchCaps returns the client's capability for codec, if any.
func matchCaps(codec domain.RTPCodecParameters, caps domain.RTPCapabilities) (domain.RTPCodecCapability, bool) {
	for _, c := range caps.Codecs {
		if sameCodec(codec.MimeType, codec.ClockRate, codec.Channels, c) {
			return c, true
		}
	}
	return domain.RTPCodecCapability{}, false
}

func kindOf(k domain.MediaKind) webrtc.RTPCodecType {
	if k == domain.KindVideo {
		return webrtc.RTPCodecTypeVideo
	}
	return webrtc.RTPCodecTypeAudio
}

func toICEParameters(p webrtc.ICEParameters) domain.ICEParameters {
	return domain.ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		ICELite:          p.ICELite,
	}
}

func fromICEParameters(p domain.ICEParameters) webrtc.ICEParameters {
	return webrtc.ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		ICELite:          p.ICELite,
	}
}

func toICECandidates(cs []webrtc.ICECandidate) []domain.ICECandidate {
	out := make([]domain.ICECandidate, 0, len(cs))
	for _, c := range cs {
		out = append(out, domain.ICECandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			IP:         c.Address,
			Protocol:   c.Protocol.String(),
			Port:       c.Port,
			Type:       c.Typ.String(),
		})
	}
	return out
}

func toDTLSParameters(p webrtc.DTLSParameters) domain.DTLSParameters {
	out := domain.DTLSParameters{Role: "auto"}
	for _, f := range p.Fingerprints {
		out.Fingerprints = append(out.Fingerprints, domain.DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out
}

func fromDTLSParameters(p domain.DTLSParameters) webrtc.DTLSParameters {
	out := webrtc.DTLSParameters{Role: webrtc.DTLSRoleAuto}
	switch strings.ToLower(p.Role) {
	case "client":
		out.Role = webrtc.DTLSRoleClient
	case "server":
		out.Role = webrtc.DTLSRoleServer
	}
	for _, f := range p.Fingerprints {
		out.Fingerprints = append(out.Fingerprints, webrtc.DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out
}
