package rtc

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// Options configures the process-wide engine.
type Options struct {
	ListenIP    string
	AnnouncedIP string
	// UDPPort is the single port every transport is multiplexed on. Zero
	// falls back to one ephemeral port per transport in [MinPort, MaxPort].
	UDPPort        int
	MinPort        uint16
	MaxPort        uint16
	STUNURLs       []string
	ConnectTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		ListenIP:       "0.0.0.0",
		UDPPort:        10000,
		MinPort:        10000,
		MaxPort:        10100,
		ConnectTimeout: 15 * time.Second,
	}
}

func (o Options) iceServers() []webrtc.ICEServer {
	if len(o.STUNURLs) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: o.STUNURLs}}
}
