package rtc

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
)

// AnnouncedIPv4 returns the first non-loopback IPv4 address of the host, or
// 127.0.0.1 when there is none.
func AnnouncedIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return "127.0.0.1"
}

// watchedConn is the shared UDP socket under the ICE mux. A read error that
// was not caused by Close means the engine can no longer route media.
type watchedConn struct {
	net.PacketConn
	closing atomic.Bool
	once    sync.Once
	died    chan error
}

func newWatchedConn(c net.PacketConn) *watchedConn {
	return &watchedConn{PacketConn: c, died: make(chan error, 1)}
}

func (c *watchedConn) ReadFrom(p []byte) (int, net.Addr, error) {
	n, addr, err := c.PacketConn.ReadFrom(p)
	if err != nil && !c.closing.Load() && !isTimeout(err) {
		c.fail(err)
	}
	return n, addr, err
}

func (c *watchedConn) fail(err error) {
	c.once.Do(func() { c.died <- err })
}

func (c *watchedConn) Close() error {
	c.closing.Store(true)
	return c.PacketConn.Close()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
